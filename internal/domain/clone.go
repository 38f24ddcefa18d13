package domain

import (
	"slices"
	"time"
)

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func (o Order) Clone() Order {
	o.DeliveryDate = clonePtr(o.DeliveryDate)
	o.DelayedUntil = clonePtr(o.DelayedUntil)
	o.DelayedReason = clonePtr(o.DelayedReason)
	o.TrackingCode = clonePtr(o.TrackingCode)
	o.Notes = slices.Clone(o.Notes)
	return o
}

func (c Customer) Clone() Customer {
	c.SubSystem = clonePtr(c.SubSystem)
	return c
}

func (r Return) Clone() Return {
	r.Order = r.Order.Clone()
	r.RefundDate = clonePtr(r.RefundDate)
	r.InspectedBy = clonePtr(r.InspectedBy)
	r.InspectionNotes = clonePtr(r.InspectionNotes)
	return r
}

func (r ReturnRecord) Clone() ReturnRecord {
	r.RefundDate = clonePtr(r.RefundDate)
	r.InspectedBy = clonePtr(r.InspectedBy)
	r.InspectionNotes = clonePtr(r.InspectionNotes)
	return r
}

// TimePtr and StringPtr build optional fields.
func TimePtr(t time.Time) *time.Time { return &t }

func StringPtr(s string) *string { return &s }

// StringOr returns *s, or fallback when s is nil or blank.
func StringOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
