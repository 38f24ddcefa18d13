package lifecycle

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"matjar/backoffice/internal/domain"
)

// refundedMarker is reported as the target of a completed refund. The approval
// status itself stays approved.
const refundedMarker = "refunded"

// NewReturn joins an order with its return record and checks the return
// invariants: the order is in the returned state, the status is known,
// 0 <= refund amount <= total price, and a refund date only on approved returns.
func NewReturn(order domain.Order, record domain.ReturnRecord) (domain.Return, error) {
	r := domain.JoinReturn(order.Clone(), record.Clone())
	if err := ValidateReturn(r); err != nil {
		return domain.Return{}, err
	}
	return r, nil
}

func ValidateReturn(r domain.Return) error {
	if r.OrderState != domain.OrderReturned {
		return invalid("order_state", "order %d is %s, not returned", r.ID, r.OrderState)
	}
	if !r.ApprovalStatus.Valid() {
		return invalid("approval_status", "unknown approval status %q", r.ApprovalStatus)
	}
	if err := validateRefund(r.RefundAmount, r.TotalPrice); err != nil {
		return err
	}
	if r.RefundDate != nil && r.ApprovalStatus != domain.ApprovalApproved {
		return invalid("refund_date", "may only be set on approved returns")
	}
	return nil
}

func validateRefund(amount, total decimal.Decimal) error {
	if amount.IsNegative() {
		return invalid("refund_amount", "must not be negative")
	}
	if amount.GreaterThan(total) {
		return invalid("refund_amount", "must not exceed the order total of %s", total.StringFixed(2))
	}
	return nil
}

// AllowedReturnActions lists what can still be done with a return: approve or
// reject while pending, refund once approved and not yet refunded.
func AllowedReturnActions(r domain.Return) []domain.ReturnAction {
	switch {
	case r.ApprovalStatus == domain.ApprovalPending:
		return []domain.ReturnAction{domain.ActionApprove, domain.ActionReject}
	case r.ApprovalStatus == domain.ApprovalApproved && r.RefundDate == nil:
		return []domain.ReturnAction{domain.ActionRefund}
	default:
		return []domain.ReturnAction{}
	}
}

// ApplyReturnAction resolves a return. inspector is recorded on approve and
// reject. Approve takes the refund amount from the request, defaulting to the
// order total.
func ApplyReturnAction(r domain.Return, req domain.ReturnActionRequest, inspector string, now time.Time) (domain.ActionResult, error) {
	if !slices.Contains(domain.ReturnActions, req.Action) {
		return domain.ActionResult{}, invalid("action", "unknown return action %q", req.Action)
	}
	if !slices.Contains(AllowedReturnActions(r), req.Action) {
		from := string(r.ApprovalStatus)
		if r.Refunded() {
			from = refundedMarker
		}
		return domain.ActionResult{}, &TransitionError{
			Entity: domain.EntityReturn,
			ID:     r.ID,
			From:   from,
			Action: string(req.Action),
		}
	}

	next := r.Clone()
	note := strings.TrimSpace(req.Note)
	to := ""

	switch req.Action {
	case domain.ActionApprove:
		amount := r.TotalPrice
		if req.RefundAmount != nil {
			amount = *req.RefundAmount
		}
		if err := validateRefund(amount, r.TotalPrice); err != nil {
			return domain.ActionResult{}, err
		}
		next.ApprovalStatus = domain.ApprovalApproved
		next.RefundAmount = amount
		inspect(&next, inspector, note)
		to = string(domain.ApprovalApproved)
	case domain.ActionReject:
		next.ApprovalStatus = domain.ApprovalRejected
		next.RefundAmount = decimal.Zero
		inspect(&next, inspector, note)
		to = string(domain.ApprovalRejected)
	case domain.ActionRefund:
		next.RefundDate = domain.TimePtr(now)
		to = refundedMarker
	}

	return domain.ActionResult{
		ActionID:  req.ActionID,
		Entity:    domain.EntityReturn,
		EntityID:  r.ID,
		Action:    string(req.Action),
		From:      string(r.ApprovalStatus),
		To:        to,
		Note:      note,
		AppliedAt: now,
		Return:    &next,
	}, nil
}

func inspect(r *domain.Return, inspector, note string) {
	if inspector = strings.TrimSpace(inspector); inspector != "" {
		r.InspectedBy = domain.StringPtr(inspector)
	}
	if note != "" {
		r.InspectionNotes = domain.StringPtr(note)
	}
}
