// Package lifecycle validates and applies operator actions. Every function is
// pure: it receives the current value and returns a new one, leaving the input
// untouched.
package lifecycle

import (
	"slices"
	"strings"
	"time"

	"matjar/backoffice/internal/domain"
)

var orderEdges = map[domain.OrderState]map[domain.OrderAction]domain.OrderState{
	domain.OrderNew: {
		domain.ActionConfirm: domain.OrderConfirmed,
		domain.ActionDelay:   domain.OrderDelayed,
		domain.ActionCancel:  domain.OrderCancelled,
	},
	domain.OrderDelayed: {
		domain.ActionConfirm: domain.OrderConfirmed,
		domain.ActionCancel:  domain.OrderCancelled,
	},
	domain.OrderConfirmed: {
		domain.ActionShip: domain.OrderShipped,
	},
	domain.OrderShipped: {
		domain.ActionDeliver: domain.OrderDelivered,
	},
}

// NextOrderState returns the state reached by applying action in state from.
func NextOrderState(from domain.OrderState, action domain.OrderAction) (domain.OrderState, bool) {
	to, ok := orderEdges[from][action]
	return to, ok
}

// AllowedOrderActions lists the actions to offer for an order in state.
// Terminal states have none.
func AllowedOrderActions(state domain.OrderState) []domain.OrderAction {
	out := []domain.OrderAction{}
	for _, action := range domain.OrderActions {
		if _, ok := orderEdges[state][action]; ok {
			out = append(out, action)
		}
	}
	return out
}

func IsTerminal(state domain.OrderState) bool {
	return len(orderEdges[state]) == 0
}

// ApplyOrderAction moves order along the state machine. Besides the state it
// records the action's details: delay keeps the note as the reason and the
// delayed-until date, confirm may set the expected delivery date, ship records
// the tracking code, deliver stamps the delivery date. A non-blank note is
// appended to the order's notes.
func ApplyOrderAction(order domain.Order, req domain.OrderActionRequest, now time.Time) (domain.ActionResult, error) {
	if !slices.Contains(domain.OrderActions, req.Action) {
		return domain.ActionResult{}, invalid("action", "unknown order action %q", req.Action)
	}
	to, ok := NextOrderState(order.OrderState, req.Action)
	if !ok {
		return domain.ActionResult{}, &TransitionError{
			Entity: domain.EntityOrder,
			ID:     order.ID,
			From:   order.OrderState.String(),
			Action: string(req.Action),
		}
	}

	next := order.Clone()
	note := strings.TrimSpace(req.Note)

	switch req.Action {
	case domain.ActionDelay:
		if req.DelayedUntil != nil && !req.DelayedUntil.After(now) {
			return domain.ActionResult{}, invalid("delayed_until", "must be in the future")
		}
		next.DelayedUntil = nil
		if req.DelayedUntil != nil {
			next.DelayedUntil = domain.TimePtr(*req.DelayedUntil)
		}
		if note != "" {
			next.DelayedReason = domain.StringPtr(note)
		}
	case domain.ActionConfirm:
		if req.DeliveryDate != nil {
			if req.DeliveryDate.Before(order.OrderDate) {
				return domain.ActionResult{}, invalid("delivery_date", "must not be before the order date")
			}
			next.DeliveryDate = domain.TimePtr(*req.DeliveryDate)
		}
		next.DelayedUntil = nil
	case domain.ActionShip:
		if code := strings.TrimSpace(req.TrackingCode); code != "" {
			next.TrackingCode = domain.StringPtr(code)
		}
	case domain.ActionDeliver:
		next.DeliveryDate = domain.TimePtr(now)
	}

	next.OrderState = to
	if note != "" {
		next.Notes = append(next.Notes, note)
	}

	return domain.ActionResult{
		ActionID:  req.ActionID,
		Entity:    domain.EntityOrder,
		EntityID:  order.ID,
		Action:    string(req.Action),
		From:      order.OrderState.String(),
		To:        to.String(),
		Note:      note,
		AppliedAt: now,
		Order:     &next,
	}, nil
}
