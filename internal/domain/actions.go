package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderAction string

const (
	ActionConfirm OrderAction = "confirm"
	ActionDelay   OrderAction = "delay"
	ActionCancel  OrderAction = "cancel"
	ActionShip    OrderAction = "ship"
	ActionDeliver OrderAction = "deliver"
)

var OrderActions = []OrderAction{ActionConfirm, ActionDelay, ActionCancel, ActionShip, ActionDeliver}

type ReturnAction string

const (
	ActionApprove ReturnAction = "approve"
	ActionReject  ReturnAction = "reject"
	ActionRefund  ReturnAction = "refund"
)

var ReturnActions = []ReturnAction{ActionApprove, ActionReject, ActionRefund}

// OrderActionRequest carries an operator action on an order. Fields other than
// ActionID, Action and Note only apply to the actions named in their comment.
type OrderActionRequest struct {
	ActionID string      `json:"action_id"`
	Action   OrderAction `json:"action"`
	Note     string      `json:"note,omitempty"`
	// delay
	DelayedUntil *time.Time `json:"delayed_until,omitempty"`
	// confirm
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	// ship
	TrackingCode string `json:"tracking_code,omitempty"`
}

type ReturnActionRequest struct {
	ActionID     string           `json:"action_id"`
	Action       ReturnAction     `json:"action"`
	Note         string           `json:"note,omitempty"`
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
}

type StockMovementRequest struct {
	ActionID string       `json:"action_id"`
	Type     MovementType `json:"type"`
	// Quantity is the moved amount for additions and withdrawals and the
	// counted stock for adjustments.
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

// ActionResult records one accepted mutation. Exactly one of Order, Return
// and Product is set, matching Entity.
type ActionResult struct {
	ActionID  string         `json:"action_id"`
	Entity    string         `json:"entity"`
	EntityID  int64          `json:"entity_id"`
	Action    string         `json:"action"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Note      string         `json:"note,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	AppliedAt time.Time      `json:"applied_at"`
	Duplicate bool           `json:"duplicate"`
	Order     *Order         `json:"order,omitempty"`
	Return    *Return        `json:"return,omitempty"`
	Product   *Product       `json:"product,omitempty"`
	Movement  *StockMovement `json:"movement,omitempty"`
}
