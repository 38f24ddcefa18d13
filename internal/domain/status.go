package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// OrderState is the integer-coded lifecycle state of an order.
type OrderState int

const (
	OrderNew OrderState = iota
	OrderConfirmed
	OrderDelayed
	OrderCancelled
	OrderShipped
	OrderDelivered
	OrderReturned
	OrderCompleted
)

// OrderStates lists every defined state in code order.
var OrderStates = []OrderState{
	OrderNew, OrderConfirmed, OrderDelayed, OrderCancelled,
	OrderShipped, OrderDelivered, OrderReturned, OrderCompleted,
}

var orderStateNames = map[OrderState]string{
	OrderNew:       "new",
	OrderConfirmed: "confirmed",
	OrderDelayed:   "delayed",
	OrderCancelled: "cancelled",
	OrderShipped:   "shipped",
	OrderDelivered: "delivered",
	OrderReturned:  "returned",
	OrderCompleted: "completed",
}

func (s OrderState) Valid() bool {
	return s >= OrderNew && s <= OrderCompleted
}

func (s OrderState) String() string {
	if name, ok := orderStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseOrderState accepts either the numeric code or the state name.
func ParseOrderState(raw string) (OrderState, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if code, err := strconv.Atoi(raw); err == nil {
		state := OrderState(code)
		if !state.Valid() {
			return 0, fmt.Errorf("unknown order state %d", code)
		}
		return state, nil
	}
	for state, name := range orderStateNames {
		if name == raw {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown order state %q", raw)
}

type CustomerState int

const (
	CustomerInactive CustomerState = iota
	CustomerActive
	CustomerBanned
)

var CustomerStates = []CustomerState{CustomerInactive, CustomerActive, CustomerBanned}

func (s CustomerState) Valid() bool {
	return s >= CustomerInactive && s <= CustomerBanned
}

func (s CustomerState) String() string {
	switch s {
	case CustomerInactive:
		return "inactive"
	case CustomerActive:
		return "active"
	case CustomerBanned:
		return "banned"
	default:
		return "unknown"
	}
}

func ParseCustomerState(raw string) (CustomerState, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if code, err := strconv.Atoi(raw); err == nil {
		state := CustomerState(code)
		if !state.Valid() {
			return 0, fmt.Errorf("unknown customer state %d", code)
		}
		return state, nil
	}
	for _, state := range CustomerStates {
		if state.String() == raw {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown customer state %q", raw)
}

// ApprovalStatus is the review state of a return.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

var ApprovalStatuses = []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalRejected}

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	default:
		return false
	}
}

func ParseApprovalStatus(raw string) (ApprovalStatus, error) {
	status := ApprovalStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown approval status %q", raw)
	}
	return status, nil
}

// StockLevel buckets a product by quantity on hand. Values are ordered from worst to best.
type StockLevel int

const (
	StockOut StockLevel = iota
	StockLow
	StockIn
)

var StockLevels = []StockLevel{StockOut, StockLow, StockIn}

func (l StockLevel) String() string {
	switch l {
	case StockOut:
		return "out-of-stock"
	case StockLow:
		return "low-stock"
	case StockIn:
		return "in-stock"
	default:
		return "unknown"
	}
}

// ParseStockLevel accepts the bucket name or the short forms out, low and normal.
func ParseStockLevel(raw string) (StockLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "out-of-stock", "out":
		return StockOut, nil
	case "low-stock", "low":
		return StockLow, nil
	case "in-stock", "in", "normal":
		return StockIn, nil
	default:
		return 0, fmt.Errorf("unknown stock level %q", raw)
	}
}

type MovementType string

const (
	MovementAddition   MovementType = "addition"
	MovementWithdrawal MovementType = "withdrawal"
	MovementAdjustment MovementType = "adjustment"
)

var MovementTypes = []MovementType{MovementAddition, MovementWithdrawal, MovementAdjustment}

func (t MovementType) Valid() bool {
	switch t {
	case MovementAddition, MovementWithdrawal, MovementAdjustment:
		return true
	default:
		return false
	}
}
