package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID              int64           `json:"id" yaml:"id"`
	CustomerID      int64           `json:"customer_id" yaml:"customer_id"`
	OrderDate       time.Time       `json:"order_date" yaml:"order_date"`
	DeliveryDate    *time.Time      `json:"delivery_date,omitempty" yaml:"delivery_date,omitempty"`
	DelayedUntil    *time.Time      `json:"delayed_until,omitempty" yaml:"delayed_until,omitempty"`
	DelayedReason   *string         `json:"delayed_reason,omitempty" yaml:"delayed_reason,omitempty"`
	TrackingCode    *string         `json:"tracking_code,omitempty" yaml:"tracking_code,omitempty"`
	ShippingAddress string          `json:"shipping_address" yaml:"shipping_address"`
	TotalPrice      decimal.Decimal `json:"total_price" yaml:"total_price"`
	ShippingCost    decimal.Decimal `json:"shipping_cost" yaml:"shipping_cost"`
	OrderState      OrderState      `json:"order_state" yaml:"order_state"`
	ImageURL        string          `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Notes           []string        `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Amount is the price the customer pays, shipping included.
func (o Order) Amount() decimal.Decimal {
	return o.TotalPrice.Add(o.ShippingCost)
}

type SubSystem struct {
	Name           string    `json:"name" yaml:"name"`
	Domain         string    `json:"domain" yaml:"domain"`
	SubSystemState int       `json:"sub_system_state" yaml:"sub_system_state"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

type Customer struct {
	ID            int64         `json:"id" yaml:"id"`
	FullName      string        `json:"full_name" yaml:"full_name"`
	Phone         string        `json:"phone" yaml:"phone"`
	Location      string        `json:"location" yaml:"location"`
	CustomerState CustomerState `json:"customer_state" yaml:"customer_state"`
	SubSystem     *SubSystem    `json:"sub_system,omitempty" yaml:"sub_system,omitempty"`
}

// Return is the return record of an order whose state is OrderReturned.
type Return struct {
	Order           `yaml:",inline"`
	ReturnDate      time.Time       `json:"return_date" yaml:"return_date"`
	ReturnReason    string          `json:"return_reason" yaml:"return_reason"`
	ApprovalStatus  ApprovalStatus  `json:"approval_status" yaml:"approval_status"`
	RefundAmount    decimal.Decimal `json:"refund_amount" yaml:"refund_amount"`
	RefundDate      *time.Time      `json:"refund_date,omitempty" yaml:"refund_date,omitempty"`
	InspectedBy     *string         `json:"inspected_by,omitempty" yaml:"inspected_by,omitempty"`
	InspectionNotes *string         `json:"inspection_notes,omitempty" yaml:"inspection_notes,omitempty"`
}

// ReturnRecord is the persisted part of a Return; the order half lives with the orders.
type ReturnRecord struct {
	OrderID         int64           `json:"order_id" yaml:"order_id"`
	ReturnDate      time.Time       `json:"return_date" yaml:"return_date"`
	ReturnReason    string          `json:"return_reason" yaml:"return_reason"`
	ApprovalStatus  ApprovalStatus  `json:"approval_status" yaml:"approval_status"`
	RefundAmount    decimal.Decimal `json:"refund_amount" yaml:"refund_amount"`
	RefundDate      *time.Time      `json:"refund_date,omitempty" yaml:"refund_date,omitempty"`
	InspectedBy     *string         `json:"inspected_by,omitempty" yaml:"inspected_by,omitempty"`
	InspectionNotes *string         `json:"inspection_notes,omitempty" yaml:"inspection_notes,omitempty"`
}

func (r Return) Record() ReturnRecord {
	return ReturnRecord{
		OrderID:         r.ID,
		ReturnDate:      r.ReturnDate,
		ReturnReason:    r.ReturnReason,
		ApprovalStatus:  r.ApprovalStatus,
		RefundAmount:    r.RefundAmount,
		RefundDate:      r.RefundDate,
		InspectedBy:     r.InspectedBy,
		InspectionNotes: r.InspectionNotes,
	}
}

// JoinReturn combines an order with its return record.
func JoinReturn(order Order, record ReturnRecord) Return {
	return Return{
		Order:           order,
		ReturnDate:      record.ReturnDate,
		ReturnReason:    record.ReturnReason,
		ApprovalStatus:  record.ApprovalStatus,
		RefundAmount:    record.RefundAmount,
		RefundDate:      record.RefundDate,
		InspectedBy:     record.InspectedBy,
		InspectionNotes: record.InspectionNotes,
	}
}

// Refunded reports whether the refund of an approved return has been paid out.
func (r Return) Refunded() bool {
	return r.ApprovalStatus == ApprovalApproved && r.RefundDate != nil
}

type Product struct {
	ID              int64           `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	SKU             string          `json:"sku" yaml:"sku"`
	Category        string          `json:"category" yaml:"category"`
	Supplier        string          `json:"supplier" yaml:"supplier"`
	Price           decimal.Decimal `json:"price" yaml:"price"`
	CostPrice       decimal.Decimal `json:"cost_price" yaml:"cost_price"`
	StockQuantity   int             `json:"stock_quantity" yaml:"stock_quantity"`
	MinStockLevel   int             `json:"min_stock_level" yaml:"min_stock_level"`
	Description     string          `json:"description" yaml:"description"`
	ImageURL        string          `json:"image_url" yaml:"image_url"`
	LastRestockDate time.Time       `json:"last_restock_date" yaml:"last_restock_date"`
}

// StockLevel derives the stock bucket. A quantity equal to the minimum counts as low.
func (p Product) StockLevel() StockLevel {
	switch {
	case p.StockQuantity <= 0:
		return StockOut
	case p.StockQuantity <= p.MinStockLevel:
		return StockLow
	default:
		return StockIn
	}
}

// StockValue is the inventory value of the product at cost.
func (p Product) StockValue() decimal.Decimal {
	return p.CostPrice.Mul(decimal.NewFromInt(int64(p.StockQuantity)))
}

type StockMovement struct {
	ID            int64        `json:"id" yaml:"id"`
	ProductID     int64        `json:"product_id" yaml:"product_id"`
	Date          time.Time    `json:"date" yaml:"date"`
	Type          MovementType `json:"type" yaml:"type"`
	Quantity      int          `json:"quantity" yaml:"quantity"`
	PreviousStock int          `json:"previous_stock" yaml:"previous_stock"`
	NewStock      int          `json:"new_stock" yaml:"new_stock"`
	Notes         string       `json:"notes" yaml:"notes"`
}

type Actor struct {
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RoleAdmin        = "admin"
	RoleAccountant   = "accountant"
	RoleStockManager = "stock_manager"
	RoleStaff        = "staff"
)

// IsKnownRole reports whether role is one the back office issues tokens for.
func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAccountant, RoleStockManager, RoleStaff:
		return true
	default:
		return false
	}
}

const (
	EntityOrder   = "order"
	EntityReturn  = "return"
	EntityProduct = "product"
)
