package service

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/entity"
	"matjar/backoffice/internal/lifecycle"
	"matjar/backoffice/internal/query"
	"matjar/backoffice/internal/report"
	"matjar/backoffice/internal/vocab"
)

type OrderView struct {
	domain.Order
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	StatusLabel   string          `json:"status_label"`
	Amount        decimal.Decimal `json:"amount"`
}

type OrderDetail struct {
	OrderView
	Customer       *domain.Customer     `json:"customer,omitempty"`
	AllowedActions []domain.OrderAction `json:"allowed_actions"`
}

type CustomerView struct {
	domain.Customer
	StatusLabel   string `json:"status_label"`
	SubSystemName string `json:"sub_system_name"`
}

type CustomerDetail struct {
	CustomerView
	Orders []OrderView `json:"orders"`
}

type ProductView struct {
	domain.Product
	StockLevel      string          `json:"stock_level"`
	StockLevelLabel string          `json:"stock_level_label"`
	StockValue      decimal.Decimal `json:"stock_value"`
}

type MovementView struct {
	domain.StockMovement
	TypeLabel string `json:"type_label"`
}

type ReturnView struct {
	domain.Return
	CustomerName   string                `json:"customer_name"`
	CustomerPhone  string                `json:"customer_phone"`
	StatusLabel    string                `json:"status_label"`
	Refunded       bool                  `json:"refunded"`
	AllowedActions []domain.ReturnAction `json:"allowed_actions"`
}

type StatusCountView struct {
	report.StatusCount
	Label string `json:"label"`
}

// OrderListRequest filters the order list. View narrows to one state before
// the criteria apply, for the per-state pages.
type OrderListRequest struct {
	query.OrderCriteria
	View *domain.OrderState
}

// ReportRequest selects the orders a report covers. A nil From falls back to
// the start of Period's window; a nil To leaves the range open.
type ReportRequest struct {
	From   *time.Time
	To     *time.Time
	Period query.Period
	Kind   report.DatasetKind
	Limit  int
}

func (s *Service) ListOrders(ctx context.Context, labels vocab.Labels, req OrderListRequest) ([]OrderView, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return nil, err
	}
	orders := snap.Orders()
	if req.View != nil {
		orders = query.ByState(orders, *req.View)
	}

	out := []OrderView{}
	for o := range query.FilterOrders(orders, snap, req.OrderCriteria) {
		out = append(out, orderView(snap, o))
	}
	return out, nil
}

func (s *Service) OrderStats(ctx context.Context) (report.OrderSummary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.OrderSummary{}, err
	}
	return report.OrderStats(snap.Orders(), s.now()), nil
}

func (s *Service) GetOrder(ctx context.Context, labels vocab.Labels, id int64) (OrderDetail, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return OrderDetail{}, err
	}
	order, err := snap.FindOrder(id)
	if err != nil {
		return OrderDetail{}, err
	}
	detail := OrderDetail{
		OrderView:      orderView(snap, order),
		AllowedActions: lifecycle.AllowedOrderActions(order.OrderState),
	}
	if customer, err := snap.FindCustomer(order.CustomerID); err == nil {
		detail.Customer = &customer
	}
	return detail, nil
}

func (s *Service) ListCustomers(ctx context.Context, labels vocab.Labels, criteria query.CustomerCriteria) ([]CustomerView, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return nil, err
	}
	out := []CustomerView{}
	for c := range query.FilterCustomers(snap.Customers(), criteria) {
		out = append(out, customerView(snap, c))
	}
	return out, nil
}

func (s *Service) CustomerStats(ctx context.Context) (report.CustomerSummary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.CustomerSummary{}, err
	}
	return report.CustomerStats(snap.Customers()), nil
}

// GetCustomer returns a customer with their orders, newest first.
func (s *Service) GetCustomer(ctx context.Context, labels vocab.Labels, id int64) (CustomerDetail, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return CustomerDetail{}, err
	}
	customer, err := snap.FindCustomer(id)
	if err != nil {
		return CustomerDetail{}, err
	}
	detail := CustomerDetail{CustomerView: customerView(snap, customer), Orders: []OrderView{}}
	for o := range snap.Orders() {
		if o.CustomerID == id {
			detail.Orders = append(detail.Orders, orderView(snap, o))
		}
	}
	slices.SortStableFunc(detail.Orders, func(a, b OrderView) int {
		return b.OrderDate.Compare(a.OrderDate)
	})
	return detail, nil
}

func (s *Service) ListProducts(ctx context.Context, labels vocab.Labels, criteria query.ProductCriteria) ([]ProductView, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return nil, err
	}
	out := []ProductView{}
	for p := range query.FilterProducts(snap.Products(), criteria) {
		out = append(out, ProductView{
			Product:         p,
			StockLevel:      p.StockLevel().String(),
			StockLevelLabel: labels.StockLevel(p.StockLevel()),
			StockValue:      p.StockValue(),
		})
	}
	return out, nil
}

func (s *Service) ProductStats(ctx context.Context) (report.StockSummary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.StockSummary{}, err
	}
	return report.StockStats(snap.Products()), nil
}

// ProductMovements lists a product's stock movements, newest first.
func (s *Service) ProductMovements(ctx context.Context, labels vocab.Labels, productID int64) ([]MovementView, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return nil, err
	}
	if _, err := snap.FindProduct(productID); err != nil {
		return nil, err
	}
	out := []MovementView{}
	for m := range snap.ProductMovements(productID) {
		out = append(out, MovementView{StockMovement: m, TypeLabel: labels.MovementType(m.Type)})
	}
	return out, nil
}

func (s *Service) ListReturns(ctx context.Context, labels vocab.Labels, criteria query.ReturnCriteria) ([]ReturnView, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return nil, err
	}
	out := []ReturnView{}
	for r := range query.FilterReturns(snap.Returns(), snap, criteria) {
		out = append(out, ReturnView{
			Return:         r,
			CustomerName:   snap.CustomerName(r.CustomerID),
			CustomerPhone:  snap.CustomerPhone(r.CustomerID),
			StatusLabel:    labels.ReturnStatus(r.ApprovalStatus),
			Refunded:       r.Refunded(),
			AllowedActions: lifecycle.AllowedReturnActions(r),
		})
	}
	return out, nil
}

func (s *Service) ReturnStats(ctx context.Context) (report.ReturnSummary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.ReturnSummary{}, err
	}
	return report.ReturnStats(snap.Returns()), nil
}

func (s *Service) ReportSummary(ctx context.Context, req ReportRequest) (report.Summary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(s.reportOrders(snap, req)), nil
}

func (s *Service) SalesReport(ctx context.Context, req ReportRequest) (report.SalesSeries, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return report.SalesSeries{}, err
	}
	return report.SalesByPeriod(s.reportOrders(snap, req), req.Period, s.now()), nil
}

// TopProducts ranks products within the report range. Unknown products carry
// the placeholder name in the requested language.
func (s *Service) TopProducts(ctx context.Context, labels vocab.Labels, req ReportRequest) ([]report.TopProduct, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return nil, err
	}
	top := report.TopProducts(s.reportOrders(snap, req), snap.Products(), req.Limit)
	for i := range top {
		if !top[i].Known {
			top[i].Name = labels.UnknownProduct()
		}
	}
	return top, nil
}

func (s *Service) StatusDistribution(ctx context.Context, labels vocab.Labels, req ReportRequest) ([]StatusCountView, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return nil, err
	}
	counts := report.StatusDistribution(s.reportOrders(snap, req))
	out := make([]StatusCountView, 0, len(counts))
	for _, c := range counts {
		out = append(out, StatusCountView{StatusCount: c, Label: labels.OrderStatus(c.State)})
	}
	return out, nil
}

func (s *Service) Dataset(ctx context.Context, labels vocab.Labels, req ReportRequest) ([]report.DatasetRow, error) {
	snap, err := s.labelled(ctx, labels)
	if err != nil {
		return nil, err
	}
	return report.Dataset(req.Kind, s.reportOrders(snap, req), snap), nil
}

func (s *Service) labelled(ctx context.Context, labels vocab.Labels) (*entity.Store, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.WithLabels(labels), nil
}

func (s *Service) reportOrders(snap *entity.Store, req ReportRequest) iter.Seq[domain.Order] {
	from := req.From
	if from == nil && req.Period != "" {
		start := query.PeriodStart(req.Period, s.now())
		from = &start
	}
	return query.OrdersBetween(snap.Orders(), from, req.To)
}

func orderView(snap *entity.Store, o domain.Order) OrderView {
	return OrderView{
		Order:         o,
		CustomerName:  snap.CustomerName(o.CustomerID),
		CustomerPhone: snap.CustomerPhone(o.CustomerID),
		StatusLabel:   snap.Labels().OrderStatus(o.OrderState),
		Amount:        o.Amount(),
	}
}

func customerView(snap *entity.Store, c domain.Customer) CustomerView {
	return CustomerView{
		Customer:      c,
		StatusLabel:   snap.Labels().CustomerStatus(c.CustomerState),
		SubSystemName: snap.SubSystemName(c.ID),
	}
}
