// Package entity holds an immutable snapshot of the back-office records.
//
// A Store is built once from loaded data and never changes. Every accessor
// hands out copies, so callers may keep or modify what they receive without
// affecting other readers. Changes are made by the lifecycle functions, which
// return new values that the service persists and reloads.
package entity

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/vocab"
)

var ErrNotFound = errors.New("not found")

// Data is the raw input of a snapshot, as loaded from a repository.
type Data struct {
	Customers []domain.Customer
	Orders    []domain.Order
	Products  []domain.Product
	Returns   []domain.ReturnRecord
	Movements []domain.StockMovement
}

type Store struct {
	customers []domain.Customer
	orders    []domain.Order
	products  []domain.Product
	returns   []domain.Return
	movements []domain.StockMovement

	customerIdx map[int64]int
	orderIdx    map[int64]int
	productIdx  map[int64]int
	returnIdx   map[int64]int

	labels vocab.Labels
}

// New builds a snapshot. Return records are joined to their orders; records
// whose order is missing or not in the returned state are not listed.
// On duplicate ids the first record wins.
func New(data Data) *Store {
	s := &Store{
		customers:   make([]domain.Customer, 0, len(data.Customers)),
		orders:      make([]domain.Order, 0, len(data.Orders)),
		products:    make([]domain.Product, 0, len(data.Products)),
		movements:   make([]domain.StockMovement, 0, len(data.Movements)),
		customerIdx: make(map[int64]int, len(data.Customers)),
		orderIdx:    make(map[int64]int, len(data.Orders)),
		productIdx:  make(map[int64]int, len(data.Products)),
		returnIdx:   make(map[int64]int, len(data.Returns)),
		labels:      vocab.Default,
	}

	for _, c := range data.Customers {
		if _, dup := s.customerIdx[c.ID]; dup {
			continue
		}
		s.customerIdx[c.ID] = len(s.customers)
		s.customers = append(s.customers, c.Clone())
	}
	for _, o := range data.Orders {
		if _, dup := s.orderIdx[o.ID]; dup {
			continue
		}
		s.orderIdx[o.ID] = len(s.orders)
		s.orders = append(s.orders, o.Clone())
	}
	for _, p := range data.Products {
		if _, dup := s.productIdx[p.ID]; dup {
			continue
		}
		s.productIdx[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	for _, rec := range data.Returns {
		idx, ok := s.orderIdx[rec.OrderID]
		if !ok || s.orders[idx].OrderState != domain.OrderReturned {
			continue
		}
		if _, dup := s.returnIdx[rec.OrderID]; dup {
			continue
		}
		s.returnIdx[rec.OrderID] = len(s.returns)
		s.returns = append(s.returns, domain.JoinReturn(s.orders[idx].Clone(), rec.Clone()))
	}
	s.movements = append(s.movements, data.Movements...)

	return s
}

// WithLabels returns a view of the same snapshot whose placeholder labels use l.
func (s *Store) WithLabels(l vocab.Labels) *Store {
	view := *s
	view.labels = l
	return &view
}

func (s *Store) Labels() vocab.Labels {
	return s.labels
}

func (s *Store) Orders() iter.Seq[domain.Order] {
	return func(yield func(domain.Order) bool) {
		for _, o := range s.orders {
			if !yield(o.Clone()) {
				return
			}
		}
	}
}

func (s *Store) Customers() iter.Seq[domain.Customer] {
	return func(yield func(domain.Customer) bool) {
		for _, c := range s.customers {
			if !yield(c.Clone()) {
				return
			}
		}
	}
}

func (s *Store) Products() iter.Seq[domain.Product] {
	return slices.Values(slices.Clip(s.products))
}

func (s *Store) Returns() iter.Seq[domain.Return] {
	return func(yield func(domain.Return) bool) {
		for _, r := range s.returns {
			if !yield(r.Clone()) {
				return
			}
		}
	}
}

func (s *Store) Movements() iter.Seq[domain.StockMovement] {
	return slices.Values(slices.Clip(s.movements))
}

// ProductMovements yields the movements of one product, newest first.
func (s *Store) ProductMovements(productID int64) iter.Seq[domain.StockMovement] {
	var out []domain.StockMovement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.StockMovement) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return slices.Values(out)
}

func (s *Store) FindCustomer(id int64) (domain.Customer, error) {
	idx, ok := s.customerIdx[id]
	if !ok {
		return domain.Customer{}, fmt.Errorf("%w: customer %d", ErrNotFound, id)
	}
	return s.customers[idx].Clone(), nil
}

func (s *Store) FindOrder(id int64) (domain.Order, error) {
	idx, ok := s.orderIdx[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return s.orders[idx].Clone(), nil
}

func (s *Store) FindProduct(id int64) (domain.Product, error) {
	idx, ok := s.productIdx[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return s.products[idx], nil
}

// FindReturn looks a return up by its order id.
func (s *Store) FindReturn(orderID int64) (domain.Return, error) {
	idx, ok := s.returnIdx[orderID]
	if !ok {
		return domain.Return{}, fmt.Errorf("%w: return %d", ErrNotFound, orderID)
	}
	return s.returns[idx].Clone(), nil
}

// CustomerName returns the customer's name, or the unknown label when the
// customer is not in the snapshot.
func (s *Store) CustomerName(id int64) string {
	idx, ok := s.customerIdx[id]
	if !ok {
		return s.labels.Unknown()
	}
	return s.customers[idx].FullName
}

// CustomerPhone falls back to the unknown label for a missing customer and to
// the unspecified label for a customer without a phone.
func (s *Store) CustomerPhone(id int64) string {
	idx, ok := s.customerIdx[id]
	if !ok {
		return s.labels.Unknown()
	}
	if s.customers[idx].Phone == "" {
		return s.labels.Unspecified()
	}
	return s.customers[idx].Phone
}

// SubSystemName falls back to the unspecified label for customers without a sub-system.
func (s *Store) SubSystemName(id int64) string {
	idx, ok := s.customerIdx[id]
	if !ok || s.customers[idx].SubSystem == nil || s.customers[idx].SubSystem.Name == "" {
		return s.labels.Unspecified()
	}
	return s.customers[idx].SubSystem.Name
}
