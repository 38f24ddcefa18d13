// Package query filters entity sequences by operator-supplied criteria.
//
// Every filter is stable: it yields a subsequence of its input in the input
// order. Within one criteria value the dimensions are ANDed; a zero dimension
// (empty search, nil status, nil date) matches everything. Search terms match
// any of the listed fields, case-insensitively.
package query

import (
	"iter"
	"strconv"
	"strings"
	"time"

	"matjar/backoffice/internal/domain"
)

// CustomerFinder resolves customers for searches that cover customer fields.
// *entity.Store implements it.
type CustomerFinder interface {
	FindCustomer(id int64) (domain.Customer, error)
}

type OrderCriteria struct {
	Search string
	Status *domain.OrderState
	Date   *time.Time
}

type CustomerCriteria struct {
	Search string
	State  *domain.CustomerState
}

type ProductCriteria struct {
	Search   string
	Category string
	Level    *domain.StockLevel
}

type ReturnCriteria struct {
	Search string
	Status *domain.ApprovalStatus
	Date   *time.Time
}

func filter[T any](seq iter.Seq[T], keep func(T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range seq {
			if keep(v) && !yield(v) {
				return
			}
		}
	}
}

// FilterOrders matches the search term against the customer's name and phone,
// the order id, the shipping address and the tracking code. customers may be
// nil, in which case customer fields never match.
func FilterOrders(orders iter.Seq[domain.Order], customers CustomerFinder, c OrderCriteria) iter.Seq[domain.Order] {
	term := normalize(c.Search)
	return filter(orders, func(o domain.Order) bool {
		if c.Status != nil && o.OrderState != *c.Status {
			return false
		}
		if c.Date != nil && !SameDay(o.OrderDate, *c.Date) {
			return false
		}
		return term == "" || orderMatches(o, customers, term)
	})
}

func orderMatches(o domain.Order, customers CustomerFinder, term string) bool {
	if customerMatches(customers, o.CustomerID, term) {
		return true
	}
	return contains(strconv.FormatInt(o.ID, 10), term) ||
		contains(o.ShippingAddress, term) ||
		contains(domain.StringOr(o.TrackingCode, ""), term)
}

func customerMatches(customers CustomerFinder, id int64, term string) bool {
	if customers == nil {
		return false
	}
	cust, err := customers.FindCustomer(id)
	if err != nil {
		return false
	}
	return contains(cust.FullName, term) || contains(cust.Phone, term)
}

// FilterCustomers matches name, phone, location and sub-system name.
func FilterCustomers(customers iter.Seq[domain.Customer], c CustomerCriteria) iter.Seq[domain.Customer] {
	term := normalize(c.Search)
	return filter(customers, func(cust domain.Customer) bool {
		if c.State != nil && cust.CustomerState != *c.State {
			return false
		}
		if term == "" {
			return true
		}
		if cust.SubSystem != nil && contains(cust.SubSystem.Name, term) {
			return true
		}
		return contains(cust.FullName, term) || contains(cust.Phone, term) || contains(cust.Location, term)
	})
}

// FilterProducts matches name, SKU, supplier and id. Category compares exactly.
func FilterProducts(products iter.Seq[domain.Product], c ProductCriteria) iter.Seq[domain.Product] {
	term := normalize(c.Search)
	category := strings.TrimSpace(c.Category)
	return filter(products, func(p domain.Product) bool {
		if category != "" && p.Category != category {
			return false
		}
		if c.Level != nil && p.StockLevel() != *c.Level {
			return false
		}
		if term == "" {
			return true
		}
		return contains(p.Name, term) || contains(p.SKU, term) || contains(p.Supplier, term) ||
			contains(strconv.FormatInt(p.ID, 10), term)
	})
}

// FilterReturns matches the customer's name and phone, the order id and the
// return reason. Date compares the return date.
func FilterReturns(returns iter.Seq[domain.Return], customers CustomerFinder, c ReturnCriteria) iter.Seq[domain.Return] {
	term := normalize(c.Search)
	return filter(returns, func(r domain.Return) bool {
		if c.Status != nil && r.ApprovalStatus != *c.Status {
			return false
		}
		if c.Date != nil && !SameDay(r.ReturnDate, *c.Date) {
			return false
		}
		if term == "" {
			return true
		}
		return customerMatches(customers, r.CustomerID, term) ||
			contains(strconv.FormatInt(r.ID, 10), term) ||
			contains(r.ReturnReason, term)
	})
}

// ByState yields the orders in one state, as listed on the per-state pages.
func ByState(orders iter.Seq[domain.Order], state domain.OrderState) iter.Seq[domain.Order] {
	return FilterOrders(orders, nil, OrderCriteria{Status: &state})
}

// OrdersBetween yields orders placed in [from, end of to's day]. A nil bound is open.
func OrdersBetween(orders iter.Seq[domain.Order], from, to *time.Time) iter.Seq[domain.Order] {
	var end time.Time
	if to != nil {
		end = StartOfDay(*to).AddDate(0, 0, 1)
	}
	return filter(orders, func(o domain.Order) bool {
		if from != nil && o.OrderDate.Before(*from) {
			return false
		}
		if to != nil && !o.OrderDate.Before(end) {
			return false
		}
		return true
	})
}

// SameDay compares the UTC calendar days of a and b, ignoring the time of day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func contains(field, term string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), term)
}
