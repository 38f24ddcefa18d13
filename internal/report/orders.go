// Package report derives dashboard statistics from entity sequences.
package report

import (
	"iter"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/query"
)

// salesStates are the states whose orders count as sales in charts and rankings.
var salesStates = map[domain.OrderState]bool{
	domain.OrderConfirmed: true,
	domain.OrderShipped:   true,
	domain.OrderDelivered: true,
}

// IsSale reports whether an order in state s counts towards sales charts.
func IsSale(s domain.OrderState) bool {
	return salesStates[s]
}

type OrderSummary struct {
	TotalOrders     int             `json:"total_orders"`
	TodayOrders     int             `json:"today_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	UniqueCustomers int             `json:"unique_customers"`
}

// OrderStats counts every order regardless of state. Revenue includes shipping.
func OrderStats(orders iter.Seq[domain.Order], now time.Time) OrderSummary {
	var out OrderSummary
	customers := make(map[int64]struct{})
	for o := range orders {
		out.TotalOrders++
		if query.SameDay(o.OrderDate, now) {
			out.TodayOrders++
		}
		out.TotalRevenue = out.TotalRevenue.Add(o.Amount())
		customers[o.CustomerID] = struct{}{}
	}
	out.UniqueCustomers = len(customers)
	return out
}

type SalesSeries struct {
	Period  query.Period      `json:"period"`
	Buckets []decimal.Decimal `json:"buckets"`
	Total   decimal.Decimal   `json:"total"`
	// Average is taken over the buckets that have any sales.
	Average decimal.Decimal `json:"average"`
	Max     decimal.Decimal `json:"max"`
}

// SalesByPeriod buckets sales revenue:
//
//	week     7 buckets by weekday, Sunday first
//	month    30 buckets by day of month; the 31st is dropped
//	quarter  13 buckets by age in weeks relative to now, oldest first
//	year     12 buckets by month
//
// Unknown periods behave as month. Orders whose bucket falls outside the range
// are dropped.
func SalesByPeriod(orders iter.Seq[domain.Order], period query.Period, now time.Time) SalesSeries {
	period = query.ParsePeriod(string(period))

	var buckets []decimal.Decimal
	var index func(t time.Time) int
	switch period {
	case query.PeriodWeek:
		buckets = make([]decimal.Decimal, 7)
		index = func(t time.Time) int { return int(t.UTC().Weekday()) }
	case query.PeriodQuarter:
		buckets = make([]decimal.Decimal, 13)
		index = func(t time.Time) int {
			days := math.Ceil(math.Abs(now.Sub(t).Hours()) / 24)
			return int(days) / 7
		}
	case query.PeriodYear:
		buckets = make([]decimal.Decimal, 12)
		index = func(t time.Time) int { return int(t.UTC().Month()) - 1 }
	default:
		buckets = make([]decimal.Decimal, 30)
		index = func(t time.Time) int { return t.UTC().Day() - 1 }
	}

	for o := range orders {
		if !IsSale(o.OrderState) {
			continue
		}
		idx := index(o.OrderDate)
		if idx < 0 || idx >= len(buckets) {
			continue
		}
		buckets[idx] = buckets[idx].Add(o.Amount())
	}
	if period == query.PeriodQuarter {
		for i, j := 0, len(buckets)-1; i < j; i, j = i+1, j-1 {
			buckets[i], buckets[j] = buckets[j], buckets[i]
		}
	}

	series := SalesSeries{Period: period, Buckets: buckets}
	filled := 0
	for _, b := range buckets {
		series.Total = series.Total.Add(b)
		if b.GreaterThan(series.Max) {
			series.Max = b
		}
		if !b.IsZero() {
			filled++
		}
	}
	if filled > 0 {
		series.Average = series.Total.DivRound(decimal.NewFromInt(int64(filled)), 2)
	}
	return series
}

// Summary holds the headline metrics of the reports page. Only shipped and
// delivered orders count towards TotalSales.
type Summary struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalOrders       int             `json:"total_orders"`
	UniqueCustomers   int             `json:"unique_customers"`
	CancelledOrders   int             `json:"cancelled_orders"`
	ReturnedOrders    int             `json:"returned_orders"`
	CancelRate        float64         `json:"cancel_rate"`
	ReturnRate        float64         `json:"return_rate"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

func Summarize(orders iter.Seq[domain.Order]) Summary {
	var out Summary
	customers := make(map[int64]struct{})
	for o := range orders {
		out.TotalOrders++
		customers[o.CustomerID] = struct{}{}
		switch o.OrderState {
		case domain.OrderShipped, domain.OrderDelivered:
			out.TotalSales = out.TotalSales.Add(o.Amount())
		case domain.OrderCancelled:
			out.CancelledOrders++
		case domain.OrderReturned:
			out.ReturnedOrders++
		}
	}
	out.UniqueCustomers = len(customers)
	if out.TotalOrders == 0 {
		return out
	}
	out.CancelRate = percent(out.CancelledOrders, out.TotalOrders)
	out.ReturnRate = percent(out.ReturnedOrders, out.TotalOrders)
	if kept := out.TotalOrders - out.CancelledOrders; kept > 0 {
		out.AverageOrderValue = out.TotalSales.DivRound(decimal.NewFromInt(int64(kept)), 2)
	}
	return out
}

type StatusCount struct {
	State   domain.OrderState `json:"state"`
	Count   int               `json:"count"`
	Percent float64           `json:"percent"`
}

// StatusDistribution counts orders per state. Every defined state is listed,
// in code order, including those with no orders. Orders with undefined
// states are not counted.
func StatusDistribution(orders iter.Seq[domain.Order]) []StatusCount {
	counts := make([]StatusCount, len(domain.OrderStates))
	for i, s := range domain.OrderStates {
		counts[i].State = s
	}
	total := 0
	for o := range orders {
		if !o.OrderState.Valid() {
			continue
		}
		counts[o.OrderState].Count++
		total++
	}
	for i := range counts {
		counts[i].Percent = percent(counts[i].Count, total)
	}
	return counts
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
