package report

import (
	"iter"
	"strings"

	"github.com/shopspring/decimal"

	"matjar/backoffice/internal/domain"
)

type ReturnSummary struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	// TotalRefunds sums the refund amounts of approved returns, paid or not.
	TotalRefunds decimal.Decimal `json:"total_refunds"`
	// PaidRefunds covers only approved returns whose refund date is set.
	PaidRefunds decimal.Decimal `json:"paid_refunds"`
}

func ReturnStats(returns iter.Seq[domain.Return]) ReturnSummary {
	var out ReturnSummary
	for r := range returns {
		out.Total++
		switch r.ApprovalStatus {
		case domain.ApprovalPending:
			out.Pending++
		case domain.ApprovalApproved:
			out.Approved++
			out.TotalRefunds = out.TotalRefunds.Add(r.RefundAmount)
			if r.Refunded() {
				out.PaidRefunds = out.PaidRefunds.Add(r.RefundAmount)
			}
		case domain.ApprovalRejected:
			out.Rejected++
		}
	}
	return out
}

type CustomerSummary struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Inactive      int `json:"inactive"`
	Banned        int `json:"banned"`
	WithSubSystem int `json:"with_sub_system"`
}

func CustomerStats(customers iter.Seq[domain.Customer]) CustomerSummary {
	var out CustomerSummary
	for c := range customers {
		out.Total++
		switch c.CustomerState {
		case domain.CustomerActive:
			out.Active++
		case domain.CustomerInactive:
			out.Inactive++
		case domain.CustomerBanned:
			out.Banned++
		}
		if c.SubSystem != nil {
			out.WithSubSystem++
		}
	}
	return out
}

// DatasetKind selects a report table.
type DatasetKind string

const (
	DatasetAll       DatasetKind = "all"
	DatasetSales     DatasetKind = "sales"
	DatasetCancelled DatasetKind = "cancelled"
	DatasetReturned  DatasetKind = "returned"
	DatasetCustomers DatasetKind = "customers"
)

func ParseDatasetKind(raw string) DatasetKind {
	switch k := DatasetKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case DatasetSales, DatasetCancelled, DatasetReturned, DatasetCustomers:
		return k
	default:
		return DatasetAll
	}
}

// Directory resolves display names for dataset rows. *entity.Store implements it.
type Directory interface {
	CustomerName(id int64) string
	CustomerPhone(id int64) string
}

type DatasetRow struct {
	domain.Order
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// Dataset builds the rows of a report table. Sales excludes cancelled orders;
// the customers table lists every order with its customer details.
func Dataset(kind DatasetKind, orders iter.Seq[domain.Order], dir Directory) []DatasetRow {
	rows := []DatasetRow{}
	for o := range orders {
		switch kind {
		case DatasetSales:
			if o.OrderState == domain.OrderCancelled {
				continue
			}
		case DatasetCancelled:
			if o.OrderState != domain.OrderCancelled {
				continue
			}
		case DatasetReturned:
			if o.OrderState != domain.OrderReturned {
				continue
			}
		}
		rows = append(rows, DatasetRow{
			Order:         o,
			CustomerName:  dir.CustomerName(o.CustomerID),
			CustomerPhone: dir.CustomerPhone(o.CustomerID),
		})
	}
	return rows
}
