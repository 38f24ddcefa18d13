package report

import (
	"iter"
	"slices"

	"github.com/shopspring/decimal"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/vocab"
)

// DefaultTopProducts is the ranking size used when callers pass n <= 0.
const DefaultTopProducts = 5

type TopProduct struct {
	ImageURL  string          `json:"image_url"`
	ProductID int64           `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Known     bool            `json:"known"`
	Price     decimal.Decimal `json:"price"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
	// Share is relative to the sum of Total over the returned ranking.
	Share float64 `json:"share"`
	// ShareOfEligible is relative to all sales, ranked or not.
	ShareOfEligible float64 `json:"share_of_eligible"`
}

// TopProducts ranks products by the number of sales orders that carry their
// image URL. Orders have no line items, so the image URL stands in for the
// product. Ties keep the order in which the products were first sold. An image
// URL that matches no product is reported with the unknown-product label and a
// zero price.
func TopProducts(orders iter.Seq[domain.Order], products iter.Seq[domain.Product], n int) []TopProduct {
	if n <= 0 {
		n = DefaultTopProducts
	}

	byImage := make(map[string]domain.Product)
	for p := range products {
		if p.ImageURL == "" {
			continue
		}
		if _, seen := byImage[p.ImageURL]; !seen {
			byImage[p.ImageURL] = p
		}
	}

	var ranked []TopProduct
	position := make(map[string]int)
	for o := range orders {
		if !IsSale(o.OrderState) || o.ImageURL == "" {
			continue
		}
		idx, ok := position[o.ImageURL]
		if !ok {
			idx = len(ranked)
			position[o.ImageURL] = idx
			entry := TopProduct{ImageURL: o.ImageURL, Name: vocab.Default.UnknownProduct()}
			if p, found := byImage[o.ImageURL]; found {
				entry.ProductID = p.ID
				entry.Name = p.Name
				entry.Known = true
				entry.Price = p.Price
			}
			ranked = append(ranked, entry)
		}
		ranked[idx].Count++
	}

	eligible := decimal.Zero
	for i := range ranked {
		ranked[i].Total = ranked[i].Price.Mul(decimal.NewFromInt(int64(ranked[i].Count)))
		eligible = eligible.Add(ranked[i].Total)
	}

	slices.SortStableFunc(ranked, func(a, b TopProduct) int {
		return b.Count - a.Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	subtotal := decimal.Zero
	for _, p := range ranked {
		subtotal = subtotal.Add(p.Total)
	}
	for i := range ranked {
		ranked[i].Share = share(ranked[i].Total, subtotal)
		ranked[i].ShareOfEligible = share(ranked[i].Total, eligible)
	}
	return ranked
}

func share(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

type StockSummary struct {
	TotalProducts  int             `json:"total_products"`
	LowStock       int             `json:"low_stock"`
	OutOfStock     int             `json:"out_of_stock"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

// StockStats counts low stock as 0 < quantity <= minimum, so out-of-stock
// products are not counted twice.
func StockStats(products iter.Seq[domain.Product]) StockSummary {
	var out StockSummary
	for p := range products {
		out.TotalProducts++
		switch p.StockLevel() {
		case domain.StockOut:
			out.OutOfStock++
		case domain.StockLow:
			out.LowStock++
		}
		out.InventoryValue = out.InventoryValue.Add(p.StockValue())
	}
	return out
}
