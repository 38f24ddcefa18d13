package lifecycle

import (
	"math"
	"strings"
	"time"

	"matjar/backoffice/internal/domain"
)

// MaxStock is the largest quantity a product may hold; it matches the
// INTEGER stock column.
const MaxStock = math.MaxInt32

// ApplyStockMovement validates a movement against the product's current stock
// and returns the updated product together with the movement record. The
// movement id is left zero for the repository to assign.
//
// Additions and withdrawals move Quantity units; a withdrawal may not exceed
// the stock on hand. An adjustment sets the stock to the counted Quantity and
// records the absolute difference.
func ApplyStockMovement(p domain.Product, req domain.StockMovementRequest, now time.Time) (domain.ActionResult, error) {
	previous := p.StockQuantity
	var next, moved int

	switch req.Type {
	case domain.MovementAddition:
		if req.Quantity <= 0 {
			return domain.ActionResult{}, invalid("quantity", "must be greater than zero")
		}
		if req.Quantity > MaxStock-previous {
			return domain.ActionResult{}, invalid("quantity", "stock would exceed %d", MaxStock)
		}
		moved = req.Quantity
		next = previous + req.Quantity
	case domain.MovementWithdrawal:
		if req.Quantity <= 0 {
			return domain.ActionResult{}, invalid("quantity", "must be greater than zero")
		}
		if req.Quantity > previous {
			return domain.ActionResult{}, invalid("quantity", "withdrawal of %d exceeds stock on hand of %d", req.Quantity, previous)
		}
		moved = req.Quantity
		next = previous - req.Quantity
	case domain.MovementAdjustment:
		if req.Quantity < 0 {
			return domain.ActionResult{}, invalid("quantity", "counted stock must not be negative")
		}
		if req.Quantity > MaxStock {
			return domain.ActionResult{}, invalid("quantity", "counted stock must not exceed %d", MaxStock)
		}
		if req.Quantity == previous {
			return domain.ActionResult{}, invalid("quantity", "counted stock equals the current stock of %d", previous)
		}
		next = req.Quantity
		moved = next - previous
		if moved < 0 {
			moved = -moved
		}
	default:
		return domain.ActionResult{}, invalid("type", "unknown movement type %q", req.Type)
	}

	updated := p
	updated.StockQuantity = next
	if req.Type == domain.MovementAddition {
		updated.LastRestockDate = now
	}

	notes := strings.TrimSpace(req.Notes)
	movement := domain.StockMovement{
		ProductID:     p.ID,
		Date:          now,
		Type:          req.Type,
		Quantity:      moved,
		PreviousStock: previous,
		NewStock:      next,
		Notes:         notes,
	}

	return domain.ActionResult{
		ActionID:  req.ActionID,
		Entity:    domain.EntityProduct,
		EntityID:  p.ID,
		Action:    string(req.Type),
		From:      p.StockLevel().String(),
		To:        updated.StockLevel().String(),
		Note:      notes,
		AppliedAt: now,
		Product:   &updated,
		Movement:  &movement,
	}, nil
}
