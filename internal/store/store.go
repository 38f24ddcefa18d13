package store

import (
	"context"
	"errors"
	"time"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/entity"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrStaleStock    = errors.New("stock changed concurrently")
	ErrStaleState    = errors.New("state changed concurrently")
	ErrInvalidRecord = errors.New("invalid record")
)

// Repository persists the back-office records. Load returns a complete
// snapshot for the query side; the Save methods write back values produced by
// the lifecycle functions.
type Repository interface {
	Load(ctx context.Context) (entity.Data, error)
	// SaveOrder fails with ErrStaleState when the stored order is no longer
	// in state prev.
	SaveOrder(ctx context.Context, order domain.Order, prev domain.OrderState) error
	// SaveReturn fails with ErrStaleState when the stored record was resolved
	// or refunded since prev was read. A zero prev expects no stored record.
	SaveReturn(ctx context.Context, record domain.ReturnRecord, prev domain.ReturnRecord) error
	// RecordStockMovement stores the product's new stock and appends the
	// movement, returning it with its assigned id. It fails with ErrStaleStock
	// when the stored quantity no longer equals movement.PreviousStock.
	RecordStockMovement(ctx context.Context, product domain.Product, movement domain.StockMovement) (*domain.StockMovement, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// SameReturnState reports whether stored is still at the resolution step of
// prev. A nil stored matches only a zero prev.
func SameReturnState(stored *domain.ReturnRecord, prev domain.ReturnRecord) bool {
	if stored == nil {
		return prev.ApprovalStatus == ""
	}
	return stored.ApprovalStatus == prev.ApprovalStatus && (stored.RefundDate == nil) == (prev.RefundDate == nil)
}
