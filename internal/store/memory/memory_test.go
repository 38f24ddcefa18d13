package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/entity"
	"matjar/backoffice/internal/store"
)

func TestLoadSeedRebasesToToday(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	data, err := LoadSeed(now)
	require.NoError(t, err)

	require.Len(t, data.Customers, 10)
	require.Len(t, data.Orders, 28)
	require.Len(t, data.Products, 8)
	require.Len(t, data.Returns, 4)
	require.NotEmpty(t, data.Movements)

	var newest time.Time
	for _, o := range data.Orders {
		require.True(t, o.OrderState.Valid(), "order %d", o.ID)
		if o.OrderDate.After(newest) {
			newest = o.OrderDate
		}
	}
	require.Equal(t, "2026-03-09", newest.Format("2006-01-02"))

	snapshot := entity.New(data)
	count := 0
	for r := range snapshot.Returns() {
		require.Equal(t, domain.OrderReturned, r.OrderState)
		require.True(t, r.ApprovalStatus.Valid())
		require.True(t, r.RefundAmount.LessThanOrEqual(r.TotalPrice))
		count++
	}
	require.Equal(t, 4, count)
}

func TestNewSeededWarnsAboutDefaultPasswords(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "s3cret-admin")
	t.Setenv("SEED_ACCOUNTANT_PASSWORD", "")
	t.Setenv("SEED_STOCK_MANAGER_PASSWORD", "")
	t.Setenv("SEED_STAFF_PASSWORD", "")

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewSeeded(zap.New(core))
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("using default dev credentials").Len())

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 4)
	require.Equal(t, "accountant", users[0].Username)
	require.Equal(t, "admin", users[1].Username)
	require.Equal(t, domain.RoleAdmin, users[1].Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[1].Password), []byte("s3cret-admin")))
}

func TestDemoUsersCoverEveryRole(t *testing.T) {
	users, err := DemoUsers(nil)
	require.NoError(t, err)
	require.Len(t, users, 4)

	roles := map[string]bool{}
	for i, u := range users {
		if i > 0 {
			require.Less(t, users[i-1].Username, u.Username)
		}
		require.True(t, domain.IsKnownRole(u.Role))
		roles[u.Role] = true
	}
	require.Len(t, roles, 4)
}

func fixture() entity.Data {
	day := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	return entity.Data{
		Customers: []domain.Customer{{ID: 1, FullName: "سارة"}},
		Orders: []domain.Order{
			{ID: 10, CustomerID: 1, OrderDate: day, TotalPrice: decimal.NewFromInt(100), OrderState: domain.OrderNew},
			{ID: 11, CustomerID: 1, OrderDate: day, TotalPrice: decimal.NewFromInt(200), OrderState: domain.OrderReturned},
		},
		Products: []domain.Product{{ID: 5, Name: "ساعة", StockQuantity: 10, MinStockLevel: 2}},
		Movements: []domain.StockMovement{
			{ID: 7, ProductID: 5, Date: day, Type: domain.MovementAddition, Quantity: 10, PreviousStock: 0, NewStock: 10},
		},
	}
}

func TestSaveOrder(t *testing.T) {
	ctx := context.Background()
	s := New(fixture())

	data, err := s.Load(ctx)
	require.NoError(t, err)
	order := data.Orders[0]
	order.OrderState = domain.OrderConfirmed
	order.Notes = append(order.Notes, "تم التأكيد")
	require.NoError(t, s.SaveOrder(ctx, order, domain.OrderNew))

	order.Notes[0] = "changed after save"
	data, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.OrderConfirmed, data.Orders[0].OrderState)
	require.Equal(t, []string{"تم التأكيد"}, data.Orders[0].Notes)

	err = s.SaveOrder(ctx, domain.Order{ID: 99}, domain.OrderNew)
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.SaveOrder(ctx, domain.Order{ID: 10, OrderState: domain.OrderState(42)}, domain.OrderConfirmed)
	require.ErrorIs(t, err, store.ErrInvalidRecord)
}

func TestSaveOrderRejectsStaleState(t *testing.T) {
	ctx := context.Background()
	s := New(fixture())

	data, err := s.Load(ctx)
	require.NoError(t, err)
	confirmed := data.Orders[0]
	confirmed.OrderState = domain.OrderConfirmed
	require.NoError(t, s.SaveOrder(ctx, confirmed, domain.OrderNew))

	// A delay decided on the same snapshot must not overwrite the confirmation.
	delayed := data.Orders[0]
	delayed.OrderState = domain.OrderDelayed
	require.ErrorIs(t, s.SaveOrder(ctx, delayed, domain.OrderNew), store.ErrStaleState)

	data, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.OrderConfirmed, data.Orders[0].OrderState)
}

func TestSaveReturn(t *testing.T) {
	ctx := context.Background()
	s := New(fixture())
	record := domain.ReturnRecord{OrderID: 11, ApprovalStatus: domain.ApprovalPending, RefundAmount: decimal.Zero}

	require.NoError(t, s.SaveReturn(ctx, record, domain.ReturnRecord{}))
	pending := record
	record.ApprovalStatus = domain.ApprovalApproved
	record.RefundAmount = decimal.NewFromInt(200)
	require.NoError(t, s.SaveReturn(ctx, record, pending))

	// Rejecting from the same pending read loses to the approval.
	rejected := pending
	rejected.ApprovalStatus = domain.ApprovalRejected
	require.ErrorIs(t, s.SaveReturn(ctx, rejected, pending), store.ErrStaleState)

	refunded := record
	refunded.RefundDate = domain.TimePtr(time.Date(2024, 5, 12, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.SaveReturn(ctx, refunded, record))
	require.ErrorIs(t, s.SaveReturn(ctx, refunded, record), store.ErrStaleState)

	data, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, data.Returns, 1)
	require.Equal(t, domain.ApprovalApproved, data.Returns[0].ApprovalStatus)

	require.ErrorIs(t, s.SaveReturn(ctx, domain.ReturnRecord{OrderID: 10, ApprovalStatus: domain.ApprovalPending}, domain.ReturnRecord{}), store.ErrInvalidRecord)
	require.ErrorIs(t, s.SaveReturn(ctx, domain.ReturnRecord{OrderID: 12, ApprovalStatus: domain.ApprovalPending}, domain.ReturnRecord{}), store.ErrNotFound)
	require.ErrorIs(t, s.SaveReturn(ctx, domain.ReturnRecord{OrderID: 11, ApprovalStatus: "lost"}, domain.ReturnRecord{}), store.ErrInvalidRecord)
}

func TestRecordStockMovement(t *testing.T) {
	ctx := context.Background()
	s := New(fixture())
	at := time.Date(2024, 5, 11, 9, 0, 0, 0, time.UTC)

	product := domain.Product{ID: 5, Name: "ساعة", StockQuantity: 7, MinStockLevel: 2}
	movement := domain.StockMovement{ProductID: 5, Date: at, Type: domain.MovementWithdrawal, Quantity: 3, PreviousStock: 10, NewStock: 7}
	saved, err := s.RecordStockMovement(ctx, product, movement)
	require.NoError(t, err)
	require.Equal(t, int64(8), saved.ID)

	data, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, data.Products[0].StockQuantity)
	require.Len(t, data.Movements, 2)

	// Replaying the same movement finds 7 on hand, not 10.
	_, err = s.RecordStockMovement(ctx, product, movement)
	require.ErrorIs(t, err, store.ErrStaleStock)

	mismatched := movement
	mismatched.NewStock = 6
	_, err = s.RecordStockMovement(ctx, product, mismatched)
	require.ErrorIs(t, err, store.ErrInvalidRecord)

	_, err = s.RecordStockMovement(ctx, domain.Product{ID: 6}, domain.StockMovement{ProductID: 6, Type: domain.MovementAddition})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuditLogsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New(entity.Data{})
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	for i, action := range []string{"confirm", "ship", "deliver"} {
		require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{
			Action:     action,
			EntityType: domain.EntityOrder,
			EntityID:   "10",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	logs, err := s.ListAuditLogs(ctx, base, base.Add(24*time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "deliver", logs[0].Action)
	require.Equal(t, "ship", logs[1].Action)
	require.NotEmpty(t, logs[0].ID)

	logs, err = s.ListAuditLogs(ctx, base.Add(time.Hour), base.Add(2*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "ship", logs[0].Action)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New(entity.Data{})

	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: " Huda ", Password: "hash"}))
	require.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "huda", Password: "hash"}), store.ErrInvalidRecord)
	require.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "x"}), store.ErrInvalidRecord)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "huda", users[0].Username)
	require.Equal(t, domain.RoleStaff, users[0].Role)
	require.True(t, users[0].Active)

	require.NoError(t, s.UpdateUserPassword(ctx, "HUDA", "new-hash"))
	users, _ = s.ListUsers(ctx)
	require.Equal(t, "new-hash", users[0].Password)
	require.ErrorIs(t, s.UpdateUserPassword(ctx, "nobody", "x"), store.ErrNotFound)
}
