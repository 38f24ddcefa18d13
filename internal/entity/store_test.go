package entity

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/vocab"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 10, 0, 0, 0, time.UTC)
}

func sampleData() Data {
	return Data{
		Customers: []domain.Customer{
			{ID: 1, FullName: "سارة علي", Phone: "0551234567", CustomerState: domain.CustomerActive},
			{ID: 2, FullName: "خالد عمر", CustomerState: domain.CustomerBanned, SubSystem: &domain.SubSystem{Name: "متجر الرياض"}},
		},
		Orders: []domain.Order{
			{ID: 10, CustomerID: 1, OrderDate: day(1), OrderState: domain.OrderNew, Notes: []string{"first"}},
			{ID: 11, CustomerID: 2, OrderDate: day(2), OrderState: domain.OrderReturned},
			{ID: 12, CustomerID: 9, OrderDate: day(3), OrderState: domain.OrderDelivered},
			{ID: 10, CustomerID: 2, OrderDate: day(4), OrderState: domain.OrderCancelled},
		},
		Products: []domain.Product{
			{ID: 100, Name: "ساعة", StockQuantity: 4},
		},
		Returns: []domain.ReturnRecord{
			{OrderID: 11, ReturnReason: "damaged", ApprovalStatus: domain.ApprovalPending},
			{OrderID: 12, ReturnReason: "not returned", ApprovalStatus: domain.ApprovalPending},
			{OrderID: 99, ReturnReason: "orphan", ApprovalStatus: domain.ApprovalPending},
		},
		Movements: []domain.StockMovement{
			{ID: 1, ProductID: 100, Date: day(1), Type: domain.MovementAddition},
			{ID: 2, ProductID: 100, Date: day(5), Type: domain.MovementWithdrawal},
			{ID: 3, ProductID: 200, Date: day(6), Type: domain.MovementAddition},
			{ID: 4, ProductID: 100, Date: day(5), Type: domain.MovementAdjustment},
		},
	}
}

func TestSequencesPreserveInputOrder(t *testing.T) {
	s := New(sampleData())

	var ids []int64
	for o := range s.Orders() {
		ids = append(ids, o.ID)
	}
	require.Equal(t, []int64{10, 11, 12}, ids, "duplicate id keeps the first record")

	returns := slices.Collect(s.Returns())
	require.Len(t, returns, 1)
	require.Equal(t, int64(11), returns[0].ID)
	require.Equal(t, "damaged", returns[0].ReturnReason)
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := New(sampleData())

	for o := range s.Orders() {
		o.Notes[0] = "changed"
		o.OrderState = domain.OrderCancelled
		break
	}
	order, err := s.FindOrder(10)
	require.NoError(t, err)
	require.Equal(t, domain.OrderNew, order.OrderState)
	require.Equal(t, []string{"first"}, order.Notes)

	c, err := s.FindCustomer(2)
	require.NoError(t, err)
	c.SubSystem.Name = "other"
	require.Equal(t, "متجر الرياض", s.SubSystemName(2))
}

func TestFindReportsNotFound(t *testing.T) {
	s := New(sampleData())

	_, err := s.FindCustomer(42)
	require.True(t, errors.Is(err, ErrNotFound))
	require.Contains(t, err.Error(), "customer 42")

	_, err = s.FindProduct(7)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindReturn(12)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceholderLabels(t *testing.T) {
	s := New(sampleData())
	require.Equal(t, "سارة علي", s.CustomerName(1))
	require.Equal(t, "غير معروف", s.CustomerName(9))
	require.Equal(t, "غير محدد", s.CustomerPhone(2))
	require.Equal(t, "غير معروف", s.CustomerPhone(9))
	require.Equal(t, "غير محدد", s.SubSystemName(1))

	en := s.WithLabels(vocab.Match("en"))
	require.Equal(t, "Unknown", en.CustomerName(9))
	require.Equal(t, "غير معروف", s.CustomerName(9))
}

func TestProductMovementsNewestFirst(t *testing.T) {
	s := New(sampleData())
	var ids []int64
	for m := range s.ProductMovements(100) {
		ids = append(ids, m.ID)
	}
	require.Equal(t, []int64{4, 2, 1}, ids)
	require.Empty(t, slices.Collect(s.ProductMovements(300)))
}
