package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusapos/nusapos/internal/platform/httpx"
)

type memoryRepo struct {
	nextID int64
	orders map[int64]*Order
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, orders: map[int64]*Order{}}
}

func (m *memoryRepo) List(ctx context.Context, f OrderFilter) ([]Order, int64, error) {
	var out []Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memoryRepo) Create(ctx context.Context, order *Order) error {
	order.ID = m.nextID
	m.nextID++
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	o, ok := m.orders[id]
	if !ok {
		return httpx.ErrNotFound
	}
	o.Status = status
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.orders[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func seedOrder(t *testing.T, svc *Service) *Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateOrderInput{
		SupplierName: "CV Sumber Pangan",
		OutletCode:   "JKT-01",
		Lines: []CreateOrderLine{
			{ProductID: 1, Name: "Beras 5kg", Qty: 10, UnitCost: 68000},
			{ProductID: 2, Name: "Gula 1kg", Qty: 20, UnitCost: 14000},
		},
	}, 7)
	require.NoError(t, err)
	return order
}

func TestCreateComputesTotal(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	order := seedOrder(t, svc)
	assert.Equal(t, OrderStatusSubmitted, order.Status)
	assert.InDelta(t, 960000, order.Total, 0.001)
	assert.NotEmpty(t, order.Number)
}

func TestCreateRejectsEmpty(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateOrderInput{SupplierName: "X", OutletCode: "JKT-01"}, 7)
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestApproveRejectFlow(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	order := seedOrder(t, svc)

	approved, err := svc.Approve(context.Background(), order.ID, 9, "ok")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusApproved, approved.Status)

	_, err = svc.Reject(context.Background(), order.ID, 9, "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestReceiveRequiresApproval(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	order := seedOrder(t, svc)

	_, err := svc.Receive(context.Background(), order.ID, 9)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Approve(context.Background(), order.ID, 9, "")
	require.NoError(t, err)

	received, err := svc.Receive(context.Background(), order.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusReceived, received.Status)
}

func TestCancelFinalOrders(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	order := seedOrder(t, svc)

	cancelled, err := svc.Cancel(context.Background(), order.ID, 7, "supplier tutup")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), order.ID, 7, "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteApprovedFails(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	order := seedOrder(t, svc)

	_, err := svc.Approve(context.Background(), order.ID, 9, "")
	require.NoError(t, err)

	err = svc.Delete(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
