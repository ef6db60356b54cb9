package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusapos/nusapos/internal/platform/httpx"
)

type memoryRepo struct {
	nextID      int64
	products    map[int64]*Product
	adjustments []Adjustment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, products: map[int64]*Product{}}
}

func (m *memoryRepo) ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	var out []Product
	for _, p := range m.products {
		if f.LowStock && p.Stock > p.MinStock {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (m *memoryRepo) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) CreateProduct(ctx context.Context, p *Product) error {
	for _, other := range m.products {
		if other.SKU == p.SKU {
			return httpx.ErrDuplicate
		}
	}
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memoryRepo) UpdateProduct(ctx context.Context, p *Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return httpx.ErrNotFound
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memoryRepo) DeleteProduct(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memoryRepo) Adjust(ctx context.Context, adj *Adjustment) error {
	p, ok := m.products[adj.ProductID]
	if !ok {
		return httpx.ErrNotFound
	}
	if p.Stock+adj.Delta < 0 {
		return ErrInsufficientStock
	}
	p.Stock += adj.Delta
	adj.ID = int64(len(m.adjustments) + 1)
	adj.CreatedAt = time.Now()
	m.adjustments = append(m.adjustments, *adj)
	return nil
}

func (m *memoryRepo) ListAdjustments(ctx context.Context, productID int64, limit int) ([]Adjustment, error) {
	var out []Adjustment
	for _, a := range m.adjustments {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out, nil
}

func seedProduct(t *testing.T, svc *Service, stock float64) *Product {
	t.Helper()
	p := Product{SKU: "KOPI-001", Name: "Kopi Susu", Unit: "cup", Price: 18000, Stock: stock}
	require.NoError(t, svc.CreateProduct(context.Background(), &p))
	return &p
}

func TestCreateProductDefaults(t *testing.T) {
	svc := NewService(newMemoryRepo())

	p := Product{SKU: "TEH-001", Name: "Es Teh", Price: 8000}
	require.NoError(t, svc.CreateProduct(context.Background(), &p))

	assert.Equal(t, "pcs", p.Unit)
	assert.True(t, p.IsActive)
	assert.NotZero(t, p.ID)
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	svc := NewService(newMemoryRepo())
	seedProduct(t, svc, 10)

	dup := Product{SKU: "KOPI-001", Name: "Kopi Hitam", Price: 12000}
	err := svc.CreateProduct(context.Background(), &dup)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestAdjustValidatesInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	p := seedProduct(t, svc, 10)

	err := svc.Adjust(context.Background(), &Adjustment{ProductID: p.ID, Delta: 0, Reason: ReasonCount})
	assert.ErrorIs(t, err, ErrZeroDelta)

	err = svc.Adjust(context.Background(), &Adjustment{ProductID: p.ID, Delta: 1, Reason: "THEFT"})
	assert.ErrorIs(t, err, ErrUnknownReason)
}

func TestAdjustStopsAtZero(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	p := seedProduct(t, svc, 5)

	err := svc.Adjust(context.Background(), &Adjustment{ProductID: p.ID, Delta: -8, Reason: ReasonSale})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	err = svc.Adjust(context.Background(), &Adjustment{ProductID: p.ID, Delta: -5, Reason: ReasonSale})
	require.NoError(t, err)

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Stock)
}

func TestHistoryRequiresProduct(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.History(context.Background(), 99, 10)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestHistoryReturnsMovements(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	p := seedProduct(t, svc, 10)

	require.NoError(t, svc.Adjust(context.Background(), &Adjustment{ProductID: p.ID, Delta: 5, Reason: ReasonPurchase}))
	require.NoError(t, svc.Adjust(context.Background(), &Adjustment{ProductID: p.ID, Delta: -2, Reason: ReasonWaste, Note: "tumpah"}))

	history, err := svc.History(context.Background(), p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
