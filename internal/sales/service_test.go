package sales

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusapos/nusapos/internal/platform/httpx"
)

type memoryRepo struct {
	mu            sync.Mutex
	nextID        int64
	sales         map[int64]*Sale
	summarizeHits int64
	summarizeWait time.Duration
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, sales: map[int64]*Sale{}}
}

func (m *memoryRepo) List(ctx context.Context, f SaleFilter) ([]Sale, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sale
	for _, s := range m.sales {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryRepo) Create(ctx context.Context, sale *Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale.ID = m.nextID
	m.nextID++
	sale.CreatedAt = time.Now()
	sale.UpdatedAt = sale.CreatedAt
	cp := *sale
	m.sales[sale.ID] = &cp
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, sale *Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sale
	m.sales[sale.ID] = &cp
	return nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status SaleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales[id].Status = status
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sales, id)
	return nil
}

func (m *memoryRepo) Summarize(ctx context.Context, f SaleFilter) (*Summary, error) {
	atomic.AddInt64(&m.summarizeHits, 1)
	if m.summarizeWait > 0 {
		time.Sleep(m.summarizeWait)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := Summary{OutletCode: f.OutletCode}
	for _, s := range m.sales {
		if s.Status == SaleStatusVoid {
			continue
		}
		sum.Count++
		sum.GrossTotal += s.Subtotal
		sum.Discount += s.Discount
		sum.Tax += s.Tax
		sum.NetTotal += s.Total
	}
	return &sum, nil
}

func (m *memoryRepo) ExportRows(ctx context.Context, f SaleFilter) ([]Sale, error) {
	rows, _, err := m.List(ctx, f)
	return rows, err
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, 0.10)
}

func TestCreateComputesTotals(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		OutletCode: "JKT-01",
		Lines: []CreateSaleLine{
			{ProductID: 1, Name: "Nasi Goreng", Qty: 2, UnitPrice: 35000},
			{ProductID: 2, Name: "Es Teh", Qty: 2, UnitPrice: 8000, Discount: 2000},
		},
	}, 7)
	require.NoError(t, err)

	assert.Equal(t, SaleStatusDraft, sale.Status)
	assert.Equal(t, int64(7), sale.CashierID)
	assert.InDelta(t, 86000, sale.Subtotal, 0.001)
	assert.InDelta(t, 2000, sale.Discount, 0.001)
	assert.InDelta(t, 8400, sale.Tax, 0.001)
	assert.InDelta(t, 92400, sale.Total, 0.001)
	assert.NotEmpty(t, sale.Number)
	require.Len(t, sale.Lines, 2)
	assert.InDelta(t, 70000, sale.Lines[0].LineTotal, 0.001)
}

func TestCreateRejectsEmptySale(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), CreateSaleInput{OutletCode: "JKT-01"}, 7)
	assert.ErrorIs(t, err, ErrEmptySale)
}

func TestUpdateOnlyDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		OutletCode: "JKT-01",
		Lines:      []CreateSaleLine{{ProductID: 1, Name: "Kopi", Qty: 1, UnitPrice: 15000}},
	}, 7)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), sale.ID, 7)
	require.NoError(t, err)

	note := "late edit"
	_, err = svc.Update(context.Background(), sale.ID, UpdateSaleInput{Note: &note})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestApprovalFlow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		OutletCode: "JKT-01",
		Lines:      []CreateSaleLine{{ProductID: 1, Name: "Kopi", Qty: 1, UnitPrice: 15000}},
	}, 7)
	require.NoError(t, err)

	// approve before submit is invalid
	_, err = svc.Approve(context.Background(), sale.ID, 9, "")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	submitted, err := svc.Submit(context.Background(), sale.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, SaleStatusSubmitted, submitted.Status)

	approved, err := svc.Approve(context.Background(), sale.ID, 9, "ok")
	require.NoError(t, err)
	assert.Equal(t, SaleStatusApproved, approved.Status)

	// approved is final for the review flow
	_, err = svc.Reject(context.Background(), sale.ID, 9, "nope")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRejectReturnsSale(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		OutletCode: "JKT-01",
		Lines:      []CreateSaleLine{{ProductID: 1, Name: "Kopi", Qty: 1, UnitPrice: 15000}},
	}, 7)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), sale.ID, 7)
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), sale.ID, 9, "harga salah")
	require.NoError(t, err)
	assert.Equal(t, SaleStatusRejected, rejected.Status)
}

func TestDeleteOnlyDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		OutletCode: "JKT-01",
		Lines:      []CreateSaleLine{{ProductID: 1, Name: "Kopi", Qty: 1, UnitPrice: 15000}},
	}, 7)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), sale.ID, 7)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), sale.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestVoidExcludedFromSummary(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	first, err := svc.Create(context.Background(), CreateSaleInput{
		OutletCode: "JKT-01",
		Lines:      []CreateSaleLine{{ProductID: 1, Name: "Kopi", Qty: 1, UnitPrice: 10000}},
	}, 7)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateSaleInput{
		OutletCode: "JKT-01",
		Lines:      []CreateSaleLine{{ProductID: 1, Name: "Kopi", Qty: 2, UnitPrice: 10000}},
	}, 7)
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), first.ID, 7, "batal")
	require.NoError(t, err)

	sum, err := svc.Summarize(context.Background(), SaleFilter{OutletCode: "JKT-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Count)
	assert.InDelta(t, 20000, sum.GrossTotal, 0.001)
}

func TestSummaryCollapsesConcurrentCalls(t *testing.T) {
	repo := newMemoryRepo()
	repo.summarizeWait = 50 * time.Millisecond
	svc := newTestService(repo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Summarize(context.Background(), SaleFilter{OutletCode: "JKT-01"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, atomic.LoadInt64(&repo.summarizeHits), int64(8))
}
