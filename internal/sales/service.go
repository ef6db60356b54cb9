package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nusapos/nusapos/internal/platform/httpx"
	"github.com/nusapos/nusapos/internal/shared"
)

var (
	// ErrInvalidStatus is returned on a disallowed status transition.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrEmptySale is returned when a sale has no lines.
	ErrEmptySale = errors.New("sale requires at least one line")
)

// CreateSaleInput is the payload for creating a sale.
type CreateSaleInput struct {
	OutletCode     string
	Note           string
	SoldAt         time.Time
	IdempotencyKey string
	Lines          []CreateSaleLine
}

// CreateSaleLine is one line of CreateSaleInput.
type CreateSaleLine struct {
	ProductID int64
	Name      string
	Qty       float64
	UnitPrice float64
	Discount  float64
}

// UpdateSaleInput carries mutable sale fields.
type UpdateSaleInput struct {
	OutletCode *string
	Note       *string
	SoldAt     *time.Time
	Lines      []CreateSaleLine
}

// Service implements sales use-cases.
type Service struct {
	repo        Repository
	approvals   *shared.ApprovalRecorder
	idempotency *shared.IdempotencyStore
	taxRate     float64

	summaries singleflight.Group
}

// NewService constructs Service. approvals and idempotency may be nil in tests.
func NewService(repo Repository, approvals *shared.ApprovalRecorder, idempotency *shared.IdempotencyStore, taxRate float64) *Service {
	if taxRate <= 0 {
		taxRate = 0.11
	}
	return &Service{repo: repo, approvals: approvals, idempotency: idempotency, taxRate: taxRate}
}

func (s *Service) List(ctx context.Context, f SaleFilter) ([]Sale, int64, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.Get(ctx, id)
}

// Create records a new sale as DRAFT. When an idempotency key is supplied a
// duplicate retry returns httpx.ErrConflict instead of a second record.
func (s *Service) Create(ctx context.Context, in CreateSaleInput, cashierID int64) (*Sale, error) {
	if len(in.Lines) == 0 {
		return nil, ErrEmptySale
	}
	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, "sales.create", in.IdempotencyKey, cashierID); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, httpx.ErrConflict
			}
			return nil, err
		}
	}

	soldAt := in.SoldAt
	if soldAt.IsZero() {
		soldAt = time.Now()
	}

	sale := Sale{
		Number:     generateNumber(soldAt),
		Status:     SaleStatusDraft,
		OutletCode: in.OutletCode,
		CashierID:  cashierID,
		Note:       in.Note,
		SoldAt:     soldAt,
	}
	for _, lr := range in.Lines {
		line := SaleLine{
			ProductID: lr.ProductID,
			Name:      lr.Name,
			Qty:       lr.Qty,
			UnitPrice: lr.UnitPrice,
			Discount:  lr.Discount,
		}
		line.LineTotal = lr.Qty*lr.UnitPrice - lr.Discount
		sale.Subtotal += lr.Qty * lr.UnitPrice
		sale.Discount += lr.Discount
		sale.Lines = append(sale.Lines, line)
	}
	sale.Tax = (sale.Subtotal - sale.Discount) * s.taxRate
	sale.Total = sale.Subtotal - sale.Discount + sale.Tax

	if err := s.repo.Create(ctx, &sale); err != nil {
		if in.IdempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, "sales.create", in.IdempotencyKey)
		}
		return nil, fmt.Errorf("create sale: %w", err)
	}
	return &sale, nil
}

// Update rewrites a DRAFT sale. Other statuses are immutable.
func (s *Service) Update(ctx context.Context, id int64, in UpdateSaleInput) (*Sale, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != SaleStatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT sales can be edited", ErrInvalidStatus)
	}

	if in.OutletCode != nil {
		existing.OutletCode = *in.OutletCode
	}
	if in.Note != nil {
		existing.Note = *in.Note
	}
	if in.SoldAt != nil {
		existing.SoldAt = *in.SoldAt
	}
	if in.Lines != nil {
		if len(in.Lines) == 0 {
			return nil, ErrEmptySale
		}
		existing.Lines = existing.Lines[:0]
		existing.Subtotal, existing.Discount = 0, 0
		for _, lr := range in.Lines {
			line := SaleLine{
				ProductID: lr.ProductID,
				Name:      lr.Name,
				Qty:       lr.Qty,
				UnitPrice: lr.UnitPrice,
				Discount:  lr.Discount,
			}
			line.LineTotal = lr.Qty*lr.UnitPrice - lr.Discount
			existing.Subtotal += lr.Qty * lr.UnitPrice
			existing.Discount += lr.Discount
			existing.Lines = append(existing.Lines, line)
		}
		existing.Tax = (existing.Subtotal - existing.Discount) * s.taxRate
		existing.Total = existing.Subtotal - existing.Discount + existing.Tax
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update sale: %w", err)
	}
	return existing, nil
}

// Submit moves a DRAFT sale into approval.
func (s *Service) Submit(ctx context.Context, id int64, actorID int64) (*Sale, error) {
	return s.transition(ctx, id, actorID, SaleStatusDraft, SaleStatusSubmitted, shared.ApprovalSubmit, "")
}

// Approve finalises a SUBMITTED sale.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64, note string) (*Sale, error) {
	return s.transition(ctx, id, actorID, SaleStatusSubmitted, SaleStatusApproved, shared.ApprovalApprove, note)
}

// Reject sends a SUBMITTED sale back with a reason.
func (s *Service) Reject(ctx context.Context, id int64, actorID int64, note string) (*Sale, error) {
	return s.transition(ctx, id, actorID, SaleStatusSubmitted, SaleStatusRejected, shared.ApprovalReject, note)
}

func (s *Service) transition(ctx context.Context, id, actorID int64, from, to SaleStatus, action shared.ApprovalAction, note string) (*Sale, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != from {
		return nil, fmt.Errorf("%w: %s sale cannot move to %s", ErrInvalidStatus, existing.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  "sales",
			RefID:   existing.Number,
			ActorID: actorID,
			Action:  action,
			Note:    note,
		})
	}
	existing.Status = to
	return existing, nil
}

// Void cancels a non-final sale.
func (s *Service) Void(ctx context.Context, id int64, actorID int64, reason string) (*Sale, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == SaleStatusVoid {
		return nil, fmt.Errorf("%w: sale is already void", ErrInvalidStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, SaleStatusVoid); err != nil {
		return nil, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  "sales",
			RefID:   existing.Number,
			ActorID: actorID,
			Action:  shared.ApprovalReject,
			Note:    reason,
		})
	}
	existing.Status = SaleStatusVoid
	return existing, nil
}

// Delete removes a DRAFT sale.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != SaleStatusDraft {
		return fmt.Errorf("%w: only DRAFT sales can be deleted", ErrInvalidStatus)
	}
	return s.repo.Delete(ctx, id)
}

// Summarize aggregates sales totals. Concurrent requests for the same filter
// collapse into a single query.
func (s *Service) Summarize(ctx context.Context, f SaleFilter) (*Summary, error) {
	key := summaryKey(f)
	v, err, _ := s.summaries.Do(key, func() (any, error) {
		return s.repo.Summarize(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

// Export returns the rows for a CSV export.
func (s *Service) Export(ctx context.Context, f SaleFilter) ([]Sale, error) {
	return s.repo.ExportRows(ctx, f)
}

func summaryKey(f SaleFilter) string {
	var b strings.Builder
	b.WriteString(f.OutletCode)
	b.WriteByte('|')
	if !f.From.IsZero() {
		b.WriteString(f.From.UTC().Format(time.RFC3339))
	}
	b.WriteByte('|')
	if !f.To.IsZero() {
		b.WriteString(f.To.UTC().Format(time.RFC3339))
	}
	return b.String()
}

func generateNumber(at time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("POS-%s-%s", at.Format("20060102"), suffix)
}
