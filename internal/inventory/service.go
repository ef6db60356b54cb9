package inventory

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownReason is returned on an unrecognised adjustment reason.
	ErrUnknownReason = errors.New("unknown adjustment reason")
	// ErrZeroDelta is returned when an adjustment has no effect.
	ErrZeroDelta = errors.New("adjustment delta must be non-zero")
)

var validReasons = map[AdjustmentReason]struct{}{
	ReasonPurchase:   {},
	ReasonSale:       {},
	ReasonCount:      {},
	ReasonWaste:      {},
	ReasonCorrection: {},
}

// Service implements inventory use-cases.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	return s.repo.ListProducts(ctx, f)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if p.Unit == "" {
		p.Unit = "pcs"
	}
	p.IsActive = true
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	return s.repo.UpdateProduct(ctx, p)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

// Adjust validates and applies a stock movement.
func (s *Service) Adjust(ctx context.Context, adj *Adjustment) error {
	if adj.Delta == 0 {
		return ErrZeroDelta
	}
	if _, ok := validReasons[adj.Reason]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReason, adj.Reason)
	}
	return s.repo.Adjust(ctx, adj)
}

func (s *Service) History(ctx context.Context, productID int64, limit int) ([]Adjustment, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListAdjustments(ctx, productID, limit)
}
