package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nusapos/nusapos/internal/inventory"
	"github.com/nusapos/nusapos/internal/shared"
)

var (
	// ErrInvalidStatus is returned on a disallowed status transition.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrEmptyOrder is returned when an order has no lines.
	ErrEmptyOrder = errors.New("purchase order requires at least one line")
)

// CreateOrderInput is the payload for creating a purchase order.
type CreateOrderInput struct {
	SupplierName string
	OutletCode   string
	Note         string
	Lines        []CreateOrderLine
}

// CreateOrderLine is one line of CreateOrderInput.
type CreateOrderLine struct {
	ProductID int64
	Name      string
	Qty       float64
	UnitCost  float64
}

// Service implements purchasing use-cases. Receiving an approved order feeds
// the inventory stock through the inventory service.
type Service struct {
	repo      Repository
	stock     *inventory.Service
	approvals *shared.ApprovalRecorder
}

// NewService constructs Service. stock and approvals may be nil in tests.
func NewService(repo Repository, stock *inventory.Service, approvals *shared.ApprovalRecorder) *Service {
	return &Service{repo: repo, stock: stock, approvals: approvals}
}

func (s *Service) List(ctx context.Context, f OrderFilter) ([]Order, int64, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// Create records a purchase order as SUBMITTED, awaiting approval.
func (s *Service) Create(ctx context.Context, in CreateOrderInput, orderedBy int64) (*Order, error) {
	if len(in.Lines) == 0 {
		return nil, ErrEmptyOrder
	}
	now := time.Now()
	order := Order{
		Number:       fmt.Sprintf("PO-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8])),
		Status:       OrderStatusSubmitted,
		SupplierName: in.SupplierName,
		OutletCode:   in.OutletCode,
		Note:         in.Note,
		OrderedBy:    orderedBy,
		OrderedAt:    now,
	}
	for _, lr := range in.Lines {
		line := OrderLine{
			ProductID: lr.ProductID,
			Name:      lr.Name,
			Qty:       lr.Qty,
			UnitCost:  lr.UnitCost,
			LineTotal: lr.Qty * lr.UnitCost,
		}
		order.Total += line.LineTotal
		order.Lines = append(order.Lines, line)
	}
	if err := s.repo.Create(ctx, &order); err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}
	s.record(ctx, order.Number, orderedBy, shared.ApprovalSubmit, "")
	return &order, nil
}

// Approve marks a SUBMITTED order approved.
func (s *Service) Approve(ctx context.Context, id, actorID int64, note string) (*Order, error) {
	return s.transition(ctx, id, actorID, OrderStatusSubmitted, OrderStatusApproved, shared.ApprovalApprove, note)
}

// Reject sends a SUBMITTED order back.
func (s *Service) Reject(ctx context.Context, id, actorID int64, note string) (*Order, error) {
	return s.transition(ctx, id, actorID, OrderStatusSubmitted, OrderStatusRejected, shared.ApprovalReject, note)
}

// Cancel aborts an order that has not been received.
func (s *Service) Cancel(ctx context.Context, id, actorID int64, note string) (*Order, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == OrderStatusReceived || existing.Status == OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order is final", ErrInvalidStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, OrderStatusCancelled); err != nil {
		return nil, err
	}
	s.record(ctx, existing.Number, actorID, shared.ApprovalReject, note)
	existing.Status = OrderStatusCancelled
	return existing, nil
}

// Receive books an APPROVED order into stock, one adjustment per line.
func (s *Service) Receive(ctx context.Context, id, actorID int64) (*Order, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != OrderStatusApproved {
		return nil, fmt.Errorf("%w: only APPROVED orders can be received", ErrInvalidStatus)
	}
	if s.stock != nil {
		for _, line := range existing.Lines {
			adj := inventory.Adjustment{
				ProductID: line.ProductID,
				Delta:     line.Qty,
				Reason:    inventory.ReasonPurchase,
				Note:      existing.Number,
				ActorID:   actorID,
			}
			if err := s.stock.Adjust(ctx, &adj); err != nil {
				return nil, fmt.Errorf("book stock for %s: %w", line.Name, err)
			}
		}
	}
	if err := s.repo.UpdateStatus(ctx, id, OrderStatusReceived); err != nil {
		return nil, err
	}
	existing.Status = OrderStatusReceived
	return existing, nil
}

// Delete removes an order that never entered approval.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == OrderStatusApproved || existing.Status == OrderStatusReceived {
		return fmt.Errorf("%w: approved orders cannot be deleted", ErrInvalidStatus)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) transition(ctx context.Context, id, actorID int64, from, to OrderStatus, action shared.ApprovalAction, note string) (*Order, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != from {
		return nil, fmt.Errorf("%w: %s order cannot move to %s", ErrInvalidStatus, existing.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	s.record(ctx, existing.Number, actorID, action, note)
	existing.Status = to
	return existing, nil
}

func (s *Service) record(ctx context.Context, ref string, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "purchase",
		RefID:   ref,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	})
}
