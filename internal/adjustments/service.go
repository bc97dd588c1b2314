package adjustments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
)

// DefaultResponseWindow bounds how long the counterparty has to respond.
const DefaultResponseWindow = 72 * time.Hour

// Decision is the counterparty's answer to a pending proposal.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Service manages price adjustment proposals. One adjustment may ever be
// applied per order, and at most one proposal is pending at a time. Callers
// load the order under its row lock and apply the order-side effects of an
// approval themselves.
type Service interface {
	Propose(ctx context.Context, tx *gorm.DB, order *models.ProductionOrder, input ProposeInput) (*models.PriceAdjustment, error)
	Resolve(ctx context.Context, tx *gorm.DB, order *models.ProductionOrder, input ResolveInput) (*models.PriceAdjustment, error)
	Expire(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, now time.Time) (*models.PriceAdjustment, error)
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	FindPending(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.PriceAdjustment, error)
	List(ctx context.Context, orderID uuid.UUID) ([]models.PriceAdjustment, error)
}

// ProposeInput captures a new price proposal.
type ProposeInput struct {
	ProposedBy         enums.Party
	AdjustedPriceCents int64
	Justification      string
	ResponseDeadline   time.Time
}

// ResolveInput captures the counterparty's decision.
type ResolveInput struct {
	Actor    enums.Party
	Decision Decision
}

type service struct {
	repo Repository
}

// NewService wires an adjustments service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("adjustments repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Propose(ctx context.Context, tx *gorm.DB, order *models.ProductionOrder, input ProposeInput) (*models.PriceAdjustment, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if !input.ProposedBy.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proposing party required")
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonAlreadyTerminal, "order already resolved")
	}
	if order.PriceAdjustmentUsed {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonAlreadyUsed, "price adjustment already applied to order")
	}
	if input.AdjustedPriceCents <= 0 {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidAmount, "adjusted price must be positive")
	}
	if input.AdjustedPriceCents == order.FinalPriceCents {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonNoOpAdjustment, "adjusted price equals current price")
	}
	if strings.TrimSpace(input.Justification) == "" {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidJustification, "justification is required")
	}

	repo := s.repo.WithTx(tx)
	pending, err := repo.FindPendingByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending adjustment")
	}
	if pending != nil {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonAlreadyPending, "an adjustment is already awaiting a response")
	}

	adjustmentType := enums.AdjustmentTypeIncrease
	if input.AdjustedPriceCents < order.FinalPriceCents {
		adjustmentType = enums.AdjustmentTypeDecrease
	}
	deadline := input.ResponseDeadline
	if deadline.IsZero() {
		deadline = time.Now().UTC().Add(DefaultResponseWindow)
	}

	adjustment := &models.PriceAdjustment{
		OrderID:            order.ID,
		OriginalPriceCents: order.FinalPriceCents,
		AdjustedPriceCents: input.AdjustedPriceCents,
		AdjustmentType:     adjustmentType,
		Justification:      strings.TrimSpace(input.Justification),
		Status:             enums.AdjustmentStatusPending,
		ProposedBy:         input.ProposedBy,
		ResponseDeadline:   deadline,
	}
	if err := repo.Create(ctx, adjustment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist adjustment")
	}
	return adjustment, nil
}

func (s *service) Resolve(ctx context.Context, tx *gorm.DB, order *models.ProductionOrder, input ResolveInput) (*models.PriceAdjustment, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if !input.Actor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "acting party required")
	}
	if input.Decision != DecisionApprove && input.Decision != DecisionReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approve or reject")
	}

	repo := s.repo.WithTx(tx)
	adjustment, err := repo.FindPendingByOrderID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewReason(pkgerrors.ReasonAlreadyResolved, "no pending adjustment for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending adjustment")
	}

	// Only the side that did not propose may answer.
	if input.Actor == adjustment.ProposedBy {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonUnauthorized, "proposer cannot resolve their own adjustment")
	}

	status := enums.AdjustmentStatusApproved
	if input.Decision == DecisionReject {
		status = enums.AdjustmentStatusRejected
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":      status,
		"resolved_at": now,
	}
	if err := repo.Update(ctx, adjustment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist adjustment resolution")
	}
	adjustment.Status = status
	adjustment.ResolvedAt = &now
	return adjustment, nil
}

// Expire rejects the pending adjustment once its response deadline passes.
// Returns nil when nothing is due.
func (s *service) Expire(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, now time.Time) (*models.PriceAdjustment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	adjustment, err := repo.FindPendingByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending adjustment")
	}
	if adjustment.ResponseDeadline.After(now) {
		return nil, nil
	}

	updates := map[string]any{
		"status":      enums.AdjustmentStatusExpired,
		"resolved_at": now,
	}
	if err := repo.Update(ctx, adjustment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist adjustment expiry")
	}
	adjustment.Status = enums.AdjustmentStatusExpired
	adjustment.ResolvedAt = &now
	return adjustment, nil
}

// DueForExpiry lists order ids with a pending proposal past its response
// deadline. Read outside any transaction; each expiry runs in its own.
func (s *service) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.ListExpiredOrderIDs(ctx, now, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired adjustments")
	}
	return ids, nil
}

func (s *service) FindPending(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.PriceAdjustment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)
	adjustment, err := repo.FindPendingByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending adjustment")
	}
	return adjustment, nil
}

func (s *service) List(ctx context.Context, orderID uuid.UUID) ([]models.PriceAdjustment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}
