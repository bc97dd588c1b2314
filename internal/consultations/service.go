package consultations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
)

// DefaultTimeout bounds how long a requested consultation may sit unresolved
// before the sweep expires it.
const DefaultTimeout = 7 * 24 * time.Hour

// Service manages the consultation gate for an order. At most one consultation
// is active per order; the gate opens only on completion or an explicit waiver,
// never on expiry.
type Service interface {
	Request(ctx context.Context, tx *gorm.DB, input RequestInput) (*models.Consultation, error)
	// Start reports false when the consultation was already in progress.
	Start(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Consultation, bool, error)
	Complete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Consultation, error)
	Waive(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Consultation, error)
	Expire(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, now time.Time) (*models.Consultation, error)
	GateSatisfied(ctx context.Context, tx *gorm.DB, order *models.ProductionOrder) (bool, error)
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	List(ctx context.Context, orderID uuid.UUID) ([]models.Consultation, error)
}

// RequestInput captures the fields needed to open a consultation.
type RequestInput struct {
	OrderID     uuid.UUID
	RequestedBy enums.Party
	TimeoutAt   time.Time
}

type service struct {
	repo Repository
}

// NewService wires a consultations service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("consultations repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Request(ctx context.Context, tx *gorm.DB, input RequestInput) (*models.Consultation, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.RequestedBy.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requesting party required")
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.FindActiveByOrderID(ctx, input.OrderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active consultation")
	}
	if existing != nil {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonAlreadyActive, "consultation already active for order")
	}

	timeoutAt := input.TimeoutAt
	if timeoutAt.IsZero() {
		timeoutAt = time.Now().UTC().Add(DefaultTimeout)
	}

	consultation := &models.Consultation{
		OrderID:     input.OrderID,
		Status:      enums.ConsultationStatusPending,
		RequestedBy: input.RequestedBy,
		TimeoutAt:   timeoutAt,
	}
	if err := repo.Create(ctx, consultation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist consultation")
	}
	return consultation, nil
}

// Start moves a pending consultation to in_progress. Starting one that is
// already in progress is a no-op so both parties can safely report the same
// session.
func (s *service) Start(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Consultation, bool, error) {
	repo := s.repo.WithTx(tx)
	consultation, err := s.active(ctx, repo, orderID)
	if err != nil {
		return nil, false, err
	}
	if consultation.Status == enums.ConsultationStatusInProgress {
		return consultation, false, nil
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":     enums.ConsultationStatusInProgress,
		"started_at": now,
	}
	if err := repo.Update(ctx, consultation.ID, updates); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist consultation start")
	}
	consultation.Status = enums.ConsultationStatusInProgress
	consultation.StartedAt = &now
	return consultation, true, nil
}

func (s *service) Complete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Consultation, error) {
	repo := s.repo.WithTx(tx)
	consultation, err := s.active(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if consultation.Status != enums.ConsultationStatusInProgress {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidState, "consultation has not been started")
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":       enums.ConsultationStatusCompleted,
		"completed_at": now,
	}
	if err := repo.Update(ctx, consultation.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist consultation completion")
	}
	consultation.Status = enums.ConsultationStatusCompleted
	consultation.CompletedAt = &now
	return consultation, nil
}

// Waive terminates the active consultation, if any. Either party may waive
// unilaterally; waiving with no open consultation returns nil and the caller
// records the order-level waiver.
func (s *service) Waive(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Consultation, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	consultation, err := repo.FindActiveByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active consultation")
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":    enums.ConsultationStatusWaived,
		"waived_at": now,
	}
	if err := repo.Update(ctx, consultation.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist consultation waiver")
	}
	consultation.Status = enums.ConsultationStatusWaived
	consultation.WaivedAt = &now
	return consultation, nil
}

// Expire closes the active consultation when its timeout has passed. Returns
// nil when nothing is due; the caller decides what the expiry means for the
// order.
func (s *service) Expire(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, now time.Time) (*models.Consultation, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	consultation, err := repo.FindActiveByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active consultation")
	}
	if consultation.TimeoutAt.After(now) {
		return nil, nil
	}

	updates := map[string]any{
		"status": enums.ConsultationStatusExpired,
	}
	if err := repo.Update(ctx, consultation.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist consultation expiry")
	}
	consultation.Status = enums.ConsultationStatusExpired
	return consultation, nil
}

// GateSatisfied reports whether the order may leave the consultation phase.
// An expired consultation never opens the gate; the order stays parked until
// someone completes a new consultation or waives the requirement.
func (s *service) GateSatisfied(ctx context.Context, tx *gorm.DB, order *models.ProductionOrder) (bool, error) {
	if order == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if !order.ConsultationRequired || order.ConsultationWaived {
		return true, nil
	}
	repo := s.repo.WithTx(tx)
	return repo.HasCompletedForOrder(ctx, order.ID)
}

// DueForExpiry lists order ids whose active consultation has outlived its
// timeout. Read outside any transaction; each expiry runs in its own.
func (s *service) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.ListTimedOutOrderIDs(ctx, now, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list timed out consultations")
	}
	return ids, nil
}

func (s *service) List(ctx context.Context, orderID uuid.UUID) ([]models.Consultation, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) active(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Consultation, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	consultation, err := repo.FindActiveByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidState, "no active consultation for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active consultation")
	}
	return consultation, nil
}
