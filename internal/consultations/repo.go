package consultations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
)

// Repository manages persistence for consultations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, consultation *models.Consultation) error
	FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Consultation, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Consultation, error)
	HasCompletedForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	ListTimedOutOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	Update(ctx context.Context, consultationID uuid.UUID, updates map[string]any) error
}

var activeStatuses = []enums.ConsultationStatus{
	enums.ConsultationStatusPending,
	enums.ConsultationStatusInProgress,
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a consultations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, consultation *models.Consultation) error {
	return r.db.WithContext(ctx).Create(consultation).Error
}

func (r *repository) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Consultation, error) {
	var consultation models.Consultation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, activeStatuses).
		First(&consultation).Error
	if err != nil {
		return nil, err
	}
	return &consultation, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Consultation, error) {
	var consultations []models.Consultation
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&consultations).Error; err != nil {
		return nil, err
	}
	return consultations, nil
}

func (r *repository) HasCompletedForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Consultation{}).
		Where("order_id = ? AND status = ?", orderID, enums.ConsultationStatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListTimedOutOrderIDs returns orders holding an active consultation whose
// timeout has passed. The sweep re-checks state under the order lock before
// expiring anything.
func (r *repository) ListTimedOutOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var orderIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Consultation{}).
		Where("status IN ? AND timeout_at <= ?", activeStatuses, cutoff).
		Order("timeout_at ASC").
		Limit(limit).
		Distinct().
		Pluck("order_id", &orderIDs).Error
	if err != nil {
		return nil, err
	}
	return orderIDs, nil
}

func (r *repository) Update(ctx context.Context, consultationID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Consultation{}).
		Where("id = ?", consultationID).
		Updates(updates).Error
}
