package adjustments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
)

// Repository manages persistence for price adjustments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, adjustment *models.PriceAdjustment) error
	FindByID(ctx context.Context, adjustmentID uuid.UUID) (*models.PriceAdjustment, error)
	FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PriceAdjustment, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PriceAdjustment, error)
	ListExpiredOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	Update(ctx context.Context, adjustmentID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an adjustments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, adjustment *models.PriceAdjustment) error {
	return r.db.WithContext(ctx).Create(adjustment).Error
}

func (r *repository) FindByID(ctx context.Context, adjustmentID uuid.UUID) (*models.PriceAdjustment, error) {
	var adjustment models.PriceAdjustment
	err := r.db.WithContext(ctx).
		Where("id = ?", adjustmentID).
		First(&adjustment).Error
	if err != nil {
		return nil, err
	}
	return &adjustment, nil
}

func (r *repository) FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PriceAdjustment, error) {
	var adjustment models.PriceAdjustment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.AdjustmentStatusPending).
		First(&adjustment).Error
	if err != nil {
		return nil, err
	}
	return &adjustment, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PriceAdjustment, error) {
	var adjustments []models.PriceAdjustment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&adjustments).Error; err != nil {
		return nil, err
	}
	return adjustments, nil
}

// ListExpiredOrderIDs returns orders with a pending adjustment whose response
// deadline has passed. The sweep re-checks state under the order lock before
// expiring anything.
func (r *repository) ListExpiredOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var orderIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.PriceAdjustment{}).
		Where("status = ? AND response_deadline <= ?", enums.AdjustmentStatusPending, cutoff).
		Order("response_deadline ASC").
		Limit(limit).
		Distinct().
		Pluck("order_id", &orderIDs).Error
	if err != nil {
		return nil, err
	}
	return orderIDs, nil
}

func (r *repository) Update(ctx context.Context, adjustmentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PriceAdjustment{}).
		Where("id = ?", adjustmentID).
		Updates(updates).Error
}
