package escrow

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
)

// Repository manages persistence for escrow holds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, hold *models.EscrowHold) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, error)
	Update(ctx context.Context, holdID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an escrow repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, hold *models.EscrowHold) error {
	return r.db.WithContext(ctx).Create(hold).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, error) {
	var hold models.EscrowHold
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&hold).Error
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) Update(ctx context.Context, holdID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.EscrowHold{}).
		Where("id = ?", holdID).
		Updates(updates).Error
}
