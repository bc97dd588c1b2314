package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
)

// Repository defines persistence operations for production orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.ProductionOrder) (*models.ProductionOrder, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error)
	// FindByIDForUpdate takes the order's row lock; every mutation on an
	// order goes through it so concurrent writers serialize per order.
	FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error)
	// Update applies updates guarded by the optimistic version column and
	// bumps it. Returns gorm.ErrRecordNotFound when the guard misses.
	Update(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) error
	ListByParticipant(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]models.ProductionOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.ProductionOrder) (*models.ProductionOrder, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) error {
	merged := map[string]any{"version": version + 1}
	for k, v := range updates {
		merged[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.ProductionOrder{}).
		Where("id = ? AND version = ?", orderID, version).
		Updates(merged)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListByParticipant(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]models.ProductionOrder, error) {
	var orders []models.ProductionOrder
	err := r.db.WithContext(ctx).
		Where("customer_id = ? OR provider_id = ?", participantID, participantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
