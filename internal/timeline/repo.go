package timeline

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
)

// Repository manages persistence for timeline events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.TimelineEvent) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEvent, error)
	ListRecentByOrderID(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a timeline repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.TimelineEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEvent, error) {
	var events []models.TimelineEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seq ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListRecentByOrderID(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error) {
	var events []models.TimelineEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seq DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	// Callers expect chronological order even for the tail of the history.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}
