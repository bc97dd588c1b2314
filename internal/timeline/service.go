package timeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	"github.com/atelierworks/atelier-backend/pkg/types"
)

// Service records and reads the append-only history of an order. Entries are
// never updated or deleted once written.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordEventInput) (*models.TimelineEvent, error)
	List(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEvent, error)
	ListRecent(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error)
}

type service struct {
	repo Repository
}

// RecordEventInput captures the immutable data a timeline entry requires.
type RecordEventInput struct {
	OrderID     uuid.UUID
	EventType   enums.TimelineEventType
	Description string
	Metadata    types.JSONMap
}

// NewService wires a timeline service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("timeline repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordEventInput) (*models.TimelineEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if !input.EventType.IsValid() {
		return nil, fmt.Errorf("invalid timeline event type %q", input.EventType)
	}
	if input.Description == "" {
		return nil, fmt.Errorf("description is required")
	}

	event := &models.TimelineEvent{
		OrderID:     input.OrderID,
		EventType:   input.EventType,
		Description: input.Description,
		Metadata:    input.Metadata,
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) List(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEvent, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) ListRecent(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListRecentByOrderID(ctx, orderID, limit)
}
