package timeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	"github.com/atelierworks/atelier-backend/pkg/types"
)

type fakeRepository struct {
	createFn     func(ctx context.Context, event *models.TimelineEvent) error
	listFn       func(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEvent, error)
	listRecentFn func(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, event *models.TimelineEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEvent, error) {
	if f.listFn != nil {
		return f.listFn(ctx, orderID)
	}
	return nil, nil
}

func (f *fakeRepository) ListRecentByOrderID(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error) {
	if f.listRecentFn != nil {
		return f.listRecentFn(ctx, orderID, limit)
	}
	return nil, nil
}

func TestService_Record(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	input := RecordEventInput{
		OrderID:     uuid.New(),
		EventType:   enums.TimelineStatusChanged,
		Description: "order moved from created to consultation",
		Metadata:    types.JSONMap{"from": "created", "to": "consultation"},
	}

	var created *models.TimelineEvent
	repo.createFn = func(ctx context.Context, event *models.TimelineEvent) error {
		created = event
		return nil
	}

	got, err := svc.Record(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if created == nil {
		t.Fatal("expected repository create to be called")
	}
	if got.OrderID != input.OrderID {
		t.Fatalf("unexpected order id %s", got.OrderID)
	}
	if got.EventType != enums.TimelineStatusChanged {
		t.Fatalf("unexpected event type %s", got.EventType)
	}
}

func TestService_RecordValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	cases := []struct {
		name  string
		input RecordEventInput
	}{
		{
			name: "missing order id",
			input: RecordEventInput{
				EventType:   enums.TimelineOrderCreated,
				Description: "order created",
			},
		},
		{
			name: "invalid event type",
			input: RecordEventInput{
				OrderID:     uuid.New(),
				EventType:   enums.TimelineEventType("bogus"),
				Description: "order created",
			},
		},
		{
			name: "missing description",
			input: RecordEventInput{
				OrderID:   uuid.New(),
				EventType: enums.TimelineOrderCreated,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Record(context.Background(), nil, tc.input); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestService_RecordRepositoryError(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(ctx context.Context, event *models.TimelineEvent) error {
			return errors.New("insert failed")
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.Record(context.Background(), nil, RecordEventInput{
		OrderID:     uuid.New(),
		EventType:   enums.TimelineOrderCreated,
		Description: "order created",
	})
	if err == nil {
		t.Fatal("expected repository error to propagate")
	}
}

func TestService_ListRecentDefaultsLimit(t *testing.T) {
	var gotLimit int
	repo := &fakeRepository{
		listRecentFn: func(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	if _, err := svc.ListRecent(context.Background(), uuid.New(), 0); err != nil {
		t.Fatalf("ListRecent error: %v", err)
	}
	if gotLimit != 20 {
		t.Fatalf("expected default limit 20, got %d", gotLimit)
	}
}
