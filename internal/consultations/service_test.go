package consultations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
)

type fakeRepository struct {
	rows map[uuid.UUID]*models.Consultation
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rows: map[uuid.UUID]*models.Consultation{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, consultation *models.Consultation) error {
	if consultation.ID == uuid.Nil {
		consultation.ID = uuid.New()
	}
	copied := *consultation
	f.rows[consultation.ID] = &copied
	return nil
}

func (f *fakeRepository) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Consultation, error) {
	for _, row := range f.rows {
		if row.OrderID != orderID {
			continue
		}
		if row.Status == enums.ConsultationStatusPending || row.Status == enums.ConsultationStatusInProgress {
			copied := *row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Consultation, error) {
	var out []models.Consultation
	for _, row := range f.rows {
		if row.OrderID == orderID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeRepository) HasCompletedForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	for _, row := range f.rows {
		if row.OrderID == orderID && row.Status == enums.ConsultationStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) ListTimedOutOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, row := range f.rows {
		active := row.Status == enums.ConsultationStatusPending || row.Status == enums.ConsultationStatusInProgress
		if active && !row.TimeoutAt.After(cutoff) {
			out = append(out, row.OrderID)
		}
	}
	return out, nil
}

func (f *fakeRepository) Update(ctx context.Context, consultationID uuid.UUID, updates map[string]any) error {
	row, ok := f.rows[consultationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["status"]; ok {
		row.Status = v.(enums.ConsultationStatus)
	}
	if v, ok := updates["started_at"]; ok {
		at := v.(time.Time)
		row.StartedAt = &at
	}
	if v, ok := updates["completed_at"]; ok {
		at := v.(time.Time)
		row.CompletedAt = &at
	}
	if v, ok := updates["waived_at"]; ok {
		at := v.(time.Time)
		row.WaivedAt = &at
	}
	return nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func request(t *testing.T, svc Service, orderID uuid.UUID) *models.Consultation {
	t.Helper()
	consultation, err := svc.Request(context.Background(), nil, RequestInput{
		OrderID:     orderID,
		RequestedBy: enums.PartyProvider,
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	return consultation
}

func TestService_Request(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	orderID := uuid.New()

	consultation := request(t, svc, orderID)
	if consultation.Status != enums.ConsultationStatusPending {
		t.Fatalf("expected pending, got %s", consultation.Status)
	}
	if consultation.TimeoutAt.IsZero() {
		t.Fatal("expected default timeout to be applied")
	}
}

func TestService_RequestSecondActiveRejected(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	orderID := uuid.New()
	request(t, svc, orderID)

	_, err := svc.Request(context.Background(), nil, RequestInput{
		OrderID:     orderID,
		RequestedBy: enums.PartyCustomer,
	})
	if !pkgerrors.ReasonIs(err, pkgerrors.ReasonAlreadyActive) {
		t.Fatalf("expected already_active, got %v", err)
	}
}

func TestService_StartIsIdempotent(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	orderID := uuid.New()
	request(t, svc, orderID)

	first, started, err := svc.Start(context.Background(), nil, orderID)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if !started {
		t.Fatal("expected first start to transition")
	}
	if first.Status != enums.ConsultationStatusInProgress {
		t.Fatalf("expected in_progress, got %s", first.Status)
	}

	second, started, err := svc.Start(context.Background(), nil, orderID)
	if err != nil {
		t.Fatalf("second Start error: %v", err)
	}
	if started {
		t.Fatal("expected repeat start to be a no-op")
	}
	if second.Status != enums.ConsultationStatusInProgress {
		t.Fatalf("expected in_progress on repeat, got %s", second.Status)
	}
}

func TestService_CompleteRequiresStart(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	orderID := uuid.New()
	request(t, svc, orderID)

	_, err := svc.Complete(context.Background(), nil, orderID)
	if !pkgerrors.ReasonIs(err, pkgerrors.ReasonInvalidState) {
		t.Fatalf("expected invalid_state, got %v", err)
	}

	if _, _, err := svc.Start(context.Background(), nil, orderID); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	completed, err := svc.Complete(context.Background(), nil, orderID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if completed.Status != enums.ConsultationStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
}

func TestService_WaiveTerminatesActive(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	orderID := uuid.New()
	request(t, svc, orderID)

	waived, err := svc.Waive(context.Background(), nil, orderID)
	if err != nil {
		t.Fatalf("Waive error: %v", err)
	}
	if waived == nil || waived.Status != enums.ConsultationStatusWaived {
		t.Fatalf("expected waived consultation, got %+v", waived)
	}

	// A new consultation can be requested after the waiver.
	request(t, svc, orderID)
}

func TestService_WaiveWithoutActiveIsNoOp(t *testing.T) {
	svc := newTestService(t, newFakeRepository())

	waived, err := svc.Waive(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("Waive error: %v", err)
	}
	if waived != nil {
		t.Fatalf("expected nil for no active consultation, got %+v", waived)
	}
}

func TestService_Expire(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	orderID := uuid.New()

	past := time.Now().UTC().Add(-time.Hour)
	if _, err := svc.Request(context.Background(), nil, RequestInput{
		OrderID:     orderID,
		RequestedBy: enums.PartyProvider,
		TimeoutAt:   past,
	}); err != nil {
		t.Fatalf("Request error: %v", err)
	}

	expired, err := svc.Expire(context.Background(), nil, orderID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	if expired == nil || expired.Status != enums.ConsultationStatusExpired {
		t.Fatalf("expected expired consultation, got %+v", expired)
	}
}

func TestService_ExpireBeforeTimeoutIsNoOp(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	orderID := uuid.New()
	request(t, svc, orderID)

	expired, err := svc.Expire(context.Background(), nil, orderID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	if expired != nil {
		t.Fatalf("expected nil before timeout, got %+v", expired)
	}
}

func TestService_GateSatisfied(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	orderID := uuid.New()

	cases := []struct {
		name  string
		order models.ProductionOrder
		setup func(t *testing.T)
		want  bool
	}{
		{
			name:  "not required",
			order: models.ProductionOrder{ID: orderID, ConsultationRequired: false},
			want:  true,
		},
		{
			name:  "waived",
			order: models.ProductionOrder{ID: orderID, ConsultationRequired: true, ConsultationWaived: true},
			want:  true,
		},
		{
			name:  "required and unresolved",
			order: models.ProductionOrder{ID: orderID, ConsultationRequired: true},
			setup: func(t *testing.T) { request(t, svc, orderID) },
			want:  false,
		},
		{
			name:  "required and completed",
			order: models.ProductionOrder{ID: orderID, ConsultationRequired: true},
			setup: func(t *testing.T) {
				if _, _, err := svc.Start(context.Background(), nil, orderID); err != nil {
					t.Fatalf("Start error: %v", err)
				}
				if _, err := svc.Complete(context.Background(), nil, orderID); err != nil {
					t.Fatalf("Complete error: %v", err)
				}
			},
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup(t)
			}
			order := tc.order
			got, err := svc.GateSatisfied(context.Background(), nil, &order)
			if err != nil {
				t.Fatalf("GateSatisfied error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestService_GateNotSatisfiedByExpiry(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	orderID := uuid.New()

	past := time.Now().UTC().Add(-time.Hour)
	if _, err := svc.Request(context.Background(), nil, RequestInput{
		OrderID:     orderID,
		RequestedBy: enums.PartyCustomer,
		TimeoutAt:   past,
	}); err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if _, err := svc.Expire(context.Background(), nil, orderID, time.Now().UTC()); err != nil {
		t.Fatalf("Expire error: %v", err)
	}

	order := models.ProductionOrder{ID: orderID, ConsultationRequired: true}
	satisfied, err := svc.GateSatisfied(context.Background(), nil, &order)
	if err != nil {
		t.Fatalf("GateSatisfied error: %v", err)
	}
	if satisfied {
		t.Fatal("expired consultation must not satisfy the gate")
	}
}
