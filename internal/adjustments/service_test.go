package adjustments

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
	rows map[uuid.UUID]*models.PriceAdjustment
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rows: map[uuid.UUID]*models.PriceAdjustment{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, adjustment *models.PriceAdjustment) error {
	if adjustment.ID == uuid.Nil {
		adjustment.ID = uuid.New()
	}
	copied := *adjustment
	f.rows[adjustment.ID] = &copied
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, adjustmentID uuid.UUID) (*models.PriceAdjustment, error) {
	row, ok := f.rows[adjustmentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeRepository) FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PriceAdjustment, error) {
	for _, row := range f.rows {
		if row.OrderID == orderID && row.Status == enums.AdjustmentStatusPending {
			copied := *row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PriceAdjustment, error) {
	var out []models.PriceAdjustment
	for _, row := range f.rows {
		if row.OrderID == orderID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListExpiredOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, row := range f.rows {
		if row.Status == enums.AdjustmentStatusPending && !row.ResponseDeadline.After(cutoff) {
			out = append(out, row.OrderID)
		}
	}
	return out, nil
}

func (f *fakeRepository) Update(ctx context.Context, adjustmentID uuid.UUID, updates map[string]any) error {
	row, ok := f.rows[adjustmentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["status"]; ok {
		row.Status = v.(enums.AdjustmentStatus)
	}
	if v, ok := updates["resolved_at"]; ok {
		at := v.(time.Time)
		row.ResolvedAt = &at
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

func testOrder() *models.ProductionOrder {
	return &models.ProductionOrder{
		ID:                uuid.New(),
		Status:            enums.OrderStatusInProduction,
		EscrowAmountCents: 50000,
		FinalPriceCents:   50000,
	}
}

func propose(t *testing.T, svc Service, order *models.ProductionOrder, price int64) *models.PriceAdjustment {
	t.Helper()
	adjustment, err := svc.Propose(context.Background(), nil, order, ProposeInput{
		ProposedBy:         enums.PartyProvider,
		AdjustedPriceCents: price,
		Justification:      "material costs increased mid-production",
	})
	if err != nil {
		t.Fatalf("Propose error: %v", err)
	}
	return adjustment
}

func TestService_Propose(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()

	adjustment := propose(t, svc, order, 60000)
	if adjustment.AdjustmentType != enums.AdjustmentTypeIncrease {
		t.Fatalf("expected increase, got %s", adjustment.AdjustmentType)
	}
	if adjustment.OriginalPriceCents != 50000 {
		t.Fatalf("expected original price snapshot, got %d", adjustment.OriginalPriceCents)
	}
	if adjustment.AdjustmentAmountCents() != 10000 {
		t.Fatalf("expected delta 10000, got %d", adjustment.AdjustmentAmountCents())
	}
	if adjustment.ResponseDeadline.IsZero() {
		t.Fatal("expected default response deadline")
	}
}

func TestService_ProposeDecrease(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()

	adjustment := propose(t, svc, order, 40000)
	if adjustment.AdjustmentType != enums.AdjustmentTypeDecrease {
		t.Fatalf("expected decrease, got %s", adjustment.AdjustmentType)
	}
}

func TestService_ProposeRejections(t *testing.T) {
	svc := newTestService(t, newFakeRepository())

	used := testOrder()
	used.PriceAdjustmentUsed = true

	terminal := testOrder()
	terminal.Status = enums.OrderStatusCompleted

	cases := []struct {
		name   string
		order  *models.ProductionOrder
		input  ProposeInput
		reason pkgerrors.Reason
	}{
		{
			name:  "already used",
			order: used,
			input: ProposeInput{
				ProposedBy:         enums.PartyProvider,
				AdjustedPriceCents: 60000,
				Justification:      "material costs increased mid-production",
			},
			reason: pkgerrors.ReasonAlreadyUsed,
		},
		{
			name:  "terminal order",
			order: terminal,
			input: ProposeInput{
				ProposedBy:         enums.PartyProvider,
				AdjustedPriceCents: 60000,
				Justification:      "material costs increased mid-production",
			},
			reason: pkgerrors.ReasonAlreadyTerminal,
		},
		{
			name:  "no-op amount",
			order: testOrder(),
			input: ProposeInput{
				ProposedBy:         enums.PartyProvider,
				AdjustedPriceCents: 50000,
				Justification:      "material costs increased mid-production",
			},
			reason: pkgerrors.ReasonNoOpAdjustment,
		},
		{
			name:  "non-positive amount",
			order: testOrder(),
			input: ProposeInput{
				ProposedBy:         enums.PartyProvider,
				AdjustedPriceCents: 0,
				Justification:      "material costs increased mid-production",
			},
			reason: pkgerrors.ReasonInvalidAmount,
		},
		{
			name:  "missing justification",
			order: testOrder(),
			input: ProposeInput{
				ProposedBy:         enums.PartyProvider,
				AdjustedPriceCents: 60000,
				Justification:      "   ",
			},
			reason: pkgerrors.ReasonInvalidJustification,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Propose(context.Background(), nil, tc.order, tc.input)
			if !pkgerrors.ReasonIs(err, tc.reason) {
				t.Fatalf("expected %s, got %v", tc.reason, err)
			}
		})
	}
}

func TestService_ProposeShortJustificationAccepted(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()

	adjustment, err := svc.Propose(context.Background(), nil, order, ProposeInput{
		ProposedBy:         enums.PartyProvider,
		AdjustedPriceCents: 60000,
		Justification:      "  rush fee  ",
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if adjustment.Justification != "rush fee" {
		t.Fatalf("expected trimmed justification, got %q", adjustment.Justification)
	}
}

func TestService_ProposeSecondPendingRejected(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()
	propose(t, svc, order, 60000)

	_, err := svc.Propose(context.Background(), nil, order, ProposeInput{
		ProposedBy:         enums.PartyCustomer,
		AdjustedPriceCents: 45000,
		Justification:      "scope reduced after the first fitting",
	})
	if !pkgerrors.ReasonIs(err, pkgerrors.ReasonAlreadyPending) {
		t.Fatalf("expected already_pending, got %v", err)
	}
}

func TestService_ResolveApprove(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()
	propose(t, svc, order, 60000)

	resolved, err := svc.Resolve(context.Background(), nil, order, ResolveInput{
		Actor:    enums.PartyCustomer,
		Decision: DecisionApprove,
	})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolved.Status != enums.AdjustmentStatusApproved {
		t.Fatalf("expected approved, got %s", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Fatal("expected resolved timestamp")
	}
}

func TestService_ResolveByProposerRejected(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()
	propose(t, svc, order, 60000)

	_, err := svc.Resolve(context.Background(), nil, order, ResolveInput{
		Actor:    enums.PartyProvider,
		Decision: DecisionApprove,
	})
	if !pkgerrors.ReasonIs(err, pkgerrors.ReasonUnauthorized) {
		t.Fatalf("expected unauthorized_actor, got %v", err)
	}
}

func TestService_ResolveTwice(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()
	propose(t, svc, order, 60000)

	if _, err := svc.Resolve(context.Background(), nil, order, ResolveInput{
		Actor:    enums.PartyCustomer,
		Decision: DecisionReject,
	}); err != nil {
		t.Fatalf("first Resolve error: %v", err)
	}

	_, err := svc.Resolve(context.Background(), nil, order, ResolveInput{
		Actor:    enums.PartyCustomer,
		Decision: DecisionApprove,
	})
	if !pkgerrors.ReasonIs(err, pkgerrors.ReasonAlreadyResolved) {
		t.Fatalf("expected already_resolved, got %v", err)
	}
}

func TestService_Expire(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()

	past := time.Now().UTC().Add(-time.Hour)
	if _, err := svc.Propose(context.Background(), nil, order, ProposeInput{
		ProposedBy:         enums.PartyProvider,
		AdjustedPriceCents: 60000,
		Justification:      "material costs increased mid-production",
		ResponseDeadline:   past,
	}); err != nil {
		t.Fatalf("Propose error: %v", err)
	}

	expired, err := svc.Expire(context.Background(), nil, order.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	if expired == nil || expired.Status != enums.AdjustmentStatusExpired {
		t.Fatalf("expected expired adjustment, got %+v", expired)
	}

	// Expiry resolves the proposal; a later manual resolution must lose.
	_, err = svc.Resolve(context.Background(), nil, order, ResolveInput{
		Actor:    enums.PartyCustomer,
		Decision: DecisionApprove,
	})
	if !pkgerrors.ReasonIs(err, pkgerrors.ReasonAlreadyResolved) {
		t.Fatalf("expected already_resolved after expiry, got %v", err)
	}
}

func TestService_ExpireBeforeDeadlineIsNoOp(t *testing.T) {
	svc := newTestService(t, newFakeRepository())
	order := testOrder()
	propose(t, svc, order, 60000)

	expired, err := svc.Expire(context.Background(), nil, order.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	if expired != nil {
		t.Fatalf("expected nil before deadline, got %+v", expired)
	}

	// Proposal is still pending and can be resolved.
	if _, err := svc.Resolve(context.Background(), nil, order, ResolveInput{
		Actor:    enums.PartyCustomer,
		Decision: DecisionApprove,
	}); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
}
