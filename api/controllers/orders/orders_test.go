package orders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atelierworks/atelier-backend/api/middleware"
	internalorders "github.com/atelierworks/atelier-backend/internal/orders"
	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
	"github.com/atelierworks/atelier-backend/pkg/logger"
)

type stubService struct {
	internalorders.Service

	createFn  func(ctx context.Context, input internalorders.CreateOrderInput) (*models.ProductionOrder, error)
	advanceFn func(ctx context.Context, input internalorders.AdvanceInput) (*models.ProductionOrder, error)
	getFn     func(ctx context.Context, orderID uuid.UUID) (*internalorders.OrderProjection, error)
	resolveFn func(ctx context.Context, input internalorders.ResolveAdjustmentInput) (*models.PriceAdjustment, error)
}

func (s *stubService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.ProductionOrder, error) {
	return s.createFn(ctx, input)
}

func (s *stubService) Advance(ctx context.Context, input internalorders.AdvanceInput) (*models.ProductionOrder, error) {
	return s.advanceFn(ctx, input)
}

func (s *stubService) Get(ctx context.Context, orderID uuid.UUID) (*internalorders.OrderProjection, error) {
	return s.getFn(ctx, orderID)
}

func (s *stubService) ResolveAdjustment(ctx context.Context, input internalorders.ResolveAdjustmentInput) (*models.PriceAdjustment, error) {
	return s.resolveFn(ctx, input)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func newRequest(t *testing.T, method, target, body string, actorID uuid.UUID, orderID string) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	ctx := req.Context()
	if actorID != uuid.Nil {
		ctx = middleware.WithActorID(ctx, actorID)
	}
	if orderID != "" {
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("orderId", orderID)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

func TestCreateReturnsProjection(t *testing.T) {
	actorID := uuid.New()
	providerID := uuid.New()
	svc := &stubService{
		createFn: func(_ context.Context, input internalorders.CreateOrderInput) (*models.ProductionOrder, error) {
			if input.CustomerID != actorID {
				t.Fatalf("expected customer from actor header, got %s", input.CustomerID)
			}
			if input.PriceCents != 10000 {
				t.Fatalf("unexpected price %d", input.PriceCents)
			}
			return &models.ProductionOrder{
				ID:              uuid.New(),
				CustomerID:      input.CustomerID,
				ProviderID:      input.ProviderID,
				Status:          enums.OrderStatusPendingConsultation,
				FinalPriceCents: input.PriceCents,
			}, nil
		},
	}

	body := `{"provider_id":"` + providerID.String() + `","price_cents":10000,"payment_customer_id":"cust-1","payment_source_id":"src-1"}`
	req := newRequest(t, http.MethodPost, "/api/v1/orders", body, actorID, "")
	rec := httptest.NewRecorder()

	Create(svc, testLogger())(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "pending_consultation") {
		t.Fatalf("expected projection in response: %s", rec.Body.String())
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc := &stubService{}
	req := newRequest(t, http.MethodPost, "/api/v1/orders", `{"price_cents":100}`, uuid.New(), "")
	rec := httptest.NewRecorder()

	Create(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateRequiresActor(t *testing.T) {
	svc := &stubService{}
	req := newRequest(t, http.MethodPost, "/api/v1/orders", `{}`, uuid.Nil, "")
	rec := httptest.NewRecorder()

	Create(svc, testLogger())(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdvanceMapsStateConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &stubService{
		advanceFn: func(context.Context, internalorders.AdvanceInput) (*models.ProductionOrder, error) {
			return nil, pkgerrors.NewReason(pkgerrors.ReasonConsultationPending, "consultation must be completed or waived first")
		},
	}
	req := newRequest(t, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/advance", "", uuid.New(), orderID.String())
	rec := httptest.NewRecorder()

	Advance(svc, testLogger())(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "consultation_pending") {
		t.Fatalf("expected reason in payload: %s", rec.Body.String())
	}
}

func TestAdvanceRejectsBadOrderID(t *testing.T) {
	svc := &stubService{}
	req := newRequest(t, http.MethodPost, "/api/v1/orders/nope/advance", "", uuid.New(), "nope")
	rec := httptest.NewRecorder()

	Advance(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDetailNotFound(t *testing.T) {
	orderID := uuid.New()
	svc := &stubService{
		getFn: func(context.Context, uuid.UUID) (*internalorders.OrderProjection, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}
	req := newRequest(t, http.MethodGet, "/api/v1/orders/"+orderID.String(), "", uuid.New(), orderID.String())
	rec := httptest.NewRecorder()

	Detail(svc, testLogger())(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestResolveAdjustmentPassesDecision(t *testing.T) {
	orderID := uuid.New()
	actorID := uuid.New()
	var captured internalorders.ResolveAdjustmentInput
	svc := &stubService{
		resolveFn: func(_ context.Context, input internalorders.ResolveAdjustmentInput) (*models.PriceAdjustment, error) {
			captured = input
			return &models.PriceAdjustment{
				ID:                 uuid.New(),
				OrderID:            input.OrderID,
				Status:             enums.AdjustmentStatusApproved,
				AdjustmentType:     enums.AdjustmentTypeIncrease,
				OriginalPriceCents: 10000,
				AdjustedPriceCents: 12000,
				ProposedBy:         enums.PartyProvider,
				ResponseDeadline:   time.Now().UTC(),
			}, nil
		},
	}

	body := `{"approve":true,"payment_customer_id":"cust-1","payment_source_id":"src-1"}`
	req := newRequest(t, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/adjustments/resolve", body, actorID, orderID.String())
	rec := httptest.NewRecorder()

	ResolveAdjustment(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !captured.Approve || captured.ActorID != actorID || captured.OrderID != orderID {
		t.Fatalf("unexpected input: %+v", captured)
	}
	if captured.PaymentSourceID != "src-1" {
		t.Fatalf("expected payment source forwarded, got %q", captured.PaymentSourceID)
	}
}
