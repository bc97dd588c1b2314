package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atelierworks/atelier-backend/api/middleware"
	"github.com/atelierworks/atelier-backend/api/responses"
	"github.com/atelierworks/atelier-backend/api/validators"
	internalorders "github.com/atelierworks/atelier-backend/internal/orders"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
	"github.com/atelierworks/atelier-backend/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type createOrderRequest struct {
	ProviderID           string `json:"provider_id" validate:"required,uuid"`
	PriceCents           int64  `json:"price_cents" validate:"required,gt=0"`
	ConsultationRequired bool   `json:"consultation_required"`
	PaymentCustomerID    string `json:"payment_customer_id" validate:"required"`
	PaymentSourceID      string `json:"payment_source_id" validate:"required"`
}

type shipOrderRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required"`
	Carrier        string `json:"carrier" validate:"required"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type requestConsultationRequest struct {
	TimeoutAt *time.Time `json:"timeout_at"`
}

type proposeAdjustmentRequest struct {
	AdjustedPriceCents int64      `json:"adjusted_price_cents" validate:"required,gt=0"`
	Justification      string     `json:"justification" validate:"required"`
	ResponseDeadline   *time.Time `json:"response_deadline"`
}

type resolveAdjustmentRequest struct {
	Approve           bool   `json:"approve"`
	PaymentCustomerID string `json:"payment_customer_id"`
	PaymentSourceID   string `json:"payment_source_id"`
}

// Create opens a new production order with the caller as customer and the
// full price held in escrow.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider id"))
			return
		}

		order, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			CustomerID:           actorID,
			ProviderID:           providerID,
			PriceCents:           req.PriceCents,
			ConsultationRequired: req.ConsultationRequired,
			PaymentCustomerID:    req.PaymentCustomerID,
			PaymentSourceID:      req.PaymentSourceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.ProjectOrder(order))
	}
}

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultPageSize, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		projections, err := svc.List(r.Context(), actorID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projections)
	}
}

// Detail returns the full order projection with consultation, adjustment,
// and escrow state.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projection, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projection)
	}
}

// Timeline returns the order's append-only event history.
func Timeline(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.Timeline(r.Context(), orderID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}

// Advance moves the order to the next status in the progression.
func Advance(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		order, err := svc.Advance(r.Context(), internalorders.AdvanceInput{OrderID: orderID, ActorID: actorID})
		if err != nil {
			return nil, err
		}
		return internalorders.ProjectOrder(order), nil
	})
}

// Ship records shipment details and moves the order to shipped.
func Ship(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		var req shipOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		order, err := svc.MarkShipped(r.Context(), orderID, actorID, internalorders.ShipmentDetails{
			TrackingNumber: req.TrackingNumber,
			Carrier:        req.Carrier,
		})
		if err != nil {
			return nil, err
		}
		return internalorders.ProjectOrder(order), nil
	})
}

// Cancel terminates the order and refunds the held funds.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		var req cancelOrderRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			return nil, err
		}
		order, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			OrderID: orderID,
			ActorID: actorID,
			Reason:  strings.TrimSpace(req.Reason),
		})
		if err != nil {
			return nil, err
		}
		return internalorders.ProjectOrder(order), nil
	})
}

// ConfirmDelivery completes the order on the customer's say-so and releases
// escrow to the provider.
func ConfirmDelivery(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		order, err := svc.ConfirmDelivery(r.Context(), orderID, actorID)
		if err != nil {
			return nil, err
		}
		return internalorders.ProjectOrder(order), nil
	})
}

// RequestConsultation opens a consultation on the order.
func RequestConsultation(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		var req requestConsultationRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			return nil, err
		}
		input := internalorders.ConsultationRequestInput{OrderID: orderID, ActorID: actorID}
		if req.TimeoutAt != nil {
			input.TimeoutAt = *req.TimeoutAt
		}
		consultation, err := svc.RequestConsultation(r.Context(), input)
		if err != nil {
			return nil, err
		}
		return internalorders.ConsultationViewOf(consultation), nil
	})
}

// StartConsultation marks the active consultation as in progress.
func StartConsultation(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		consultation, err := svc.StartConsultation(r.Context(), orderID, actorID)
		if err != nil {
			return nil, err
		}
		return internalorders.ConsultationViewOf(consultation), nil
	})
}

// CompleteConsultation closes the active consultation and opens the gate.
func CompleteConsultation(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		consultation, err := svc.CompleteConsultation(r.Context(), orderID, actorID)
		if err != nil {
			return nil, err
		}
		return internalorders.ConsultationViewOf(consultation), nil
	})
}

// WaiveConsultation waives the order's consultation requirement.
func WaiveConsultation(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		order, err := svc.WaiveConsultation(r.Context(), orderID, actorID)
		if err != nil {
			return nil, err
		}
		return internalorders.ProjectOrder(order), nil
	})
}

// ProposeAdjustment opens a price adjustment proposal on the order.
func ProposeAdjustment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		var req proposeAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		input := internalorders.ProposeAdjustmentInput{
			OrderID:            orderID,
			ActorID:            actorID,
			AdjustedPriceCents: req.AdjustedPriceCents,
			Justification:      req.Justification,
		}
		if req.ResponseDeadline != nil {
			input.ResponseDeadline = *req.ResponseDeadline
		}
		adjustment, err := svc.ProposeAdjustment(r.Context(), input)
		if err != nil {
			return nil, err
		}
		return internalorders.AdjustmentViewOf(adjustment), nil
	})
}

// ResolveAdjustment records the counterparty's approval or rejection.
func ResolveAdjustment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return withOrderActor(logg, func(r *http.Request, orderID, actorID uuid.UUID) (any, error) {
		var req resolveAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		adjustment, err := svc.ResolveAdjustment(r.Context(), internalorders.ResolveAdjustmentInput{
			OrderID:           orderID,
			ActorID:           actorID,
			Approve:           req.Approve,
			PaymentCustomerID: req.PaymentCustomerID,
			PaymentSourceID:   req.PaymentSourceID,
		})
		if err != nil {
			return nil, err
		}
		return internalorders.AdjustmentViewOf(adjustment), nil
	})
}

// withOrderActor handles the shared order-id and actor plumbing for mutating
// endpoints.
func withOrderActor(logg *logger.Logger, fn func(r *http.Request, orderID, actorID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := fn(r, orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
