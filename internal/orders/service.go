package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/internal/adjustments"
	"github.com/atelierworks/atelier-backend/internal/consultations"
	"github.com/atelierworks/atelier-backend/internal/escrow"
	"github.com/atelierworks/atelier-backend/internal/timeline"
	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
	"github.com/atelierworks/atelier-backend/pkg/outbox"
	"github.com/atelierworks/atelier-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the lifecycle controller for production orders. It is the only
// writer of order status; every mutation takes the order's row lock first so
// operations on one order serialize while independent orders stay parallel.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.ProductionOrder, error)
	Advance(ctx context.Context, input AdvanceInput) (*models.ProductionOrder, error)
	MarkShipped(ctx context.Context, orderID, actorID uuid.UUID, shipment ShipmentDetails) (*models.ProductionOrder, error)
	Cancel(ctx context.Context, input CancelInput) (*models.ProductionOrder, error)
	ConfirmDelivery(ctx context.Context, orderID, actorID uuid.UUID) (*models.ProductionOrder, error)

	RequestConsultation(ctx context.Context, input ConsultationRequestInput) (*models.Consultation, error)
	StartConsultation(ctx context.Context, orderID, actorID uuid.UUID) (*models.Consultation, error)
	CompleteConsultation(ctx context.Context, orderID, actorID uuid.UUID) (*models.Consultation, error)
	WaiveConsultation(ctx context.Context, orderID, actorID uuid.UUID) (*models.ProductionOrder, error)

	ProposeAdjustment(ctx context.Context, input ProposeAdjustmentInput) (*models.PriceAdjustment, error)
	ResolveAdjustment(ctx context.Context, input ResolveAdjustmentInput) (*models.PriceAdjustment, error)

	ExpireDueConsultations(ctx context.Context, now time.Time, limit int) (int, error)
	ExpireDueAdjustments(ctx context.Context, now time.Time, limit int) (int, error)

	Get(ctx context.Context, orderID uuid.UUID) (*OrderProjection, error)
	List(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]OrderProjection, error)
	Timeline(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error)
}

type service struct {
	repo          Repository
	tx            txRunner
	consultations consultations.Service
	adjustments   adjustments.Service
	escrow        escrow.Service
	timeline      timeline.Service
	outbox        outboxPublisher
}

// NewService builds the order lifecycle controller with its collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	consultationSvc consultations.Service,
	adjustmentSvc adjustments.Service,
	escrowSvc escrow.Service,
	timelineSvc timeline.Service,
	outboxSvc outboxPublisher,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if consultationSvc == nil {
		return nil, fmt.Errorf("consultations service required")
	}
	if adjustmentSvc == nil {
		return nil, fmt.Errorf("adjustments service required")
	}
	if escrowSvc == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if timelineSvc == nil {
		return nil, fmt.Errorf("timeline service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:          repo,
		tx:            tx,
		consultations: consultationSvc,
		adjustments:   adjustmentSvc,
		escrow:        escrowSvc,
		timeline:      timelineSvc,
		outbox:        outboxSvc,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.ProductionOrder, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.ProviderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}
	if input.CustomerID == input.ProviderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and provider must differ")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidAmount, "price must be positive")
	}

	// Orders that do not need a consultation skip straight past the gate.
	initialStatus := enums.OrderStatusPendingOrderReceived
	if input.ConsultationRequired {
		initialStatus = enums.OrderStatusPendingConsultation
	}

	var created *models.ProductionOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order := &models.ProductionOrder{
			CustomerID:           input.CustomerID,
			ProviderID:           input.ProviderID,
			Status:               initialStatus,
			EscrowAmountCents:    input.PriceCents,
			FinalPriceCents:      input.PriceCents,
			ConsultationRequired: input.ConsultationRequired,
		}
		order, err := repo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		if _, err := s.escrow.Hold(ctx, tx, escrow.AuthorizeInput{
			OrderID:     order.ID,
			CustomerID:  input.PaymentCustomerID,
			SourceID:    input.PaymentSourceID,
			AmountCents: input.PriceCents,
		}); err != nil {
			return err
		}

		if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
			OrderID:     order.ID,
			EventType:   enums.TimelineOrderCreated,
			Description: "order created",
			Metadata: types.JSONMap{
				"escrow_amount_cents":   order.EscrowAmountCents,
				"consultation_required": order.ConsultationRequired,
			},
		}); err != nil {
			return err
		}
		if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
			OrderID:     order.ID,
			EventType:   enums.TimelineEscrowHeld,
			Description: fmt.Sprintf("escrow of %s held", types.FormatMajorUnits(order.EscrowAmountCents)),
			Metadata:    types.JSONMap{"amount_cents": order.EscrowAmountCents},
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actorRef(input.CustomerID, enums.PartyCustomer),
			Data: OrderCreatedEvent{
				OrderID:              order.ID,
				CustomerID:           order.CustomerID,
				ProviderID:           order.ProviderID,
				EscrowAmountCents:    order.EscrowAmountCents,
				ConsultationRequired: order.ConsultationRequired,
			},
		}); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Advance(ctx context.Context, input AdvanceInput) (*models.ProductionOrder, error) {
	var advanced *models.ProductionOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, input.OrderID, input.ActorID)
		if err != nil {
			return err
		}

		next, ok := order.Status.Next()
		if !ok {
			return pkgerrors.NewReason(pkgerrors.ReasonAlreadyTerminal, "order already resolved")
		}

		if order.Status == enums.OrderStatusPendingConsultation {
			satisfied, err := s.consultations.GateSatisfied(ctx, tx, order)
			if err != nil {
				return err
			}
			if !satisfied {
				return pkgerrors.NewReason(pkgerrors.ReasonConsultationPending, "consultation must be completed or waived first")
			}
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": next}

		if next == enums.OrderStatusShipped {
			if input.Shipment == nil ||
				strings.TrimSpace(input.Shipment.TrackingNumber) == "" ||
				strings.TrimSpace(input.Shipment.Carrier) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "tracking number and carrier required to ship")
			}
			updates["tracking_number"] = strings.TrimSpace(input.Shipment.TrackingNumber)
			updates["shipping_carrier"] = strings.TrimSpace(input.Shipment.Carrier)
		}
		if next == enums.OrderStatusOrderReceived {
			updates["order_received_at"] = now
		}
		if next == enums.OrderStatusCompleted {
			// Settle at the final price so an approved decrease never charges
			// the customer the original figure.
			if _, err := s.escrow.Release(ctx, tx, order.ID, order.FinalPriceCents); err != nil {
				return err
			}
			updates["escrow_released_at"] = now
		}

		if err := s.applyTransition(ctx, tx, repo, order, next, input.ActorID, party, updates, now); err != nil {
			return err
		}
		advanced = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return advanced, nil
}

func (s *service) MarkShipped(ctx context.Context, orderID, actorID uuid.UUID, shipment ShipmentDetails) (*models.ProductionOrder, error) {
	return s.Advance(ctx, AdvanceInput{
		OrderID:  orderID,
		ActorID:  actorID,
		Shipment: &shipment,
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.ProductionOrder, error) {
	var cancelled *models.ProductionOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, input.OrderID, input.ActorID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.NewReason(pkgerrors.ReasonAlreadyTerminal, "order already resolved")
		}

		// Approved adjustments are honored on the way out: the refund covers
		// the current final price, not the original escrow amount.
		if _, err := s.escrow.Refund(ctx, tx, order.ID, order.FinalPriceCents, input.Reason); err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			updates["cancel_reason"] = reason
		}

		if err := s.applyTransition(ctx, tx, repo, order, enums.OrderStatusCancelled, input.ActorID, party, updates, now); err != nil {
			return err
		}

		if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
			OrderID:     order.ID,
			EventType:   enums.TimelineEscrowRefunded,
			Description: fmt.Sprintf("escrow of %s refunded", types.FormatMajorUnits(order.FinalPriceCents)),
			Metadata:    types.JSONMap{"amount_cents": order.FinalPriceCents},
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowRefunded,
			AggregateType: enums.AggregateEscrowHold,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actorRef(input.ActorID, party),
			Data: map[string]any{
				"order_id":     order.ID,
				"amount_cents": order.FinalPriceCents,
				"reason":       strings.TrimSpace(input.Reason),
			},
		}); err != nil {
			return err
		}

		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *service) ConfirmDelivery(ctx context.Context, orderID, actorID uuid.UUID) (*models.ProductionOrder, error) {
	var confirmed *models.ProductionOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, orderID, actorID)
		if err != nil {
			return err
		}
		if party != enums.PartyCustomer {
			return pkgerrors.NewReason(pkgerrors.ReasonUnauthorized, "only the customer may confirm delivery")
		}
		if order.Status.IsTerminal() {
			return pkgerrors.NewReason(pkgerrors.ReasonAlreadyTerminal, "order already resolved")
		}
		if order.Status != enums.OrderStatusShipped && order.Status != enums.OrderStatusReadyForDelivery {
			return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "delivery can only be confirmed once the order is ready or shipped")
		}

		if _, err := s.escrow.Release(ctx, tx, order.ID, order.FinalPriceCents); err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":             enums.OrderStatusCompleted,
			"escrow_released_at": now,
		}
		if err := s.applyTransition(ctx, tx, repo, order, enums.OrderStatusCompleted, actorID, party, updates, now); err != nil {
			return err
		}

		if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
			OrderID:     order.ID,
			EventType:   enums.TimelineDeliveryConfirmed,
			Description: "customer confirmed delivery",
		}); err != nil {
			return err
		}

		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderProjection, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	projection := ProjectOrder(order)

	if hold, err := s.escrow.Get(ctx, orderID); err == nil {
		projection.Escrow = &EscrowView{
			HeldCents:     hold.HeldCents(),
			ReleasedCents: hold.ReleasedCents,
			RefundedCents: hold.RefundedCents,
			ReleasedAt:    hold.ReleasedAt,
			RefundedAt:    hold.RefundedAt,
		}
	}

	consultationRows, err := s.consultations.List(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range consultationRows {
		if consultationRows[i].Status.IsTerminal() {
			continue
		}
		projection.ActiveConsultation = ConsultationViewOf(&consultationRows[i])
		break
	}

	pending, err := s.adjustments.FindPending(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	projection.PendingAdjustment = AdjustmentViewOf(pending)

	return projection, nil
}

func (s *service) List(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]OrderProjection, error) {
	if participantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "participant id required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.repo.ListByParticipant(ctx, participantID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	projections := make([]OrderProjection, 0, len(rows))
	for i := range rows {
		projections = append(projections, *ProjectOrder(&rows[i]))
	}
	return projections, nil
}

func (s *service) Timeline(ctx context.Context, orderID uuid.UUID, limit int) ([]models.TimelineEvent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if limit > 0 {
		return s.timeline.ListRecent(ctx, orderID, limit)
	}
	return s.timeline.List(ctx, orderID)
}

// lockOrder loads the order under its row lock and authenticates the actor as
// one of its parties.
func (s *service) lockOrder(ctx context.Context, repo Repository, orderID, actorID uuid.UUID) (*models.ProductionOrder, enums.Party, error) {
	if orderID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actorID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	party, err := partyOf(order, actorID)
	if err != nil {
		return nil, "", err
	}
	return order, party, nil
}

// applyTransition persists the status change, mutates the in-memory order,
// and records the timeline entry plus state-change event all transitions share.
func (s *service) applyTransition(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	order *models.ProductionOrder,
	next enums.OrderStatus,
	actorID uuid.UUID,
	party enums.Party,
	updates map[string]any,
	now time.Time,
) error {
	from := order.Status
	if err := repo.Update(ctx, order.ID, order.Version, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	order.Status = next
	order.Version++
	applyOrderUpdates(order, updates)

	eventType := enums.TimelineStatusChanged
	description := fmt.Sprintf("order moved from %s to %s", from, next)
	switch next {
	case enums.OrderStatusCancelled:
		eventType = enums.TimelineOrderCancelled
		description = "order cancelled"
	case enums.OrderStatusShipped:
		eventType = enums.TimelineOrderShipped
		description = "order shipped"
	}

	if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
		OrderID:     order.ID,
		EventType:   eventType,
		Description: description,
		Metadata:    types.JSONMap{"from": string(from), "to": string(next)},
	}); err != nil {
		return err
	}

	if next == enums.OrderStatusCompleted {
		if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
			OrderID:     order.ID,
			EventType:   enums.TimelineEscrowReleased,
			Description: fmt.Sprintf("escrow of %s released to provider", types.FormatMajorUnits(order.FinalPriceCents)),
			Metadata:    types.JSONMap{"amount_cents": order.FinalPriceCents},
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEscrowReleased,
			AggregateType: enums.AggregateEscrowHold,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actorRef(actorID, party),
			Data: map[string]any{
				"order_id":     order.ID,
				"amount_cents": order.FinalPriceCents,
			},
		}); err != nil {
			return err
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actorRef(actorID, party),
		Data: OrderStateChangedEvent{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   next,
			ActorID:    actorID,
			OccurredAt: now,
		},
	})
}

func applyOrderUpdates(order *models.ProductionOrder, updates map[string]any) {
	if v, ok := updates["order_received_at"].(time.Time); ok {
		order.OrderReceivedAt = &v
	}
	if v, ok := updates["escrow_released_at"].(time.Time); ok {
		order.EscrowReleasedAt = &v
	}
	if v, ok := updates["cancelled_at"].(time.Time); ok {
		order.CancelledAt = &v
	}
	if v, ok := updates["cancel_reason"].(string); ok {
		order.CancelReason = &v
	}
	if v, ok := updates["tracking_number"].(string); ok {
		order.TrackingNumber = &v
	}
	if v, ok := updates["shipping_carrier"].(string); ok {
		order.ShippingCarrier = &v
	}
}

func partyOf(order *models.ProductionOrder, actorID uuid.UUID) (enums.Party, error) {
	switch actorID {
	case order.CustomerID:
		return enums.PartyCustomer, nil
	case order.ProviderID:
		return enums.PartyProvider, nil
	default:
		return "", pkgerrors.NewReason(pkgerrors.ReasonUnauthorized, "actor is not a party to the order")
	}
}

func actorRef(actorID uuid.UUID, party enums.Party) *outbox.ActorRef {
	return &outbox.ActorRef{ActorID: actorID, Party: party}
}
