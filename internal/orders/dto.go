package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	"github.com/atelierworks/atelier-backend/pkg/types"
)

// CreateOrderInput captures the fields needed to open an order and place the
// escrow hold.
type CreateOrderInput struct {
	CustomerID           uuid.UUID
	ProviderID           uuid.UUID
	PriceCents           int64
	ConsultationRequired bool

	// Payment source details forwarded to the processor for the hold.
	PaymentCustomerID string
	PaymentSourceID   string
}

// ActorInput identifies who is performing a mutation. The service derives the
// actor's side of the order from the ID.
type ActorInput struct {
	ActorID uuid.UUID
}

// ShipmentDetails carries the collaborator fields recorded on the shipped
// transition.
type ShipmentDetails struct {
	TrackingNumber string
	Carrier        string
}

// AdvanceInput moves an order one step forward.
type AdvanceInput struct {
	OrderID  uuid.UUID
	ActorID  uuid.UUID
	Shipment *ShipmentDetails
}

// CancelInput terminates an order and refunds the escrow.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// ConsultationRequestInput opens a consultation on an order.
type ConsultationRequestInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	TimeoutAt time.Time
}

// ProposeAdjustmentInput proposes a new final price.
type ProposeAdjustmentInput struct {
	OrderID            uuid.UUID
	ActorID            uuid.UUID
	AdjustedPriceCents int64
	Justification      string
	ResponseDeadline   time.Time
}

// ResolveAdjustmentInput answers a pending proposal.
type ResolveAdjustmentInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Approve bool
	// Payment source for the top-up charge when approving an increase beyond
	// the amount already held.
	PaymentCustomerID string
	PaymentSourceID   string
}

// ConsultationView is the consultation slice of the order projection.
type ConsultationView struct {
	ID          uuid.UUID                `json:"id"`
	Status      enums.ConsultationStatus `json:"status"`
	RequestedBy enums.Party              `json:"requested_by"`
	TimeoutAt   time.Time                `json:"timeout_at"`
}

// AdjustmentView is the pending-adjustment slice of the order projection.
type AdjustmentView struct {
	ID                 uuid.UUID              `json:"id"`
	Status             enums.AdjustmentStatus `json:"status"`
	AdjustmentType     enums.AdjustmentType   `json:"adjustment_type"`
	OriginalPriceCents int64                  `json:"original_price_cents"`
	AdjustedPriceCents int64                  `json:"adjusted_price_cents"`
	ProposedBy         enums.Party            `json:"proposed_by"`
	ResponseDeadline   time.Time              `json:"response_deadline"`
}

// EscrowView summarizes the funds held for the order.
type EscrowView struct {
	HeldCents     int64      `json:"held_cents"`
	ReleasedCents int64      `json:"released_cents"`
	RefundedCents int64      `json:"refunded_cents"`
	ReleasedAt    *time.Time `json:"released_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

// OrderProjection is the read model returned by Get and the list endpoints.
type OrderProjection struct {
	ID              uuid.UUID         `json:"id"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	ProviderID      uuid.UUID         `json:"provider_id"`
	Status          enums.OrderStatus `json:"status"`
	PercentComplete int               `json:"percent_complete"`

	EscrowAmountCents int64  `json:"escrow_amount_cents"`
	FinalPriceCents   int64  `json:"final_price_cents"`
	FinalPrice        string `json:"final_price"`

	ConsultationRequired bool `json:"consultation_required"`
	ConsultationWaived   bool `json:"consultation_waived"`
	PriceAdjustmentUsed  bool `json:"price_adjustment_used"`

	TrackingNumber  *string `json:"tracking_number,omitempty"`
	ShippingCarrier *string `json:"shipping_carrier,omitempty"`
	CancelReason    *string `json:"cancel_reason,omitempty"`

	OrderReceivedAt  *time.Time `json:"order_received_at,omitempty"`
	EscrowReleasedAt *time.Time `json:"escrow_released_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	ActiveConsultation *ConsultationView `json:"active_consultation,omitempty"`
	PendingAdjustment  *AdjustmentView   `json:"pending_adjustment,omitempty"`
	Escrow             *EscrowView       `json:"escrow,omitempty"`
}

// OrderStateChangedEvent is the outbox payload emitted on every transition.
type OrderStateChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ActorID    uuid.UUID         `json:"actor_id"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// OrderCreatedEvent is the outbox payload for new orders.
type OrderCreatedEvent struct {
	OrderID              uuid.UUID `json:"order_id"`
	CustomerID           uuid.UUID `json:"customer_id"`
	ProviderID           uuid.UUID `json:"provider_id"`
	EscrowAmountCents    int64     `json:"escrow_amount_cents"`
	ConsultationRequired bool      `json:"consultation_required"`
}

// ConsultationViewOf maps a consultation row to its API view.
func ConsultationViewOf(row *models.Consultation) *ConsultationView {
	if row == nil {
		return nil
	}
	return &ConsultationView{
		ID:          row.ID,
		Status:      row.Status,
		RequestedBy: row.RequestedBy,
		TimeoutAt:   row.TimeoutAt,
	}
}

// AdjustmentViewOf maps a price adjustment row to its API view.
func AdjustmentViewOf(row *models.PriceAdjustment) *AdjustmentView {
	if row == nil {
		return nil
	}
	return &AdjustmentView{
		ID:                 row.ID,
		Status:             row.Status,
		AdjustmentType:     row.AdjustmentType,
		OriginalPriceCents: row.OriginalPriceCents,
		AdjustedPriceCents: row.AdjustedPriceCents,
		ProposedBy:         row.ProposedBy,
		ResponseDeadline:   row.ResponseDeadline,
	}
}

func ProjectOrder(order *models.ProductionOrder) *OrderProjection {
	if order == nil {
		return nil
	}
	return &OrderProjection{
		ID:                   order.ID,
		CustomerID:           order.CustomerID,
		ProviderID:           order.ProviderID,
		Status:               order.Status,
		PercentComplete:      order.Status.PercentComplete(),
		EscrowAmountCents:    order.EscrowAmountCents,
		FinalPriceCents:      order.FinalPriceCents,
		FinalPrice:           types.FormatMajorUnits(order.FinalPriceCents),
		ConsultationRequired: order.ConsultationRequired,
		ConsultationWaived:   order.ConsultationWaived,
		PriceAdjustmentUsed:  order.PriceAdjustmentUsed,
		TrackingNumber:       order.TrackingNumber,
		ShippingCarrier:      order.ShippingCarrier,
		CancelReason:         order.CancelReason,
		OrderReceivedAt:      order.OrderReceivedAt,
		EscrowReleasedAt:     order.EscrowReleasedAt,
		CancelledAt:          order.CancelledAt,
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
	}
}
