package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "production_order"
	AggregateConsultation    OutboxAggregateType = "consultation"
	AggregatePriceAdjustment OutboxAggregateType = "price_adjustment"
	AggregateEscrowHold      OutboxAggregateType = "escrow_hold"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateConsultation,
	AggregatePriceAdjustment,
	AggregateEscrowHold,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated             OutboxEventType = "order_created"
	EventOrderStateChanged        OutboxEventType = "order_state_changed"
	EventConsultationStateChanged OutboxEventType = "consultation_state_changed"
	EventAdjustmentProposed       OutboxEventType = "price_adjustment_proposed"
	EventAdjustmentResolved       OutboxEventType = "price_adjustment_resolved"
	EventEscrowReleased           OutboxEventType = "escrow_released"
	EventEscrowRefunded           OutboxEventType = "escrow_refunded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventConsultationStateChanged,
	EventAdjustmentProposed,
	EventAdjustmentResolved,
	EventEscrowReleased,
	EventEscrowRefunded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
