package enums

import "fmt"

// TimelineEventType labels an entry in an order's append-only timeline.
type TimelineEventType string

const (
	TimelineOrderCreated          TimelineEventType = "order_created"
	TimelineStatusChanged         TimelineEventType = "status_changed"
	TimelineOrderCancelled        TimelineEventType = "order_cancelled"
	TimelineOrderShipped          TimelineEventType = "order_shipped"
	TimelineDeliveryConfirmed     TimelineEventType = "delivery_confirmed"
	TimelineConsultationRequested TimelineEventType = "consultation_requested"
	TimelineConsultationStarted   TimelineEventType = "consultation_started"
	TimelineConsultationCompleted TimelineEventType = "consultation_completed"
	TimelineConsultationWaived    TimelineEventType = "consultation_waived"
	TimelineConsultationExpired   TimelineEventType = "consultation_expired"
	TimelineAdjustmentProposed    TimelineEventType = "adjustment_proposed"
	TimelineAdjustmentApproved    TimelineEventType = "adjustment_approved"
	TimelineAdjustmentRejected    TimelineEventType = "adjustment_rejected"
	TimelineAdjustmentExpired     TimelineEventType = "adjustment_expired"
	TimelineEscrowHeld            TimelineEventType = "escrow_held"
	TimelineEscrowToppedUp        TimelineEventType = "escrow_topped_up"
	TimelineEscrowReleased        TimelineEventType = "escrow_released"
	TimelineEscrowRefunded        TimelineEventType = "escrow_refunded"
)

var validTimelineEventTypes = []TimelineEventType{
	TimelineOrderCreated,
	TimelineStatusChanged,
	TimelineOrderCancelled,
	TimelineOrderShipped,
	TimelineDeliveryConfirmed,
	TimelineConsultationRequested,
	TimelineConsultationStarted,
	TimelineConsultationCompleted,
	TimelineConsultationWaived,
	TimelineConsultationExpired,
	TimelineAdjustmentProposed,
	TimelineAdjustmentApproved,
	TimelineAdjustmentRejected,
	TimelineAdjustmentExpired,
	TimelineEscrowHeld,
	TimelineEscrowToppedUp,
	TimelineEscrowReleased,
	TimelineEscrowRefunded,
}

// IsValid reports whether the value is a known TimelineEventType.
func (t TimelineEventType) IsValid() bool {
	for _, candidate := range validTimelineEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTimelineEventType converts raw input into a TimelineEventType.
func ParseTimelineEventType(value string) (TimelineEventType, error) {
	for _, candidate := range validTimelineEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid timeline event type %q", value)
}
