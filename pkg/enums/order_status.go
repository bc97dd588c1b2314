package enums

import "fmt"

// OrderStatus tracks the lifecycle of a production order.
type OrderStatus string

const (
	OrderStatusPendingConsultation  OrderStatus = "pending_consultation"
	OrderStatusPendingOrderReceived OrderStatus = "pending_order_received"
	OrderStatusOrderReceived        OrderStatus = "order_received"
	OrderStatusInProduction         OrderStatus = "in_production"
	OrderStatusPendingApproval      OrderStatus = "pending_approval"
	OrderStatusReadyForDelivery     OrderStatus = "ready_for_delivery"
	OrderStatusShipped              OrderStatus = "shipped"
	OrderStatusCompleted            OrderStatus = "completed"
	OrderStatusCancelled            OrderStatus = "cancelled"
)

// orderStatusProgression is the forward-only sequence; cancelled sits outside it.
var orderStatusProgression = []OrderStatus{
	OrderStatusPendingConsultation,
	OrderStatusPendingOrderReceived,
	OrderStatusOrderReceived,
	OrderStatusInProduction,
	OrderStatusPendingApproval,
	OrderStatusReadyForDelivery,
	OrderStatusShipped,
	OrderStatusCompleted,
}

var validOrderStatuses = append(append([]OrderStatus{}, orderStatusProgression...), OrderStatusCancelled)

// Display-only progress percentages; never used for control flow.
var orderStatusPercent = map[OrderStatus]int{
	OrderStatusPendingConsultation:  10,
	OrderStatusPendingOrderReceived: 20,
	OrderStatusOrderReceived:        40,
	OrderStatusInProduction:         60,
	OrderStatusPendingApproval:      70,
	OrderStatusReadyForDelivery:     85,
	OrderStatusShipped:              90,
	OrderStatusCompleted:            100,
	OrderStatusCancelled:            0,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// PercentComplete returns the display progress for the status.
func (s OrderStatus) PercentComplete() int {
	return orderStatusPercent[s]
}

// Next returns the following status in the progression. The second return is
// false when the status is terminal or outside the sequence.
func (s OrderStatus) Next() (OrderStatus, bool) {
	for i, candidate := range orderStatusProgression {
		if candidate == s && i+1 < len(orderStatusProgression) {
			return orderStatusProgression[i+1], true
		}
	}
	return "", false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
