package enums

import "testing"

func TestOrderStatusProgression(t *testing.T) {
	want := []OrderStatus{
		OrderStatusPendingConsultation,
		OrderStatusPendingOrderReceived,
		OrderStatusOrderReceived,
		OrderStatusInProduction,
		OrderStatusPendingApproval,
		OrderStatusReadyForDelivery,
		OrderStatusShipped,
		OrderStatusCompleted,
	}
	current := want[0]
	for i := 1; i < len(want); i++ {
		next, ok := current.Next()
		if !ok {
			t.Fatalf("expected %s to have a next status", current)
		}
		if next != want[i] {
			t.Fatalf("after %s expected %s, got %s", current, want[i], next)
		}
		current = next
	}
	if _, ok := OrderStatusCompleted.Next(); ok {
		t.Fatalf("completed must not have a next status")
	}
	if _, ok := OrderStatusCancelled.Next(); ok {
		t.Fatalf("cancelled must not have a next status")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if !OrderStatusCompleted.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatalf("completed and cancelled are terminal")
	}
	for _, s := range orderStatusProgression[:len(orderStatusProgression)-1] {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestOrderStatusPercent(t *testing.T) {
	checks := map[OrderStatus]int{
		OrderStatusPendingConsultation: 10,
		OrderStatusShipped:             90,
		OrderStatusCompleted:           100,
		OrderStatusCancelled:           0,
	}
	for status, pct := range checks {
		if got := status.PercentComplete(); got != pct {
			t.Fatalf("%s percent: want %d got %d", status, pct, got)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("in_production")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != OrderStatusInProduction {
		t.Fatalf("unexpected status %s", status)
	}
	if _, err := ParseOrderStatus("made_up"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
