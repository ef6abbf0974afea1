package booking

import "testing"

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"confirmed to completed", StatusConfirmed, StatusCompleted, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to pending", StatusConfirmed, StatusPending, false},
		{"completed to cancelled", StatusCompleted, StatusCancelled, false},
		{"completed to confirmed", StatusCompleted, StatusConfirmed, false},
		{"cancelled to pending", StatusCancelled, StatusPending, false},
		{"cancelled to confirmed", StatusCancelled, StatusConfirmed, false},
		{"unknown status", Status("rejected"), StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusPending, false},
		{StatusConfirmed, false},
		{StatusCompleted, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled} {
		if !s.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", s)
		}
	}
	if Status("shipped").IsValid() {
		t.Error(`IsValid("shipped") = true, want false (order-only status)`)
	}
}

func TestPaymentCanMarkPaid(t *testing.T) {
	tests := []struct {
		status   PaymentStatus
		expected bool
	}{
		{PaymentPending, true},
		{PaymentPaid, false},
		{PaymentRefunded, false},
		{PaymentStatus("chargeback"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.CanMarkPaid(); got != tt.expected {
				t.Errorf("CanMarkPaid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestOrderStatusForwardOnly(t *testing.T) {
	tests := []struct {
		name     string
		from     OrderStatus
		to       OrderStatus
		expected bool
	}{
		{"pending to processing", OrderPending, OrderProcessing, true},
		{"pending to cancelled", OrderPending, OrderCancelled, true},
		{"pending to shipped skips processing", OrderPending, OrderShipped, false},
		{"processing to shipped", OrderProcessing, OrderShipped, true},
		{"processing to cancelled", OrderProcessing, OrderCancelled, false},
		{"processing to pending", OrderProcessing, OrderPending, false},
		{"shipped to delivered", OrderShipped, OrderDelivered, true},
		{"shipped to cancelled", OrderShipped, OrderCancelled, false},
		{"delivered is terminal", OrderDelivered, OrderCancelled, false},
		{"cancelled is terminal", OrderCancelled, OrderPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.expected)
			}
		})
	}
}
