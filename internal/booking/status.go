package booking

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// validTransitions defines allowed booking status transitions.
// Key is current status, value is the list of allowed next statuses.
// Anything not listed here is rejected, including every transition out
// of a terminal status.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: {}, // Terminal
	StatusCancelled: {}, // Terminal
}

// IsValid returns true if the status is a known booking status.
func (s Status) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// IsTerminal returns true if no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo returns true if the transition to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, next := range allowed {
		if next == target {
			return true
		}
	}
	return false
}

// OrderStatus is the lifecycle state of a product order. Orders move
// strictly forward; cancellation is only possible before processing starts.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var validOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {}, // Terminal
	OrderCancelled:  {}, // Terminal
}

// IsValid returns true if the status is a known order status.
func (s OrderStatus) IsValid() bool {
	_, exists := validOrderTransitions[s]
	return exists
}

// IsTerminal returns true if no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransitionTo returns true if the transition to target is allowed.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	allowed, exists := validOrderTransitions[s]
	if !exists {
		return false
	}
	for _, next := range allowed {
		if next == target {
			return true
		}
	}
	return false
}

// PaymentStatus tracks whether a booking or order has been paid.
// No gateway integration: the flag is flipped by the fulfilling side.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// CanMarkPaid reports whether the payment flag may move to paid. Only a
// pending payment can be settled; paid and refunded are final.
func (s PaymentStatus) CanMarkPaid() bool {
	return s == PaymentPending
}

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)
