package domain

import (
	"fmt"
	"time"

	"github.com/danieltrsl/odcover/internal/platform/id"
)

// OrderStatus is the durable lifecycle state of an order.
type OrderStatus string

const (
	// OrderPending awaits payment verification.
	OrderPending OrderStatus = "pending"
	// OrderActive is live coverage.
	OrderActive OrderStatus = "active"
	// OrderExpired is terminal: the coverage window closed or a claim
	// consumed the order.
	OrderExpired OrderStatus = "expired"
	// OrderCompleted is terminal: an administrative override superseded the
	// order.
	OrderCompleted OrderStatus = "completed"
)

// Reward is the payout shape attached to an order. The edvd and ecstasy
// components are zero for xanax coverage.
type Reward struct {
	Xanax   int
	EDVDs   int
	Ecstasy int
}

// Order is one insurance purchase moving through the lifecycle.
type Order struct {
	ID           string
	UserID       string
	Class        CoverageClass
	Status       OrderStatus
	Duration     int // hours for XAN, jumps for EXTC
	Deposit      int // xanax units owed as payment
	Verified     bool
	VerifiedAt   time.Time
	Reward       Reward
	AutoDetected bool
	CreatedAt    time.Time
	ActivatedAt  time.Time
	ExpiresAt    time.Time
}

// EventKind enumerates lifecycle events applied to a single order.
type EventKind int

const (
	// EventPaymentVerified records a matched feed payment.
	EventPaymentVerified EventKind = iota + 1
	// EventExpiryReached records a passed expiry deadline.
	EventExpiryReached
	// EventAdminExpire is an administrative forced expiry.
	EventAdminExpire
	// EventClaimConfirmed is emitted when a claim against the order is paid.
	EventClaimConfirmed
)

// Event is one lifecycle event with its payload.
type Event struct {
	Kind EventKind
	// PaymentTime carries the evidence timestamp for EventPaymentVerified.
	PaymentTime time.Time
}

// Apply runs the order state machine. It returns the updated order and
// whether anything changed; an event arriving in a disallowed source state
// leaves the order untouched, so re-delivery is always safe.
func Apply(order Order, event Event, now time.Time) (Order, bool) {
	now = now.UTC()
	switch event.Kind {
	case EventPaymentVerified:
		if order.Status != OrderPending {
			return order, false
		}
		order.Status = OrderActive
		order.Verified = true
		order.VerifiedAt = event.PaymentTime.UTC()
		order.ActivatedAt = now
		order.ExpiresAt = now.Add(order.Class.ActiveWindow(order.Duration))
		return order, true
	case EventExpiryReached:
		if order.Status != OrderActive || order.ExpiresAt.IsZero() || order.ExpiresAt.After(now) {
			return order, false
		}
		order.Status = OrderExpired
		return order, true
	case EventAdminExpire:
		if order.Status != OrderActive {
			return order, false
		}
		order.Status = OrderExpired
		return order, true
	case EventClaimConfirmed:
		// Only jump coverage is consumed by a claim; hour coverage stays
		// active for the rest of its window.
		if order.Status != OrderActive || order.Class != CoverageEcstasy {
			return order, false
		}
		order.Status = OrderExpired
		return order, true
	default:
		return order, false
	}
}

// NewPendingOrder builds a pending order from a priced placement request.
func NewPendingOrder(userID string, pricing PricingOption, now func() time.Time, idGenerator func() (string, error)) (Order, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	orderID, err := idGenerator()
	if err != nil {
		return Order{}, fmt.Errorf("generate order id: %w", err)
	}
	return Order{
		ID:        orderID,
		UserID:    userID,
		Class:     pricing.Class,
		Status:    OrderPending,
		Duration:  pricing.Duration,
		Deposit:   pricing.Cost,
		Reward:    pricing.Reward,
		CreatedAt: now().UTC(),
	}, nil
}

// NewOverrideOrder builds a directly-active order for an administrative
// activation, bypassing payment verification.
func NewOverrideOrder(userID string, pricing PricingOption, now func() time.Time, idGenerator func() (string, error)) (Order, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	orderID, err := idGenerator()
	if err != nil {
		return Order{}, fmt.Errorf("generate order id: %w", err)
	}
	createdAt := now().UTC()
	return Order{
		ID:          orderID,
		UserID:      userID,
		Class:       pricing.Class,
		Status:      OrderActive,
		Duration:    pricing.Duration,
		Deposit:     pricing.Cost,
		Verified:    true,
		VerifiedAt:  createdAt,
		Reward:      pricing.Reward,
		CreatedAt:   createdAt,
		ActivatedAt: createdAt,
		ExpiresAt:   createdAt.Add(pricing.Class.ActiveWindow(pricing.Duration)),
	}, nil
}
