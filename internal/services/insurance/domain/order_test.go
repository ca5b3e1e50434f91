package domain

import (
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func testID() (string, error) {
	return "order-test-id", nil
}

func TestApplyPaymentVerifiedActivatesPendingOrder(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	paymentTime := now.Add(-10 * time.Minute)
	order := Order{
		ID:       "order-1",
		UserID:   "user-1",
		Class:    CoverageXanax,
		Status:   OrderPending,
		Duration: 25,
		Deposit:  50,
	}

	updated, changed := Apply(order, Event{Kind: EventPaymentVerified, PaymentTime: paymentTime}, now)
	if !changed {
		t.Fatal("expected pending order to activate")
	}
	if updated.Status != OrderActive {
		t.Fatalf("status = %q, want %q", updated.Status, OrderActive)
	}
	if !updated.Verified {
		t.Fatal("expected verified flag set")
	}
	if !updated.VerifiedAt.Equal(paymentTime) {
		t.Fatalf("verified at = %v, want %v", updated.VerifiedAt, paymentTime)
	}
	if !updated.ActivatedAt.Equal(now) {
		t.Fatalf("activated at = %v, want %v", updated.ActivatedAt, now)
	}
	if want := now.Add(25 * time.Hour); !updated.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", updated.ExpiresAt, want)
	}
}

func TestApplyPaymentVerifiedUsesFixedWindowForEcstasy(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	order := Order{Class: CoverageEcstasy, Status: OrderPending, Duration: 3}

	updated, changed := Apply(order, Event{Kind: EventPaymentVerified, PaymentTime: now}, now)
	if !changed {
		t.Fatal("expected activation")
	}
	if want := now.Add(2 * time.Hour); !updated.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", updated.ExpiresAt, want)
	}
}

func TestApplyExpiryReached(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	tests := []struct {
		name    string
		order   Order
		changed bool
	}{
		{
			name:    "past expiry expires",
			order:   Order{Status: OrderActive, ExpiresAt: now.Add(-time.Minute)},
			changed: true,
		},
		{
			name:    "exact expiry expires",
			order:   Order{Status: OrderActive, ExpiresAt: now},
			changed: true,
		},
		{
			name:    "future expiry untouched",
			order:   Order{Status: OrderActive, ExpiresAt: now.Add(time.Minute)},
			changed: false,
		},
		{
			name:    "zero expiry untouched",
			order:   Order{Status: OrderActive},
			changed: false,
		},
		{
			name:    "pending untouched",
			order:   Order{Status: OrderPending, ExpiresAt: now.Add(-time.Minute)},
			changed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			updated, changed := Apply(tt.order, Event{Kind: EventExpiryReached}, now)
			if changed != tt.changed {
				t.Fatalf("changed = %v, want %v", changed, tt.changed)
			}
			if !changed && updated != tt.order {
				t.Fatalf("expected untouched order, got %+v", updated)
			}
			if changed && updated.Status != OrderExpired {
				t.Fatalf("status = %q, want %q", updated.Status, OrderExpired)
			}
		})
	}
}

func TestApplyDisallowedTransitionsAreNoOps(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	events := []Event{
		{Kind: EventPaymentVerified, PaymentTime: now},
		{Kind: EventExpiryReached},
		{Kind: EventAdminExpire},
		{Kind: EventClaimConfirmed},
	}
	terminal := []Order{
		{Status: OrderExpired, Class: CoverageEcstasy, ExpiresAt: now.Add(-time.Hour)},
		{Status: OrderCompleted, Class: CoverageXanax, ExpiresAt: now.Add(-time.Hour)},
	}
	for _, order := range terminal {
		for _, event := range events {
			updated, changed := Apply(order, event, now)
			if changed {
				t.Fatalf("event %d changed terminal order %+v", event.Kind, order)
			}
			if updated != order {
				t.Fatalf("event %d mutated terminal order: %+v", event.Kind, updated)
			}
		}
	}
}

func TestApplyIsIdempotentUnderRedelivery(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	order := Order{Class: CoverageXanax, Status: OrderPending, Duration: 12}

	first, changed := Apply(order, Event{Kind: EventPaymentVerified, PaymentTime: now}, now)
	if !changed {
		t.Fatal("expected first delivery to activate")
	}
	later := now.Add(30 * time.Minute)
	second, changed := Apply(first, Event{Kind: EventPaymentVerified, PaymentTime: later}, later)
	if changed {
		t.Fatal("expected re-delivery to be a no-op")
	}
	if second != first {
		t.Fatalf("re-delivery mutated order: %+v", second)
	}
}

func TestApplyAdminExpire(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	// Forced expiry ignores the deadline.
	active := Order{Status: OrderActive, ExpiresAt: now.Add(time.Hour)}
	updated, changed := Apply(active, Event{Kind: EventAdminExpire}, now)
	if !changed || updated.Status != OrderExpired {
		t.Fatalf("expected forced expiry, got changed=%v status=%q", changed, updated.Status)
	}

	pending := Order{Status: OrderPending}
	if _, changed := Apply(pending, Event{Kind: EventAdminExpire}, now); changed {
		t.Fatal("expected pending order to be untouched")
	}
}

func TestApplyClaimConfirmed(t *testing.T) {
	t.Parallel()

	now := fixedNow()

	extc := Order{Status: OrderActive, Class: CoverageEcstasy, ExpiresAt: now.Add(time.Hour)}
	updated, changed := Apply(extc, Event{Kind: EventClaimConfirmed}, now)
	if !changed || updated.Status != OrderExpired {
		t.Fatalf("expected EXTC order to expire on claim, got changed=%v status=%q", changed, updated.Status)
	}

	xan := Order{Status: OrderActive, Class: CoverageXanax, ExpiresAt: now.Add(time.Hour)}
	updated, changed = Apply(xan, Event{Kind: EventClaimConfirmed}, now)
	if changed {
		t.Fatal("expected XAN order to stay active on claim")
	}
	if updated.Status != OrderActive {
		t.Fatalf("status = %q, want %q", updated.Status, OrderActive)
	}
}

func TestNewPendingOrder(t *testing.T) {
	t.Parallel()

	pricing := PricingOption{
		Class:    CoverageXanax,
		Duration: 25,
		Cost:     50,
		Reward:   Reward{Xanax: 100},
		Active:   true,
	}
	order, err := NewPendingOrder("user-1", pricing, fixedNow, testID)
	if err != nil {
		t.Fatalf("new pending order: %v", err)
	}
	if order.Status != OrderPending {
		t.Fatalf("status = %q, want %q", order.Status, OrderPending)
	}
	if order.Deposit != 50 || order.Duration != 25 {
		t.Fatalf("deposit/duration = %d/%d, want 50/25", order.Deposit, order.Duration)
	}
	if order.Verified {
		t.Fatal("expected unverified order")
	}
	if !order.CreatedAt.Equal(fixedNow()) {
		t.Fatalf("created at = %v, want %v", order.CreatedAt, fixedNow())
	}
}

func TestNewOverrideOrderIsDirectlyActive(t *testing.T) {
	t.Parallel()

	pricing := PricingOption{
		Class:    CoverageEcstasy,
		Duration: 3,
		Cost:     10,
		Reward:   Reward{Xanax: 20, EDVDs: 5, Ecstasy: 8},
		Active:   true,
	}
	order, err := NewOverrideOrder("user-1", pricing, fixedNow, testID)
	if err != nil {
		t.Fatalf("new override order: %v", err)
	}
	if order.Status != OrderActive || !order.Verified {
		t.Fatalf("expected verified active order, got status=%q verified=%v", order.Status, order.Verified)
	}
	if want := fixedNow().Add(2 * time.Hour); !order.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", order.ExpiresAt, want)
	}
}
