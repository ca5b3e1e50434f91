package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"github.com/danieltrsl/odcover/internal/platform/errors"
	"github.com/danieltrsl/odcover/internal/platform/timeouts"
	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
	"github.com/danieltrsl/odcover/internal/services/insurance/storage"
)

// Loop drives periodic reconciliation: expiry sweeps, payment verification
// and retention, committed atomically per tick.
type Loop struct {
	service *Service
	store   storage.Store
	now     func() time.Time
}

// NewLoop builds the reconciliation loop around one service instance.
func NewLoop(service *Service) *Loop {
	return &Loop{
		service: service,
		store:   service.store,
		now:     service.now,
	}
}

// Run ticks until the context is canceled. A failed tick logs, backs off
// and keeps going; the loop never dies on a transient error.
func (l *Loop) Run(ctx context.Context) error {
	for {
		interval, err := l.Tick(ctx)
		if err != nil {
			ReconciliationTickFailuresTotal.Inc()
			log.Printf("reconciliation tick failed: %v", err)
			interval = timeouts.TickBackoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Tick runs one reconciliation pass and returns the interval to sleep
// before the next one. Settings are read fresh every tick; a disabled
// engine sleeps without touching any order.
func (l *Loop) Tick(ctx context.Context) (time.Duration, error) {
	ReconciliationTicksTotal.Inc()

	settings, err := l.store.Settings(ctx)
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}
	if !settings.Enabled {
		return settings.TickInterval, nil
	}

	now := l.now()

	stale, err := l.store.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired orders: %w", err)
	}
	var expiredIDs []string
	for _, order := range stale {
		if _, changed := domain.Apply(order, domain.Event{Kind: domain.EventExpiryReached}, now); changed {
			expiredIDs = append(expiredIDs, order.ID)
		}
	}

	verified, err := l.service.verifyPending(ctx, now)
	if err != nil {
		// Missing or rejected credentials degrade to an evidence-free
		// tick; expiries and retention still commit.
		if stderrors.Is(err, errors.New(errors.CodeFeedCredentialInvalid, "")) {
			FeedDegradedTotal.Inc()
			log.Printf("payment verification skipped: %v", err)
			verified = nil
		} else {
			return 0, err
		}
	}

	result := storage.ReconciliationResult{
		ExpiredOrderIDs: expiredIDs,
		Verified:        verified,
	}
	if settings.RetentionEnabled {
		result.Retention = storage.RetentionSweep{
			Enabled: true,
			Cutoff:  now.Add(-settings.RetentionAge),
		}
	}
	if err := l.store.CommitReconciliation(ctx, result); err != nil {
		return 0, fmt.Errorf("commit reconciliation: %w", err)
	}
	OrdersExpiredTotal.Add(float64(len(expiredIDs)))
	OrdersVerifiedTotal.Add(float64(len(verified)))

	// Liveness is stamped outside the reconciliation transaction so an
	// empty tick still records progress.
	if err := l.store.TouchLastTick(ctx, now); err != nil {
		return 0, fmt.Errorf("touch last tick: %w", err)
	}
	return settings.TickInterval, nil
}
