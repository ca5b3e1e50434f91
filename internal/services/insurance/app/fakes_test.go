package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
	"github.com/danieltrsl/odcover/internal/services/insurance/feed"
	"github.com/danieltrsl/odcover/internal/services/insurance/storage"
)

// fakeStore is an in-memory storage.Store for service and loop tests.
type fakeStore struct {
	users   map[string]domain.User
	orders  map[string]domain.Order
	claims  map[string]domain.Claim
	pricing map[string]domain.PricingOption

	settings    domain.Settings
	settingsErr error
	lastTick    time.Time

	commits   []storage.ReconciliationResult
	commitErr error

	seq int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]domain.User),
		orders:   make(map[string]domain.Order),
		claims:   make(map[string]domain.Claim),
		pricing:  make(map[string]domain.PricingOption),
		settings: domain.DefaultSettings(),
	}
}

func (f *fakeStore) PutUser(_ context.Context, user domain.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, userID string) (domain.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) OperatorCredential(_ context.Context, canonicalUserID string) (string, error) {
	if user, ok := f.users[canonicalUserID]; ok && user.Role == domain.RoleAdmin && user.Credential != "" {
		return user.Credential, nil
	}
	var admins []domain.User
	for _, user := range f.users {
		if user.Role == domain.RoleAdmin && user.Credential != "" {
			admins = append(admins, user)
		}
	}
	if len(admins) == 0 {
		return "", storage.ErrNotFound
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins[0].Credential, nil
}

func (f *fakeStore) PlaceOrder(_ context.Context, order domain.Order) error {
	for _, existing := range f.orders {
		if existing.UserID == order.UserID && existing.Class == order.Class && existing.Status == domain.OrderActive {
			return storage.ErrActiveOrderExists
		}
	}
	for orderID, existing := range f.orders {
		if existing.UserID == order.UserID && existing.Class == order.Class && existing.Status == domain.OrderPending {
			delete(f.orders, orderID)
		}
	}
	f.seq++
	f.orders[order.ID] = order
	return nil
}

func (f *fakeStore) OverrideActivate(_ context.Context, order domain.Order) error {
	for orderID, existing := range f.orders {
		if existing.UserID != order.UserID || existing.Class != order.Class {
			continue
		}
		switch existing.Status {
		case domain.OrderActive:
			existing.Status = domain.OrderCompleted
			f.orders[orderID] = existing
		case domain.OrderPending:
			delete(f.orders, orderID)
		}
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, storage.ErrNotFound
	}
	return order, nil
}

func (f *fakeStore) ActiveOrder(_ context.Context, userID string, class domain.CoverageClass) (domain.Order, error) {
	for _, order := range f.orders {
		if order.UserID == userID && order.Class == class && order.Status == domain.OrderActive {
			return order, nil
		}
	}
	return domain.Order{}, storage.ErrNotFound
}

func (f *fakeStore) ListPendingUnverified(_ context.Context) ([]storage.PendingVerification, error) {
	var pending []storage.PendingVerification
	for _, order := range f.orders {
		if order.Status != domain.OrderPending || order.Verified {
			continue
		}
		pending = append(pending, storage.PendingVerification{
			Order:     order,
			OwnerName: f.users[order.UserID].Name,
		})
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Order.CreatedAt.Before(pending[j].Order.CreatedAt)
	})
	return pending, nil
}

func (f *fakeStore) ListExpiredActive(_ context.Context, now time.Time) ([]domain.Order, error) {
	var expired []domain.Order
	for _, order := range f.orders {
		if order.Status == domain.OrderActive && !order.ExpiresAt.IsZero() && !order.ExpiresAt.After(now) {
			expired = append(expired, order)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	return expired, nil
}

func (f *fakeStore) DeletePendingOrder(_ context.Context, orderID string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return storage.ErrNotFound
	}
	if order.Status != domain.OrderPending {
		return storage.ErrOrderNotPending
	}
	delete(f.orders, orderID)
	return nil
}

func (f *fakeStore) CommitReconciliation(_ context.Context, result storage.ReconciliationResult) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	if result.Empty() {
		return nil
	}
	f.commits = append(f.commits, result)
	for _, orderID := range result.ExpiredOrderIDs {
		if order, ok := f.orders[orderID]; ok && order.Status == domain.OrderActive {
			order.Status = domain.OrderExpired
			f.orders[orderID] = order
		}
	}
	for _, activated := range result.Verified {
		if order, ok := f.orders[activated.ID]; ok && order.Status == domain.OrderPending {
			f.orders[activated.ID] = activated
		}
	}
	if result.Retention.Enabled {
		for orderID, order := range f.orders {
			terminal := order.Status == domain.OrderExpired || order.Status == domain.OrderCompleted
			if terminal && order.CreatedAt.Before(result.Retention.Cutoff) {
				delete(f.orders, orderID)
			}
		}
	}
	return nil
}

func (f *fakeStore) TouchLastTick(_ context.Context, now time.Time) error {
	f.lastTick = now
	return nil
}

func (f *fakeStore) CreateClaim(_ context.Context, claim domain.Claim) error {
	f.claims[claim.ID] = claim
	return nil
}

func (f *fakeStore) GetClaim(_ context.Context, claimID string) (domain.Claim, error) {
	claim, ok := f.claims[claimID]
	if !ok {
		return domain.Claim{}, storage.ErrNotFound
	}
	return claim, nil
}

func (f *fakeStore) LatestConfirmedClaim(_ context.Context, userID string, class domain.CoverageClass) (domain.Claim, error) {
	var latest *domain.Claim
	for _, claim := range f.claims {
		claim := claim
		if claim.UserID != userID || claim.Class != class || !claim.Confirmed {
			continue
		}
		if latest == nil || claim.ConfirmedAt.After(latest.ConfirmedAt) {
			latest = &claim
		}
	}
	if latest == nil {
		return domain.Claim{}, storage.ErrNotFound
	}
	return *latest, nil
}

func (f *fakeStore) ConfirmClaim(ctx context.Context, claimID, notes string, now time.Time) (domain.Claim, error) {
	claim, ok := f.claims[claimID]
	if !ok {
		return domain.Claim{}, storage.ErrNotFound
	}
	if claim.Confirmed {
		return domain.Claim{}, storage.ErrClaimAlreadyConfirmed
	}
	order, err := f.ActiveOrder(ctx, claim.UserID, claim.Class)
	if err != nil {
		return domain.Claim{}, storage.ErrNoActiveOrder
	}
	confirmed, changed := domain.ConfirmClaim(claim, order, notes, now)
	if !changed {
		return domain.Claim{}, storage.ErrClaimAlreadyConfirmed
	}
	f.claims[claimID] = confirmed
	if updated, applied := domain.Apply(order, domain.Event{Kind: domain.EventClaimConfirmed}, now); applied {
		f.orders[updated.ID] = updated
	}
	return confirmed, nil
}

func (f *fakeStore) UpsertPricing(_ context.Context, option domain.PricingOption) error {
	if err := domain.ValidatePricing(option); err != nil {
		return err
	}
	for pricingID, existing := range f.pricing {
		if existing.Class == option.Class && existing.Duration == option.Duration {
			delete(f.pricing, pricingID)
		}
	}
	f.pricing[option.ID] = option
	return nil
}

func (f *fakeStore) DeletePricing(_ context.Context, pricingID string) error {
	if _, ok := f.pricing[pricingID]; !ok {
		return storage.ErrNotFound
	}
	delete(f.pricing, pricingID)
	return nil
}

func (f *fakeStore) ListPricing(_ context.Context, class domain.CoverageClass) ([]domain.PricingOption, error) {
	var options []domain.PricingOption
	for _, option := range f.pricing {
		if !option.Active {
			continue
		}
		if class != "" && option.Class != class {
			continue
		}
		options = append(options, option)
	}
	sort.Slice(options, func(i, j int) bool {
		if options[i].Class != options[j].Class {
			return options[i].Class < options[j].Class
		}
		return options[i].Duration < options[j].Duration
	})
	return options, nil
}

func (f *fakeStore) ActivePricing(_ context.Context, class domain.CoverageClass, duration int) (domain.PricingOption, error) {
	for _, option := range f.pricing {
		if option.Class == class && option.Duration == duration && option.Active {
			return option, nil
		}
	}
	return domain.PricingOption{}, storage.ErrNotFound
}

func (f *fakeStore) Settings(_ context.Context) (domain.Settings, error) {
	if f.settingsErr != nil {
		return domain.Settings{}, f.settingsErr
	}
	settings := f.settings
	settings.LastTick = f.lastTick
	return settings.Normalize(), nil
}

func (f *fakeStore) SaveSettings(_ context.Context, settings domain.Settings) error {
	f.settings = settings.Normalize()
	return nil
}

var _ storage.Store = (*fakeStore)(nil)

// fakeEvidence is a canned EvidenceSource.
type fakeEvidence struct {
	records      []feed.Record
	err          error
	lastLookback time.Duration
	calls        int
}

func (f *fakeEvidence) Events(_ context.Context, credential string, lookback time.Duration) ([]feed.Record, error) {
	f.calls++
	f.lastLookback = lookback
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
}

func sequentialIDs(prefix string) func() (string, error) {
	next := 0
	return func() (string, error) {
		next++
		return fmt.Sprintf("%s-%d", prefix, next), nil
	}
}
