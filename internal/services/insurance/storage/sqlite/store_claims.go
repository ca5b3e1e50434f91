package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
	"github.com/danieltrsl/odcover/internal/services/insurance/storage"
)

const claimColumns = `id, user_id, class, reported_at, confirmed, confirmed_at,
       payout, payout_xanax, payout_edvds, payout_ecstasy, payout_details, notes`

func scanClaim(scan func(dest ...any) error) (domain.Claim, error) {
	var claim domain.Claim
	var class string
	var reportedAt int64
	var confirmed int
	var confirmedAt int64
	err := scan(
		&claim.ID,
		&claim.UserID,
		&class,
		&reportedAt,
		&confirmed,
		&confirmedAt,
		&claim.Payout,
		&claim.PayoutReward.Xanax,
		&claim.PayoutReward.EDVDs,
		&claim.PayoutReward.Ecstasy,
		&claim.PayoutDetails,
		&claim.Notes,
	)
	if err != nil {
		return domain.Claim{}, err
	}
	claim.Class = domain.CoverageClass(class)
	claim.ReportedAt = fromMillis(reportedAt)
	claim.Confirmed = confirmed != 0
	claim.ConfirmedAt = fromMillis(confirmedAt)
	return claim, nil
}

// CreateClaim inserts one unconfirmed claim.
func (s *Store) CreateClaim(ctx context.Context, claim domain.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(claim.ID) == "" {
		return fmt.Errorf("claim id is required")
	}
	if strings.TrimSpace(claim.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if !claim.Class.Valid() {
		return fmt.Errorf("coverage class %q is invalid", claim.Class)
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO claims (
  id, user_id, class, reported_at, confirmed, confirmed_at,
  payout, payout_xanax, payout_edvds, payout_ecstasy, payout_details, notes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		claim.ID,
		claim.UserID,
		string(claim.Class),
		toMillis(claim.ReportedAt),
		boolToInt(claim.Confirmed),
		toMillis(claim.ConfirmedAt),
		claim.Payout,
		claim.PayoutReward.Xanax,
		claim.PayoutReward.EDVDs,
		claim.PayoutReward.Ecstasy,
		claim.PayoutDetails,
		claim.Notes,
	)
	if err != nil {
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

// GetClaim returns one claim by ID.
func (s *Store) GetClaim(ctx context.Context, claimID string) (domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return domain.Claim{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Claim{}, err
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return domain.Claim{}, fmt.Errorf("claim id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+claimColumns+`
FROM claims
WHERE id = ?`, claimID)
	claim, err := scanClaim(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, storage.ErrNotFound
		}
		return domain.Claim{}, fmt.Errorf("get claim: %w", err)
	}
	return claim, nil
}

// LatestConfirmedClaim returns the owner's most recently confirmed claim of
// one coverage class.
func (s *Store) LatestConfirmedClaim(ctx context.Context, userID string, class domain.CoverageClass) (domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return domain.Claim{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Claim{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Claim{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+claimColumns+`
FROM claims
WHERE user_id = ? AND class = ? AND confirmed = 1
ORDER BY confirmed_at DESC
LIMIT 1`, userID, string(class))
	claim, err := scanClaim(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, storage.ErrNotFound
		}
		return domain.Claim{}, fmt.Errorf("get latest confirmed claim: %w", err)
	}
	return claim, nil
}

// ConfirmClaim confirms one claim: the payout is snapshotted from the
// owner's matching active order and the claim-confirmed lifecycle event is
// applied to that order, all in one transaction.
func (s *Store) ConfirmClaim(ctx context.Context, claimID, notes string, now time.Time) (domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return domain.Claim{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Claim{}, err
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return domain.Claim{}, fmt.Errorf("claim id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("begin claim confirmation: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
SELECT `+claimColumns+`
FROM claims
WHERE id = ?`, claimID)
	claim, err := scanClaim(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, rollbackWith(tx, storage.ErrNotFound)
		}
		return domain.Claim{}, rollbackWith(tx, fmt.Errorf("load claim: %w", err))
	}
	if claim.Confirmed {
		return domain.Claim{}, rollbackWith(tx, storage.ErrClaimAlreadyConfirmed)
	}

	row = tx.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = ? AND class = ? AND status = ?
ORDER BY activated_at DESC
LIMIT 1`, claim.UserID, string(claim.Class), string(domain.OrderActive))
	order, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, rollbackWith(tx, storage.ErrNoActiveOrder)
		}
		return domain.Claim{}, rollbackWith(tx, fmt.Errorf("load active order: %w", err))
	}

	confirmed, changed := domain.ConfirmClaim(claim, order, notes, now)
	if !changed {
		return domain.Claim{}, rollbackWith(tx, storage.ErrClaimAlreadyConfirmed)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE claims
SET confirmed = 1, confirmed_at = ?,
    payout = ?, payout_xanax = ?, payout_edvds = ?, payout_ecstasy = ?,
    payout_details = ?, notes = ?
WHERE id = ? AND confirmed = 0`,
		toMillis(confirmed.ConfirmedAt),
		confirmed.Payout,
		confirmed.PayoutReward.Xanax,
		confirmed.PayoutReward.EDVDs,
		confirmed.PayoutReward.Ecstasy,
		confirmed.PayoutDetails,
		confirmed.Notes,
		confirmed.ID); err != nil {
		return domain.Claim{}, rollbackWith(tx, fmt.Errorf("store claim confirmation: %w", err))
	}

	if updated, applied := domain.Apply(order, domain.Event{Kind: domain.EventClaimConfirmed}, now); applied {
		if _, err := tx.ExecContext(ctx, `
UPDATE orders SET status = ?
WHERE id = ? AND status = ?`,
			string(updated.Status), updated.ID, string(domain.OrderActive)); err != nil {
			return domain.Claim{}, rollbackWith(tx, fmt.Errorf("consume claimed order: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Claim{}, fmt.Errorf("commit claim confirmation: %w", err)
	}
	return confirmed, nil
}
