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

const orderColumns = `id, user_id, class, status, duration, deposit,
       verified, verified_at,
       reward_xanax, reward_edvds, reward_ecstasy,
       auto_detected, created_at, activated_at, expires_at`

func scanOrder(scan func(dest ...any) error) (domain.Order, error) {
	var order domain.Order
	var class string
	var status string
	var verified int
	var verifiedAt int64
	var autoDetected int
	var createdAt int64
	var activatedAt int64
	var expiresAt int64
	err := scan(
		&order.ID,
		&order.UserID,
		&class,
		&status,
		&order.Duration,
		&order.Deposit,
		&verified,
		&verifiedAt,
		&order.Reward.Xanax,
		&order.Reward.EDVDs,
		&order.Reward.Ecstasy,
		&autoDetected,
		&createdAt,
		&activatedAt,
		&expiresAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Class = domain.CoverageClass(class)
	order.Status = domain.OrderStatus(status)
	order.Verified = verified != 0
	order.VerifiedAt = fromMillis(verifiedAt)
	order.AutoDetected = autoDetected != 0
	order.CreatedAt = fromMillis(createdAt)
	order.ActivatedAt = fromMillis(activatedAt)
	order.ExpiresAt = fromMillis(expiresAt)
	return order, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertOrderExec(ctx context.Context, db execer, order domain.Order) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO orders (
  id, user_id, class, status, duration, deposit,
  verified, verified_at,
  reward_xanax, reward_edvds, reward_ecstasy,
  auto_detected, created_at, activated_at, expires_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.UserID,
		string(order.Class),
		string(order.Status),
		order.Duration,
		order.Deposit,
		boolToInt(order.Verified),
		toMillis(order.VerifiedAt),
		order.Reward.Xanax,
		order.Reward.EDVDs,
		order.Reward.Ecstasy,
		boolToInt(order.AutoDetected),
		toMillis(order.CreatedAt),
		toMillis(order.ActivatedAt),
		toMillis(order.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// PlaceOrder inserts a pending order, replacing any prior pending order the
// owner holds for the same coverage class. Live coverage of that class
// rejects the placement.
func (s *Store) PlaceOrder(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("order id is required")
	}
	if strings.TrimSpace(order.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if !order.Class.Valid() {
		return fmt.Errorf("coverage class %q is invalid", order.Class)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order placement: %w", err)
	}

	var activeCount int
	row := tx.QueryRowContext(ctx, `
SELECT COUNT(*) FROM orders
WHERE user_id = ? AND class = ? AND status = ?`,
		order.UserID, string(order.Class), string(domain.OrderActive))
	if err := row.Scan(&activeCount); err != nil {
		return rollbackWith(tx, fmt.Errorf("check active coverage: %w", err))
	}
	if activeCount > 0 {
		return rollbackWith(tx, storage.ErrActiveOrderExists)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM orders
WHERE user_id = ? AND class = ? AND status = ?`,
		order.UserID, string(order.Class), string(domain.OrderPending)); err != nil {
		return rollbackWith(tx, fmt.Errorf("replace pending order: %w", err))
	}

	if err := insertOrderExec(ctx, tx, order); err != nil {
		return rollbackWith(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order placement: %w", err)
	}
	return nil
}

// OverrideActivate installs an administratively-activated order: live
// coverage of the class is marked completed, pending orders of the class are
// removed, and the fresh active order is inserted, all in one transaction.
func (s *Store) OverrideActivate(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("order id is required")
	}
	if order.Status != domain.OrderActive {
		return fmt.Errorf("override order must be active")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin override activation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE orders SET status = ?
WHERE user_id = ? AND class = ? AND status = ?`,
		string(domain.OrderCompleted),
		order.UserID, string(order.Class), string(domain.OrderActive)); err != nil {
		return rollbackWith(tx, fmt.Errorf("complete superseded coverage: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM orders
WHERE user_id = ? AND class = ? AND status = ?`,
		order.UserID, string(order.Class), string(domain.OrderPending)); err != nil {
		return rollbackWith(tx, fmt.Errorf("drop superseded pending orders: %w", err))
	}

	if err := insertOrderExec(ctx, tx, order); err != nil {
		return rollbackWith(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit override activation: %w", err)
	}
	return nil
}

// GetOrder returns one order by ID.
func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("order id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE id = ?`, orderID)
	order, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, storage.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ActiveOrder returns the owner's live order of one coverage class.
func (s *Store) ActiveOrder(ctx context.Context, userID string, class domain.CoverageClass) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Order{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = ? AND class = ? AND status = ?
ORDER BY activated_at DESC
LIMIT 1`, userID, string(class), string(domain.OrderActive))
	order, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, storage.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("get active order: %w", err)
	}
	return order, nil
}

// ListPendingUnverified returns pending unverified orders joined with owner
// names, oldest placement first.
func (s *Store) ListPendingUnverified(ctx context.Context) ([]storage.PendingVerification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT o.id, o.user_id, o.class, o.status, o.duration, o.deposit,
       o.verified, o.verified_at,
       o.reward_xanax, o.reward_edvds, o.reward_ecstasy,
       o.auto_detected, o.created_at, o.activated_at, o.expires_at,
       u.name
FROM orders o
JOIN users u ON u.id = o.user_id
WHERE o.status = ? AND o.verified = 0
ORDER BY o.created_at ASC, o.rowid ASC`, string(domain.OrderPending))
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var pending []storage.PendingVerification
	for rows.Next() {
		var item storage.PendingVerification
		item.Order, err = scanOrder(func(dest ...any) error {
			return rows.Scan(append(dest, &item.OwnerName)...)
		})
		if err != nil {
			return nil, fmt.Errorf("list pending orders: %w", err)
		}
		pending = append(pending, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	return pending, nil
}

// ListExpiredActive returns active orders whose deadline is at or before now.
func (s *Store) ListExpiredActive(ctx context.Context, now time.Time) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE status = ? AND expires_at > 0 AND expires_at <= ?
ORDER BY expires_at ASC`, string(domain.OrderActive), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	defer rows.Close()

	var expired []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list expired orders: %w", err)
		}
		expired = append(expired, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	return expired, nil
}

// DeletePendingOrder removes one pending order. Orders in any other status
// are left untouched and report ErrOrderNotPending.
func (s *Store) DeletePendingOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM orders
WHERE id = ? AND status = ?`, orderID, string(domain.OrderPending))
	if err != nil {
		return fmt.Errorf("delete pending order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pending order: %w", err)
	}
	if affected == 0 {
		var status string
		row := s.sqlDB.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID)
		if scanErr := row.Scan(&status); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("delete pending order: %w", scanErr)
		}
		return storage.ErrOrderNotPending
	}
	return nil
}

// CommitReconciliation persists one tick's expiries, verifications and
// retention sweep in a single transaction. Every transition is guarded on
// the source status so a crashed-and-replayed tick never double-applies.
func (s *Store) CommitReconciliation(ctx context.Context, result storage.ReconciliationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if result.Empty() {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconciliation commit: %w", err)
	}

	for _, orderID := range result.ExpiredOrderIDs {
		if _, err := tx.ExecContext(ctx, `
UPDATE orders SET status = ?
WHERE id = ? AND status = ?`,
			string(domain.OrderExpired), orderID, string(domain.OrderActive)); err != nil {
			return rollbackWith(tx, fmt.Errorf("expire order %s: %w", orderID, err))
		}
	}

	for _, order := range result.Verified {
		if _, err := tx.ExecContext(ctx, `
UPDATE orders
SET status = ?, verified = 1, verified_at = ?, activated_at = ?, expires_at = ?
WHERE id = ? AND status = ?`,
			string(domain.OrderActive),
			toMillis(order.VerifiedAt),
			toMillis(order.ActivatedAt),
			toMillis(order.ExpiresAt),
			order.ID,
			string(domain.OrderPending)); err != nil {
			return rollbackWith(tx, fmt.Errorf("activate order %s: %w", order.ID, err))
		}
	}

	if result.Retention.Enabled {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM orders
WHERE status IN (?, ?) AND created_at < ?`,
			string(domain.OrderExpired),
			string(domain.OrderCompleted),
			toMillis(result.Retention.Cutoff)); err != nil {
			return rollbackWith(tx, fmt.Errorf("sweep terminal orders: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconciliation: %w", err)
	}
	return nil
}

// TouchLastTick stamps loop liveness on the settings row.
func (s *Store) TouchLastTick(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.ensureSettingsRow(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
UPDATE reconciliation_settings SET last_tick = ? WHERE id = 1`, toMillis(now)); err != nil {
		return fmt.Errorf("touch last tick: %w", err)
	}
	return nil
}
