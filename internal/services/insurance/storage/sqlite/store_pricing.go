package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
	"github.com/danieltrsl/odcover/internal/services/insurance/storage"
)

const pricingColumns = `id, class, duration, cost,
       reward_xanax, reward_edvds, reward_ecstasy, active`

func scanPricing(scan func(dest ...any) error) (domain.PricingOption, error) {
	var option domain.PricingOption
	var class string
	var active int
	err := scan(
		&option.ID,
		&class,
		&option.Duration,
		&option.Cost,
		&option.Reward.Xanax,
		&option.Reward.EDVDs,
		&option.Reward.Ecstasy,
		&active,
	)
	if err != nil {
		return domain.PricingOption{}, err
	}
	option.Class = domain.CoverageClass(class)
	option.Active = active != 0
	return option, nil
}

// UpsertPricing inserts or replaces one pricing option. The (class, duration)
// pair stays unique: an upsert on an existing pair replaces that row.
func (s *Store) UpsertPricing(ctx context.Context, option domain.PricingOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(option.ID) == "" {
		return fmt.Errorf("pricing id is required")
	}
	if err := domain.ValidatePricing(option); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO pricing_options (
  id, class, duration, cost, reward_xanax, reward_edvds, reward_ecstasy, active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (class, duration) DO UPDATE SET
  cost = excluded.cost,
  reward_xanax = excluded.reward_xanax,
  reward_edvds = excluded.reward_edvds,
  reward_ecstasy = excluded.reward_ecstasy,
  active = excluded.active`,
		option.ID,
		string(option.Class),
		option.Duration,
		option.Cost,
		option.Reward.Xanax,
		option.Reward.EDVDs,
		option.Reward.Ecstasy,
		boolToInt(option.Active),
	)
	if err != nil {
		return fmt.Errorf("upsert pricing option: %w", err)
	}
	return nil
}

// DeletePricing removes one pricing option by ID.
func (s *Store) DeletePricing(ctx context.Context, pricingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	pricingID = strings.TrimSpace(pricingID)
	if pricingID == "" {
		return fmt.Errorf("pricing id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM pricing_options WHERE id = ?`, pricingID)
	if err != nil {
		return fmt.Errorf("delete pricing option: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pricing option: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPricing returns the active options of one coverage class ordered by
// duration, or every class when class is empty.
func (s *Store) ListPricing(ctx context.Context, class domain.CoverageClass) ([]domain.PricingOption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	if class == "" {
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT `+pricingColumns+`
FROM pricing_options
WHERE active = 1
ORDER BY class ASC, duration ASC`)
	} else {
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT `+pricingColumns+`
FROM pricing_options
WHERE class = ? AND active = 1
ORDER BY duration ASC`, string(class))
	}
	if err != nil {
		return nil, fmt.Errorf("list pricing options: %w", err)
	}
	defer rows.Close()

	var options []domain.PricingOption
	for rows.Next() {
		option, err := scanPricing(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list pricing options: %w", err)
		}
		options = append(options, option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pricing options: %w", err)
	}
	return options, nil
}

// ActivePricing resolves the single active option for one (class, duration).
func (s *Store) ActivePricing(ctx context.Context, class domain.CoverageClass, duration int) (domain.PricingOption, error) {
	if err := ctx.Err(); err != nil {
		return domain.PricingOption{}, err
	}
	if err := s.ready(); err != nil {
		return domain.PricingOption{}, err
	}
	if !class.Valid() {
		return domain.PricingOption{}, fmt.Errorf("coverage class %q is invalid", class)
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+pricingColumns+`
FROM pricing_options
WHERE class = ? AND duration = ? AND active = 1`, string(class), duration)
	option, err := scanPricing(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PricingOption{}, storage.ErrNotFound
		}
		return domain.PricingOption{}, fmt.Errorf("get active pricing: %w", err)
	}
	return option, nil
}
