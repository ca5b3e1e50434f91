package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
)

func (s *Store) ensureSettingsRow(ctx context.Context) error {
	defaults := domain.DefaultSettings()
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO reconciliation_settings (
  id, enabled, tick_interval_seconds, last_tick, retention_enabled, retention_hours
) VALUES (1, ?, ?, 0, ?, ?)
ON CONFLICT (id) DO NOTHING`,
		boolToInt(defaults.Enabled),
		int(defaults.TickInterval/time.Second),
		boolToInt(defaults.RetentionEnabled),
		int(defaults.RetentionAge/time.Hour),
	); err != nil {
		return fmt.Errorf("ensure settings row: %w", err)
	}
	return nil
}

// Settings returns the singleton reconciliation settings, creating the row
// with defaults on first use.
func (s *Store) Settings(ctx context.Context) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Settings{}, err
	}
	if err := s.ensureSettingsRow(ctx); err != nil {
		return domain.Settings{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT enabled, tick_interval_seconds, last_tick, retention_enabled, retention_hours
FROM reconciliation_settings
WHERE id = 1`)
	var enabled int
	var tickSeconds int
	var lastTick int64
	var retentionEnabled int
	var retentionHours int
	if err := row.Scan(&enabled, &tickSeconds, &lastTick, &retentionEnabled, &retentionHours); err != nil {
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	settings := domain.Settings{
		Enabled:          enabled != 0,
		TickInterval:     time.Duration(tickSeconds) * time.Second,
		LastTick:         fromMillis(lastTick),
		RetentionEnabled: retentionEnabled != 0,
		RetentionAge:     time.Duration(retentionHours) * time.Hour,
	}
	return settings.Normalize(), nil
}

// SaveSettings replaces the singleton settings row. LastTick is owned by
// TouchLastTick and is not written here.
func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	settings = settings.Normalize()
	if err := s.ensureSettingsRow(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
UPDATE reconciliation_settings
SET enabled = ?, tick_interval_seconds = ?, retention_enabled = ?, retention_hours = ?
WHERE id = 1`,
		boolToInt(settings.Enabled),
		int(settings.TickInterval/time.Second),
		boolToInt(settings.RetentionEnabled),
		int(settings.RetentionAge/time.Hour),
	); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
