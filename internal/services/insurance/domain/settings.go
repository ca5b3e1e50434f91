package domain

import "time"

// Settings is the process-wide reconciliation configuration. The loop reads
// it fresh at the start of every tick and never caches it across ticks.
type Settings struct {
	Enabled          bool
	TickInterval     time.Duration
	LastTick         time.Time
	RetentionEnabled bool
	// RetentionAge is how long terminal orders are kept once retention is on.
	RetentionAge time.Duration
}

const (
	// MinTickInterval is the floor for the reconciliation interval.
	MinTickInterval = time.Second
	// DefaultTickInterval is used when no interval is configured.
	DefaultTickInterval = 5 * time.Second
	// DefaultRetentionAge is the default terminal-order retention window.
	DefaultRetentionAge = 24 * time.Hour
)

// DefaultSettings returns the settings row created on first use.
func DefaultSettings() Settings {
	return Settings{
		Enabled:      false,
		TickInterval: DefaultTickInterval,
		RetentionAge: DefaultRetentionAge,
	}
}

// Normalize clamps settings values to usable ranges.
func (s Settings) Normalize() Settings {
	if s.TickInterval < MinTickInterval {
		s.TickInterval = DefaultTickInterval
	}
	if s.RetentionAge <= 0 {
		s.RetentionAge = DefaultRetentionAge
	}
	return s
}
