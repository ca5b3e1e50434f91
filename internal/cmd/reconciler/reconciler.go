// Package reconciler parses reconciler command flags and launches the
// reconciler runtime.
package reconciler

import (
	"context"
	"flag"

	entrypoint "github.com/danieltrsl/odcover/internal/platform/cmd"
	insuranceapp "github.com/danieltrsl/odcover/internal/services/insurance/app"
)

// Config holds reconciler command configuration.
type Config struct {
	Port             int    `env:"ODCOVER_RECONCILER_PORT" envDefault:"8093"`
	MetricsPort      int    `env:"ODCOVER_RECONCILER_METRICS_PORT" envDefault:"9093"`
	DBPath           string `env:"ODCOVER_RECONCILER_DB_PATH" envDefault:"data/insurance.db"`
	FeedBaseURL      string `env:"ODCOVER_FEED_BASE_URL"`
	CanonicalAdminID string `env:"ODCOVER_CANONICAL_ADMIN_ID"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The reconciler health gRPC server port")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "The Prometheus metrics HTTP port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The insurance SQLite database path")
	fs.StringVar(&cfg.FeedBaseURL, "feed-base-url", cfg.FeedBaseURL, "The activity feed base URL")
	fs.StringVar(&cfg.CanonicalAdminID, "canonical-admin-id", cfg.CanonicalAdminID, "Preferred administrator for feed credentials")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the reconciler runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReconciler, func(ctx context.Context) error {
		return insuranceapp.Run(ctx, insuranceapp.RuntimeConfig{
			Port:             cfg.Port,
			MetricsPort:      cfg.MetricsPort,
			DBPath:           cfg.DBPath,
			FeedBaseURL:      cfg.FeedBaseURL,
			CanonicalAdminID: cfg.CanonicalAdminID,
		})
	})
}
