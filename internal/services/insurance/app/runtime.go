package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/danieltrsl/odcover/internal/platform/timeouts"
	"github.com/danieltrsl/odcover/internal/services/insurance/feed"
	insurancesqlite "github.com/danieltrsl/odcover/internal/services/insurance/storage/sqlite"
)

// RuntimeConfig controls reconciler startup and dependencies.
type RuntimeConfig struct {
	Port             int
	MetricsPort      int
	DBPath           string
	FeedBaseURL      string
	CanonicalAdminID string
}

const (
	defaultReconcilerPort = 8093
	defaultMetricsPort    = 9093
	defaultReconcilerDB   = "data/insurance.db"
)

// Run starts the reconciler runtime: storage, health server, metrics
// endpoint and the reconciliation loop. It blocks until the context is
// canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.FeedBaseURL) == "" {
		return fmt.Errorf("feed base url is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultReconcilerPort
	}
	if cfg.MetricsPort <= 0 {
		cfg.MetricsPort = defaultMetricsPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultReconcilerDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create insurance storage dir: %w", err)
		}
	}

	store, err := insurancesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open insurance sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close insurance sqlite store: %v", closeErr)
		}
	}()

	evidence := feed.NewClient(cfg.FeedBaseURL, nil)
	service := NewService(store, evidence, cfg.CanonicalAdminID)
	loop := NewLoop(service)
	RegisterMetrics()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on reconciler port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("reconciler.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		if serveMetricsErr := metricsServer.ListenAndServe(); serveMetricsErr != nil && serveMetricsErr != http.ErrServerClosed {
			log.Printf("metrics server: %v", serveMetricsErr)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Printf("shutdown metrics server: %v", shutdownErr)
		}
	}()

	log.Printf("reconciler server listening at %v", listener.Addr())
	return loop.Run(ctx)
}
