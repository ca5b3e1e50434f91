// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values prevents drift between call sites and makes the
// durations discoverable.
package timeouts

import "time"

// FeedRequest caps the wait time for a single evidence feed HTTP request.
const FeedRequest = 10 * time.Second

// TickBackoff is the fixed delay applied after a failed reconciliation tick
// before the loop resumes.
const TickBackoff = 15 * time.Second

// Shutdown limits how long the metrics HTTP server waits for in-flight
// requests during graceful shutdown.
const Shutdown = 5 * time.Second
