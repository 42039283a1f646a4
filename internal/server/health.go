package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/reviews-extractor/internal/blob"
)

// HealthService is the gRPC service name reported alongside the overall ("") status.
const HealthService = "reviews.Extractor"

// Health reports serving status over the standard gRPC health protocol. The service is
// SERVING while the artifact directory is usable.
type Health struct {
	hs        *health.Server
	artifacts blob.LocalFS
	interval  time.Duration
	logger    *slog.Logger
}

// NewGRPCServer builds a gRPC server carrying only the health service.
func NewGRPCServer(artifacts blob.LocalFS, interval time.Duration, logger *slog.Logger) (*grpc.Server, *Health) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h := &Health{
		hs:        health.NewServer(),
		artifacts: artifacts,
		interval:  interval,
		logger:    logger,
	}
	g := grpc.NewServer()
	healthpb.RegisterHealthServer(g, h.hs)
	h.Check()
	return g, h
}

// Check probes dependencies once and publishes the result.
func (h *Health) Check() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := checkDir(h.artifacts.Root); err != nil {
		h.logger.Error("health.artifacts.failed", "dir", h.artifacts.Root, "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus("", status)
	h.hs.SetServingStatus(HealthService, status)
	return status
}

// Run re-checks on every interval until ctx ends, then marks everything NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			h.Check()
		}
	}
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
