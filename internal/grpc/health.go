package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the portal.
const ServiceName = "semaphore.portal"

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

type Health struct {
	server *health.Server
	log    *zap.Logger
}

func NewHealth(logger *zap.Logger) *Health {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Health{server: health.NewServer(), log: logger}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return h
}

func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Watch runs probe on a ticker and flips the serving status on failure.
func (h *Health) Watch(ctx context.Context, probe Probe, interval, timeout time.Duration) {
	if probe == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.check(ctx, probe, timeout)
			}
		}
	}()
}

func (h *Health) check(ctx context.Context, probe Probe, timeout time.Duration) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := probe(probeCtx); err != nil {
		h.log.Warn("health probe failed", zap.Error(err))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks every service as not serving.
func (h *Health) Shutdown() {
	h.server.Shutdown()
}

func (h *Health) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}
