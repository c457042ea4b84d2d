package server

import (
	"context"
	"time"

	"filestore/internal/api/resolver"
	"filestore/internal/domain/ports"

	"github.com/go-logr/logr"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// CheckStoreHealth pings the store once and publishes the result.
// Stores without a HealthChecker are always reported as serving.
func CheckStoreHealth(ctx context.Context, reg ports.Registry, hs *health.Server, log logr.Logger) bool {
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if hc, ok := reg.(ports.HealthChecker); ok {
		if err := hc.Ping(ctx); err != nil {
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			log.Info("store is not healthy", "err", err.Error())
		}
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(resolver.ServiceName, st)
	return st == grpc_health_v1.HealthCheckResponse_SERVING
}

// WatchStoreHealth repeats CheckStoreHealth every interval until ctx is done
func WatchStoreHealth(ctx context.Context, reg ports.Registry, hs *health.Server, interval time.Duration, log logr.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			CheckStoreHealth(pingCtx, reg, hs, log)
			cancel()
		}
	}
}
