package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"filestore/internal/api/resolver"
	appserver "filestore/internal/app/server"
	"filestore/internal/config"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx context.Context, o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the resolver gRPC server",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := o.Config()
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := Logger(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := appserver.NewApp(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			log.Error(cerr, "close application")
		}
	}()

	grpcServer, health := appserver.SetupGRPCServer(
		resolver.NewServer(app.Resolver, app.Store, app.Relocator, log),
		appserver.NewLimiter(cfg.Settings.RateLimit, cfg.Settings.RateBurst),
		log,
	)
	lis, err := net.Listen("tcp", cfg.Settings.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on '%s'", cfg.Settings.GRPCAddr)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- errors.Wrap(grpcServer.Serve(lis), "serve gRPC")
	}()

	var metricsServer *http.Server
	if cfg.Settings.MetricsAddr != "" {
		metricsServer = appserver.SetupMetricsServer(cfg.Settings.MetricsAddr, reg)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- errors.Wrap(err, "serve metrics")
			}
		}()
	}
	go appserver.WatchStoreHealth(ctx, app.Registry, health, 15*time.Second, log)
	log.Info("serving", "grpc", lis.Addr().String(), "metrics", cfg.Settings.MetricsAddr, "store", cfg.Store.Type)

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	health.Shutdown()
	grpcServer.GracefulStop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	log.Info("stopped")
	return err
}
