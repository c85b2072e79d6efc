// @title Aggregation Engine API
// @version 1.0
// @description Tenant-scoped aggregation of dynamic record collections into chart-ready rows.
// @host localhost:8080
// @BasePath /api/v1
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-aggregation-engine/internal/aggregation"
	"go-aggregation-engine/internal/api"
	"go-aggregation-engine/internal/api/handler"
	"go-aggregation-engine/internal/config"
	"go-aggregation-engine/internal/logging"
	"go-aggregation-engine/internal/source"
	"go-aggregation-engine/internal/store"
	"go-aggregation-engine/pkg/router"
)

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := serve(cfg, logger); err != nil {
		level.Error(logger).Log("msg", "server stopped", "err", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db, err := store.Open(context.Background(), cfg.Store.Path, logger)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer db.Close()

	src := source.NewResilient(db, cfg.Source.Retry, cfg.Source.Breaker, logger, reg)
	engine := aggregation.New(src, aggregation.Options{
		MaxConcurrentFetches: cfg.Engine.MaxConcurrentFetches,
		KPISampleSize:        cfg.Engine.KPISampleSize,
		PartitionedWindows:   cfg.Engine.PartitionedWindows,
		QueryTimeout:         cfg.Engine.QueryTimeout,
	}, logger, reg).WithRecorder(db)

	h := handler.New(engine, src, db, handler.Options{
		RequireTenant: cfg.Server.TenantHeader,
		DefaultTenant: cfg.Server.DefaultTenant,
	}, logger)

	r := router.New(log.With(logger, "component", "http"), reg)
	api.RegisterRoutes(r, h, reg)
	srv := r.Server(cfg.Server.ListenAddress, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	var g run.Group
	g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		level.Info(logger).Log("msg", "server started", "addr", cfg.Server.ListenAddress)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			level.Warn(logger).Log("msg", "graceful shutdown failed", "err", err)
		}
	})

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		level.Info(logger).Log("msg", "shutting down", "signal", sigErr.Signal)
		return nil
	}
	return err
}
