package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mood/internal/db"
	"mood/internal/jobs"
	"mood/internal/metrics"
	"mood/internal/router"
	"mood/internal/services"
	"mood/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveRun(ctx)
		},
	}
}

func serveRun(ctx context.Context) error {
	logger, err := commonRun()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warnw("failed to flush traces", "error", err)
		}
	}()

	conn, err := db.Open(cfg.DB, logger)
	if err != nil {
		return err
	}
	defer db.Close(conn, logger)
	if err := db.Migrate(conn, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(reg)

	if cfg.Jobs.ArchiveInterval > 0 {
		scheduler := jobs.NewScheduler(logger)
		campaigns := services.NewCampaignService(conn, logger, m, cfg.PollURL)
		if err := scheduler.ArchiveEvery(cfg.Jobs.ArchiveInterval, campaigns); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if !cfg.IsDevEnvironment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.New(router.Deps{
		Config:   cfg,
		DB:       conn,
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("server starting", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
