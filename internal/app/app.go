// Package app assembles the runtime shared by the server and the ingest CLI:
// configuration, logging, tracing, the database and the ingestion service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/wa-inbox/internal/config"
	"github.com/tbourn/wa-inbox/internal/observability"
	"github.com/tbourn/wa-inbox/internal/repo"
	"github.com/tbourn/wa-inbox/internal/services"
	"github.com/tbourn/wa-inbox/internal/sysutil"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App is a bootstrapped runtime.
type App struct {
	Config config.Config
	DB     *gorm.DB
	Ingest *services.IngestService

	shutdownOTel func(context.Context) error
}

// Options tunes Bootstrap.
type Options struct {
	Component string
	LogOutput io.Writer // defaults to os.Stdout
}

// Bootstrap configures logging and tracing, opens and migrates the store,
// and builds the ingestion service from cfg.
func Bootstrap(ctx context.Context, cfg config.Config, opt Options) (*App, error) {
	out := opt.LogOutput
	if out == nil {
		out = os.Stdout
	}
	sysutil.ConfigureLogging(out, cfg.LogLevel, cfg.LogPretty, opt.Component)

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Build{Version: Version, Component: opt.Component})
	if err != nil {
		// Tracing is optional; keep serving without it.
		log.Warn().Err(err).Msg("otel setup failed; tracing disabled")
		shutdown = func(context.Context) error { return nil }
	}

	db, err := repo.Open(ctx, repo.Options{
		Driver:         cfg.DBDriver,
		Path:           cfg.DBPath,
		DSN:            cfg.DBDSN,
		ConnectTimeout: cfg.DBConnectTimeout,
		Tracing:        cfg.OTEL.Enabled,
	})
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("migrate: %w", err)
	}

	ing := services.NewIngestService(db)
	ing.DeliveryTTL = cfg.DeliveryTTL
	if cfg.ItemMaxTries > 0 {
		ing.ItemMaxTries = uint(cfg.ItemMaxTries)
	}
	if cfg.RetryMaxAttempts > 0 {
		ing.MaxAttempts = cfg.RetryMaxAttempts
	}

	log.Info().
		Str("driver", cfg.DBDriver).
		Str("version", Version).
		Msg("runtime ready")

	return &App{Config: cfg, DB: db, Ingest: ing, shutdownOTel: shutdown}, nil
}

// RetryOnce runs one deferred-delivery retry pass and purges expired ledger
// rows.
func (a *App) RetryOnce(ctx context.Context) (services.RetrySummary, error) {
	sum, err := a.Ingest.RetryDeferred(ctx, a.Config.RetryBatch)
	if err != nil {
		return sum, err
	}
	purged, err := repo.PurgeExpiredDeliveries(ctx, a.DB, time.Now().UTC())
	if err != nil {
		return sum, err
	}
	if sum.Scanned > 0 || purged > 0 {
		log.Info().
			Int("scanned", sum.Scanned).
			Int("resolved", sum.Resolved).
			Int("deferred", sum.Deferred).
			Int("abandoned", sum.Abandoned).
			Int64("purged", purged).
			Msg("retry pass")
	}
	return sum, nil
}

// RunRetryLoop calls RetryOnce every RetryInterval until ctx is cancelled.
// A non-positive interval disables the loop.
func (a *App) RunRetryLoop(ctx context.Context) {
	every := a.Config.RetryInterval
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.RetryOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("retry pass failed")
			}
		}
	}
}

// Close flushes traces and closes the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.shutdownOTel != nil {
		errs = append(errs, a.shutdownOTel(ctx))
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
