// Command server runs the WhatsApp webhook receiver and conversation API.
//
//	@title			wa-inbox API
//	@version		1.0
//	@description	WhatsApp Cloud API webhook ingestion and conversation reads.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/wa-inbox/internal/app"
	"github.com/tbourn/wa-inbox/internal/config"
	httpapi "github.com/tbourn/wa-inbox/internal/http"
	"github.com/tbourn/wa-inbox/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	ctx, stop := sysutil.SignalContext(context.Background())
	defer stop()

	a, err := app.Bootstrap(ctx, cfg, app.Options{Component: "server"})
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	httpapi.RegisterRoutes(r, a.DB, a.Ingest, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go a.RunRetryLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("close failed")
	}
}
