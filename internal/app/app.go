// Package app wires the serving application: config, logger, tracking
// store, predictor, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stayml/bookingcast/internal/artifact"
	"github.com/stayml/bookingcast/internal/config"
	"github.com/stayml/bookingcast/internal/handlers"
	"github.com/stayml/bookingcast/internal/platform/apperr"
	"github.com/stayml/bookingcast/internal/platform/logger"
	"github.com/stayml/bookingcast/internal/server"
	"github.com/stayml/bookingcast/internal/serving"
	"github.com/stayml/bookingcast/internal/tracking"
)

type App struct {
	Log       *logger.Logger
	Config    *config.Config
	Store     *tracking.Store
	Predictor *serving.Predictor

	server *http.Server
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := tracking.Open(cfg.Tracking.Driver, cfg.Tracking.DSN, log)
	if err != nil {
		return nil, err
	}

	predictor := serving.NewPredictor(log, artifact.Path(cfg.Artifacts.Dir))
	if err := predictor.Load(); err != nil {
		// The server still starts so /healthcheck and the registry work;
		// /predict returns 503 until an artifact exists.
		if apperr.KindOf(err) == apperr.KindIO {
			log.Warn("No model artifact loaded at startup", "error", err)
		} else {
			return nil, err
		}
	}

	router := server.NewRouter(server.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(predictor),
		PredictHandler: handlers.NewPredictHandler(log, predictor),
		ModelHandler:   handlers.NewModelHandler(log, store, predictor),
	})

	var handler http.Handler = router
	if cfg.HTTP.MaxRequestBytes > 0 {
		handler = http.MaxBytesHandler(handler, cfg.HTTP.MaxRequestBytes)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
	}

	return &App{
		Log:       log,
		Config:    cfg,
		Store:     store,
		Predictor: predictor,
		server:    srv,
	}, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.Log.Info("HTTP server starting", "addr", a.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
		a.Log.Info("HTTP server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
