package main

import (
	"context"
	"errors"
	"github.com/ATenderholt/rainbow-webhook/internal/settings"
	"github.com/go-chi/chi/v5"
	"net/http"
	"time"
)

type App struct {
	cfg    *settings.Config
	server *http.Server
}

func NewApp(cfg *settings.Config, mux *chi.Mux) App {
	return App{
		cfg: cfg,
		server: &http.Server{
			Addr:              cfg.Address(),
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		},
	}
}

func (app App) Start() (err error) {
	logger.Infof("Listening on %s", app.server.Addr)
	if app.cfg.HasWebhook() {
		logger.Infof("Notifying %s after successful writes", app.cfg.Webhook)
	}

	go func() {
		err := app.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server stopped: %v", err)
		}
	}()

	return nil
}

func (app App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	return app.server.Shutdown(ctx)
}
