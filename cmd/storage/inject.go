//go:build wireinject
// +build wireinject

package main

import (
	"github.com/ATenderholt/rainbow-webhook/internal/http"
	"github.com/ATenderholt/rainbow-webhook/internal/settings"
	"github.com/google/wire"
)

var api = wire.NewSet(
	http.NewChiMux,
	http.NewS3Handler,
)

var storage = wire.NewSet(
	NewBackend,
	NewHTTPClient,
	NewBlobStore,
)

func InjectApp(cfg *settings.Config) (App, error) {
	wire.Build(
		NewApp,
		api,
		storage,
	)
	return App{}, nil
}
