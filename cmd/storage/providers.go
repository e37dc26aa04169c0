package main

import (
	"fmt"
	"github.com/ATenderholt/rainbow-webhook/internal/blobstore"
	"github.com/ATenderholt/rainbow-webhook/internal/settings"
	"github.com/ATenderholt/rainbow-webhook/internal/webhook"
	"net/http"
)

// Backend is the undecorated store selected by -backend.
type Backend interface {
	blobstore.BlobStore
}

func NewBackend(cfg *settings.Config) (Backend, error) {
	switch cfg.Backend {
	case settings.MemoryBackend:
		logger.Info("Using in-memory blob store")
		return blobstore.NewMemoryBlobStore(), nil
	case settings.S3Backend:
		client, err := NewS3Client(cfg)
		if err != nil {
			return nil, fmt.Errorf("unable to create s3 client: %w", err)
		}

		logger.Infof("Using s3 blob store at %s", cfg.S3Endpoint)
		return blobstore.NewS3BlobStore(client, cfg.Region), nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
}

// NewBlobStore wraps the backend with webhook notifications when a webhook
// is configured.
func NewBlobStore(cfg *settings.Config, backend Backend, client *http.Client) (blobstore.BlobStore, error) {
	if !cfg.HasWebhook() {
		return backend, nil
	}

	notifier, err := webhook.NewHTTPNotifier(cfg.Webhook, client, cfg.WebhookTimeout, cfg.Filter)
	if err != nil {
		return nil, err
	}

	logger.Infof("Sending notifications to %s", notifier.Endpoint())

	store, err := webhook.NewBlobStore(backend, notifier, logger.Named("webhook"))
	if err != nil {
		return nil, err
	}

	return store, nil
}
