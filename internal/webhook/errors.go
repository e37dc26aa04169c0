package webhook

import (
	"errors"
	"fmt"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
)

var ErrNilDelegate = errors.New("webhook: delegate BlobStore is required")
var ErrNilNotifier = errors.New("webhook: notifier is required")

type EndpointError struct {
	endpoint string
	reason   string
	base     error
}

func (e EndpointError) Error() string {
	if e.base != nil {
		return fmt.Sprintf("invalid webhook endpoint %q: %v", e.endpoint, e.base)
	}

	return fmt.Sprintf("invalid webhook endpoint %q: %s", e.endpoint, e.reason)
}

func (e EndpointError) Unwrap() error {
	return e.base
}

type RequestError struct {
	endpoint string
	event    domain.NotificationEvent
	base     error
}

func (e RequestError) Error() string {
	return fmt.Sprintf("unable to send %s for %s/%s to %s: %v", e.event.Event, e.event.Bucket, e.event.Key, e.endpoint, e.base)
}

func (e RequestError) Unwrap() error {
	return e.base
}

type StatusError struct {
	endpoint   string
	event      domain.NotificationEvent
	StatusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("webhook %s returned status %d for %s/%s", e.endpoint, e.StatusCode, e.event.Bucket, e.event.Key)
}
