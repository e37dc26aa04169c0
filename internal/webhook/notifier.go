package webhook

import (
	"context"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

type Notifier interface {
	Notify(ctx context.Context, event domain.NotificationEvent) error
}

// HTTPNotifier POSTs each event as a url-encoded form carrying bucket and
// key to a fixed endpoint.
type HTTPNotifier struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	filter   domain.Filter
}

func NewHTTPNotifier(endpoint string, client *http.Client, timeout time.Duration, filter domain.Filter) (*HTTPNotifier, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, EndpointError{endpoint: endpoint, base: err}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, EndpointError{endpoint: endpoint, reason: "scheme must be http or https"}
	}

	if u.Host == "" {
		return nil, EndpointError{endpoint: endpoint, reason: "host is required"}
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	if client == nil {
		client = http.DefaultClient
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPNotifier{
		endpoint: endpoint,
		client:   client,
		timeout:  timeout,
		filter:   filter,
	}, nil
}

func (n *HTTPNotifier) Endpoint() string {
	return n.endpoint
}

// Notify sends one event. The request keeps the caller's context values
// but not its cancellation, and is bounded by the notifier timeout.
func (n *HTTPNotifier) Notify(ctx context.Context, event domain.NotificationEvent) error {
	if !n.filter.Matches(event) {
		logger.Debugf("Skipping %s for %s/%s, key does not match filter", event.Event, event.Bucket, event.Key)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	body := event.Form().Encode()
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(body))
	if err != nil {
		return RequestError{endpoint: n.endpoint, event: event, base: err}
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logger.Debugf("Sending %s for %s/%s to %s", event.Event, event.Bucket, event.Key, n.endpoint)

	response, err := n.client.Do(request)
	if err != nil {
		return RequestError{endpoint: n.endpoint, event: event, base: err}
	}
	defer response.Body.Close()

	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return StatusError{endpoint: n.endpoint, event: event, StatusCode: response.StatusCode}
	}

	return nil
}
