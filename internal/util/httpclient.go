package util

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http/httpproxy"

	"github.com/ppiankov/geotag/internal/logging"
)

// ClientOptions configures an outbound API client
type ClientOptions struct {
	Timeout    time.Duration
	RetryMax   int
	HTTPProxy  string
	HTTPSProxy string
	// Backoff overrides the retry backoff. Tests use it to avoid real sleeps.
	Backoff retryablehttp.Backoff
}

// NewRetryableClient builds a retrying HTTP client that logs through logrus.
// Connection errors, 429 and 5xx responses are retried; other 4xx are final.
func NewRetryableClient(opts ClientOptions) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.HTTPClient.Timeout = opts.Timeout
	client.HTTPClient.Transport = &http.Transport{
		Proxy:               ProxyFunc(opts.HTTPProxy, opts.HTTPSProxy),
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}
	client.Logger = logging.NewLeveledLogrus(logging.GetLogger())
	client.CheckRetry = TransientRetryPolicy
	client.Backoff = retryablehttp.DefaultBackoff
	if opts.Backoff != nil {
		client.Backoff = opts.Backoff
	}
	// Hand the last response back instead of a "giving up" error so callers
	// can inspect the status themselves.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return client
}

// ProxyFunc picks the proxy for a request. Explicit URLs override the
// HTTP_PROXY and HTTPS_PROXY environment variables; NO_PROXY still applies.
func ProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	if httpProxy != "" {
		cfg.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTPSProxy = httpsProxy
	}

	proxy := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}

// TransientRetryPolicy retries connection failures, 429 and 5xx responses
func TransientRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	// do not retry on context.Canceled or context.DeadlineExceeded
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// NoBackoff retries immediately
func NoBackoff(_, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return 0
}
