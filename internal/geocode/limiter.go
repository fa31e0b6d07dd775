package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces requests per host. One Limiter is shared by every run in the
// process so concurrent documents together stay within a host's usage policy.
type Limiter struct {
	limit rate.Limit
	burst int

	// host -> *rate.Limiter
	buckets sync.Map
}

// NewLimiter creates a limiter allowing requestsPerSecond with the given
// burst to each host. A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{limit: limit, burst: burst}
}

// Wait blocks until a request to rawURL's host may be sent or ctx is done
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("rate limit %q: %w", rawURL, err)
	}
	return l.forHost(u.Host).Wait(ctx)
}

// forHost returns the bucket for host, creating it on first use. Host names
// compare case-insensitively.
func (l *Limiter) forHost(host string) *rate.Limiter {
	key := strings.ToLower(host)
	if b, ok := l.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}
	b, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	return b.(*rate.Limiter)
}
