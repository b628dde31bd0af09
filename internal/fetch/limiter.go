package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter rate limits requests per host. Limiters are created lazily
// the first time a host is seen.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHostLimiter allows rps requests per second to each host with the given
// burst. A non-positive rps disables limiting.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
// A nil HostLimiter never blocks.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil {
		return ctx.Err()
	}
	return l.limiter(host).Wait(ctx)
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = lim
	}
	return lim
}
