package echoweb

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// loginLimiter throttles login attempts per client IP, remembering the most recent clients only.
type loginLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
}

// newLoginLimiter allows perSecond attempts with bursts of burst; perSecond <= 0 disables it.
func newLoginLimiter(perSecond float64, burst, size int) (*loginLimiter, error) {
	if size <= 0 {
		size = 1024
	}
	clients, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating limiter cache")
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &loginLimiter{limit: limit, burst: burst, clients: clients}, nil
}

// allow consumes one attempt of ip. When refused it returns how long to wait.
func (l *loginLimiter) allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	lim, ok := l.clients.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(ip, lim)
	}
	l.mu.Unlock()

	r := lim.Reserve()
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}
