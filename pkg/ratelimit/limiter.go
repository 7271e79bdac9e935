package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/prometheus"

	"go.uber.org/zap"
)

// Config is one rate limit policy: at most MaxRequests per Window.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Default policies by request class. Authentication gets the tightest window
// (credential stuffing), exports the tightest non-auth one (expensive queries).
var (
	AuthPolicy   = Config{Window: 15 * time.Minute, MaxRequests: 5}
	ReadPolicy   = Config{Window: 1 * time.Minute, MaxRequests: 200}
	WritePolicy  = Config{Window: 1 * time.Minute, MaxRequests: 50}
	ExportPolicy = Config{Window: 5 * time.Minute, MaxRequests: 10}
)

// Result is the outcome of one limit check
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces per-identifier, per-endpoint request ceilings on top of a
// pluggable counter store. A failing store never blocks traffic: the limiter
// fails open and logs, availability wins over strict enforcement during an
// infrastructure hiccup.
type Limiter struct {
	store Store
	log   *zap.Logger
}

// NewLimiter creates a limiter over the given store
func NewLimiter(store Store, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{store: store, log: log}
}

// Check counts this request against the (identifier, endpoint) window and
// reports whether it is allowed.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint string, cfg Config) Result {
	key := fmt.Sprintf("ratelimit:%s:%s", identifier, endpoint)

	count, resetAt, err := l.store.Incr(ctx, key, cfg.Window)
	if err != nil {
		// Fail open: a broken counter backend must not take the app down
		prometheus.RateLimitStoreErrors.Inc()
		l.log.Warn("rate limit store failed, allowing request",
			zap.String("key", key),
			zap.Error(err))
		return Result{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests,
			ResetAt:   time.Now().Add(cfg.Window),
		}
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(cfg.MaxRequests),
		Limit:     cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
