package guard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/carelinkhq/carelink/pkg/httpx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

// Admission actions. Each action has its own counter family and budget.
const (
	ActionRegister = "register"
	ActionLogin    = "login"
)

// Default budgets: attempts per source IP per fixed window.
const (
	DefaultRegisterLimit = 5
	DefaultLoginLimit    = 10
	DefaultWindow        = time.Hour
)

// Counter is the slice of Store the admission guard needs; split out so
// tests can drive the guard without Redis.
type Counter interface {
	IncrementCounter(ctx context.Context, action, subject string, windowTTL time.Duration) (int64, time.Duration, error)
}

// AdmissionGuard throttles credential endpoints per source IP using
// shared fixed-window counters. It exists to slow credential stuffing
// and bulk account creation, which the in-process limiter cannot do
// once the service runs on more than one instance.
type AdmissionGuard struct {
	counter Counter

	registerLimit int64
	loginLimit    int64
	window        time.Duration

	// failClosed controls behavior when the counter store is down:
	// false (default) admits the request so an infra outage does not
	// lock every user out of login; true rejects with 503.
	failClosed bool
}

// AdmissionConfig configures the guard. Zero values fall back to the
// defaults above.
type AdmissionConfig struct {
	RegisterLimit int64
	LoginLimit    int64
	Window        time.Duration
	FailClosed    bool
}

func NewAdmissionGuard(counter Counter, cfg AdmissionConfig) *AdmissionGuard {
	if cfg.RegisterLimit <= 0 {
		cfg.RegisterLimit = DefaultRegisterLimit
	}
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = DefaultLoginLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &AdmissionGuard{
		counter:       counter,
		registerLimit: cfg.RegisterLimit,
		loginLimit:    cfg.LoginLimit,
		window:        cfg.Window,
		failClosed:    cfg.FailClosed,
	}
}

// CheckAndConsume counts one attempt for action from ip and reports
// whether it is admitted. The attempt is counted whether or not the
// subsequent login/registration succeeds; failed guesses must burn
// budget too.
//
// retryAfter is only meaningful when admitted is false.
func (g *AdmissionGuard) CheckAndConsume(
	ctx context.Context,
	action, ip string,
) (admitted bool, retryAfter time.Duration, err error) {
	limit := g.loginLimit
	if action == ActionRegister {
		limit = g.registerLimit
	}

	count, remaining, err := g.counter.IncrementCounter(ctx, action, ip, g.window)
	if err != nil {
		if g.failClosed {
			return false, 0, err
		}
		// Fail open: log upstream, admit here.
		return true, 0, err
	}

	if count > limit {
		return false, remaining, nil
	}
	return true, 0, nil
}

// Middleware wraps a credential endpoint with the admission check for
// the given action.
func (g *AdmissionGuard) Middleware(action string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			ip := httpx.IPKeyExtractor(r)
			admitted, retryAfter, err := g.CheckAndConsume(ctx, action, ip)
			if err != nil {
				if !admitted {
					log.Error("admission counter unavailable, failing closed", "action", action, "err", err)
					httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeStoreUnavailable,
						"rate limit state unavailable")
					return
				}
				log.Warn("admission counter unavailable, failing open", "action", action, "err", err)
			}

			if !admitted {
				retrySec := max(int(retryAfter.Seconds()), 1)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retrySec))
				log.Warn("admission limit exceeded", "action", action, "ip", ip, "retry_after", retrySec)
				httpx.WriteError(w, http.StatusTooManyRequests, httpx.CodeRateLimitExceeded,
					"Too many attempts. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
