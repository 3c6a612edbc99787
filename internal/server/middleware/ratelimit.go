package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/ratelimit"
)

// RateLimit enforces one tier keyed by client IP against the injected
// counter store. The (limit+1)-th request inside a window is rejected with
// 429 and a retry_after equal to the remaining window time.
func RateLimit(store ratelimit.Store, tier ratelimit.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, remaining, err := store.Increment(tier, ratelimit.ClientIP(r))
			if err != nil {
				// A broken counter backend must not take the API down.
				next.ServeHTTP(w, r)
				return
			}
			if count > tier.Limit {
				writeRateLimited(w, remaining)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitFailures enforces a tier that only charges failed attempts:
// the quota is checked up front, but consumed only when the downstream
// handler answered with a 4xx/5xx. Successful logins never count against it.
func RateLimitFailures(store ratelimit.Store, tier ratelimit.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.ClientIP(r)
			count, remaining, err := store.Peek(tier, key)
			if err == nil && count >= tier.Limit {
				writeRateLimited(w, remaining)
				return
			}

			ww := NewStatusWriter(w)
			next.ServeHTTP(ww, r)

			if ww.Status() >= 400 {
				store.Increment(tier, key)
			}
		})
	}
}

// RateLimitAPIKey enforces the api-key tier via httprate's sliding window,
// keyed by the presented key value and falling back to the client IP for
// requests without one. Courier integrations get a high per-minute quota
// independent of the general tier.
func RateLimitAPIKey(tier ratelimit.Tier) func(http.Handler) http.Handler {
	return httprate.Limit(
		tier.Limit,
		tier.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if key := r.Header.Get(auth.HeaderCourierKey); key != "" {
				return key, nil
			}
			if key := r.Header.Get(auth.HeaderWarehouseKey); key != "" {
				return key, nil
			}
			if bearer := r.Header.Get(auth.HeaderAuthorization); bearer != "" {
				return bearer, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			retryAfter := tier.Window
			if v := w.Header().Get("Retry-After"); v != "" {
				if secs, err := strconv.Atoi(v); err == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			writeRateLimited(w, retryAfter)
		}),
	)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:       http.StatusTooManyRequests,
			Message:    "Rate limit exceeded",
			RetryAfter: secs,
		},
	})
}
