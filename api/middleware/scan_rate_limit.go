package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/backoffice-backend/api/responses"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

type fixedWindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ScanRateLimitPolicy bounds how many scans a single session may push per window.
type ScanRateLimitPolicy struct {
	window time.Duration
	limit  int
}

func NewScanRateLimitPolicy(window time.Duration, limit int) ScanRateLimitPolicy {
	return ScanRateLimitPolicy{window: window, limit: limit}
}

func (p ScanRateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

// ScanRateLimit throttles scan ingestion per session using a Redis fixed
// window. It is a no-op when no store is configured.
func ScanRateLimit(policy ScanRateLimitPolicy, store fixedWindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			subject := rateLimitSubject(r)

			allowed, count, err := store.FixedWindowAllow(ctx, "scan:"+subject, int64(policy.limit), policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"subject":        subject,
						"attempts":       count,
						"limit":          policy.limit,
						"window_seconds": policy.window.Seconds(),
					})
					logg.Warn(logCtx, "scan.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many scans, slow down"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitSubject keys the window on the session in the route, falling back
// to the client address.
func rateLimitSubject(r *http.Request) string {
	if id := strings.TrimSpace(chi.URLParam(r, "sessionId")); id != "" {
		return "session:" + id
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
