package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

type contextKey string

const (
	ctxStationID contextKey = "station_id"
	ctxRequestID contextKey = "request_id"

	stationIDHeader = "X-Station-Id"
)

// RequestIDFromContext returns the id assigned by RequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// StationIDFromContext returns the scanning station that issued the request.
func StationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxStationID).(string); ok {
		return v
	}
	return ""
}

func WithStationID(ctx context.Context, stationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxStationID, stationID)
}

// Station copies the X-Station-Id header into the request context and the
// request logger. Requests without the header are anonymous.
func Station(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			stationID := strings.TrimSpace(r.Header.Get(stationIDHeader))
			if stationID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithStationID(r.Context(), stationID)
			if logg != nil {
				ctx = logg.WithField(ctx, "station_id", stationID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
