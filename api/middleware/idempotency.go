package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/backoffice-backend/api/responses"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/backoffice-backend/pkg/redis"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	sessionCreateTTL  = 24 * time.Hour
	movementSubmitTTL = 7 * 24 * time.Hour
)

// replayRule marks a route whose successful responses are stored and replayed.
// keyRequired rejects requests that arrive without an Idempotency-Key.
type replayRule struct {
	method      string
	match       func(path string) bool
	ttl         time.Duration
	keyRequired bool
}

var replayRules = []replayRule{
	{
		method: http.MethodPost,
		match:  func(p string) bool { return p == "/api/v1/scan-sessions" },
		ttl:    sessionCreateTTL,
	},
	{
		method: http.MethodPost,
		match: func(p string) bool {
			return strings.HasPrefix(p, "/api/v1/scan-sessions/") && strings.HasSuffix(p, "/submit")
		},
		ttl:         movementSubmitTTL,
		keyRequired: true,
	},
}

// storedReply is the Redis payload for one idempotent request.
type storedReply struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	BodyHash    string `json:"body_hash"`
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on the routes in replayRules. Only 2xx responses are
// stored, so a refused submit can be retried with the same key once the
// cause is fixed. A nil store disables the middleware.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchReplayRule(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if clientKey == "" {
				if rule.keyRequired {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			bodyHash := digest(body)
			key := store.IdempotencyKey(replayScope(r), clientKey)

			prior, err := loadReply(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if prior != nil {
				if prior.BodyHash != bodyHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.writeTo(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status < 200 || status >= 300 {
				return
			}
			saveReply(ctx, store, logg, key, rule.ttl, storedReply{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				BodyHash:    bodyHash,
			})
		})
	}
}

func loadReply(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedReply, error) {
	raw, err := store.Get(ctx, key)
	if pkgredis.IsMiss(err) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var reply storedReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &reply, nil
}

// saveReply is best effort: the request already succeeded, so a Redis
// failure is logged and the response still goes out.
func saveReply(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string, ttl time.Duration, reply storedReply) {
	payload, err := json.Marshal(reply)
	if err == nil {
		_, err = store.SetNX(ctx, key, string(payload), ttl)
	}
	if err != nil && logg != nil {
		logg.Error(logg.WithField(ctx, "idempotency_key", key), "idempotency.store_failed", err)
	}
}

func (s *storedReply) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// replayScope keeps keys from different stations apart.
func replayScope(r *http.Request) string {
	station := StationIDFromContext(r.Context())
	if station == "" {
		station = "-"
	}
	return station + "|" + r.Method + "|" + strings.TrimSuffix(r.URL.Path, "/")
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// routePattern prefers the matched chi pattern. Middleware mounted on a
// subrouter only sees the "/*" mount pattern, so fall back to the raw path.
func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return strings.TrimSuffix(pattern, "/")
		}
	}
	return strings.TrimSuffix(r.URL.Path, "/")
}

func matchReplayRule(method, path string) (replayRule, bool) {
	if path == "" {
		return replayRule{}, false
	}
	for _, rule := range replayRules {
		if rule.method == method && rule.match(path) {
			return rule, true
		}
	}
	return replayRule{}, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
