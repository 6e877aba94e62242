package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/backoffice-backend/internal/invoices"
	"github.com/angelmondragon/backoffice-backend/internal/movements"
	"github.com/angelmondragon/backoffice-backend/internal/products"
	"github.com/angelmondragon/backoffice-backend/internal/sessions"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubProducts struct{}

func (stubProducts) LookupByCode(_ context.Context, code string) (types.ProductRecord, error) {
	return types.ProductRecord{Code: code, DisplayName: "Item " + code, Quantity: 1}, nil
}

func (stubProducts) ListExpiring(context.Context, int) ([]products.ExpiringProduct, error) {
	return nil, nil
}

type stubSubmitter struct{}

func (stubSubmitter) Submit(_ context.Context, input movements.SubmitInput) (*models.StockMovement, error) {
	return &models.StockMovement{ID: uuid.New(), Type: input.Type}, nil
}

type stubMovements struct{}

func (stubMovements) Get(context.Context, uuid.UUID) (*models.StockMovement, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "movement not found")
}

type stubInvoices struct{}

func (stubInvoices) Balance(context.Context, uuid.UUID) (*invoices.InvoiceBalance, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	scanMetrics := metrics.NewScanMetrics(reg)

	manager, err := sessions.NewManager(sessions.ManagerParams{
		Lookup:      stubProducts{},
		Movements:   stubSubmitter{},
		Scan:        config.ScanConfig{BufferSize: 8, DrainDelay: time.Millisecond, LookupTimeout: time.Second},
		Sessions:    config.SessionsConfig{IdleTTL: time.Minute},
		Logger:      logg,
		ScanMetrics: scanMetrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Shutdown() })

	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	return NewRouter(cfg, logg, stubPinger{}, nil, reg, stubProducts{}, manager, stubMovements{}, stubInvoices{})
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestRouterHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health/ready", "").Code)

	rec := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scan_sessions_active")
}

func TestRouterScanSessionFlow(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, http.MethodPost, "/api/v1/scan-sessions", `{"movement_type":"entry"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data sessions.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/api/v1/scan-sessions/" + created.Data.ID.String()

	rec = serve(h, http.MethodPost, base+"/scans", `{"code":"7790001"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	require.Eventually(t, func() bool {
		rec := serve(h, http.MethodGet, base+"/cart", "")
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), `"total_units":1`)
	}, 2*time.Second, 5*time.Millisecond)

	rec = serve(h, http.MethodPost, base+"/submit", `{}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, serve(h, http.MethodDelete, base, "").Code)
}

func TestRouterNotFoundPaths(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/api/v1/movements/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(h, http.MethodGet, "/api/v1/invoices/"+uuid.NewString()+"/balance", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(h, http.MethodGet, "/api/v1/products/by-code/abc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(h, http.MethodGet, "/api/v1/products/expiring", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}
