package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/backoffice-backend/internal/invoices"
	"github.com/angelmondragon/backoffice-backend/internal/movements"
	productsvc "github.com/angelmondragon/backoffice-backend/internal/products"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

type stubProducts struct {
	withinDays int
}

func (s *stubProducts) LookupByCode(_ context.Context, code string) (types.ProductRecord, error) {
	if code != "7790001" {
		return types.ProductRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return types.ProductRecord{Code: code, DisplayName: "Yerba 1kg", Quantity: 1}, nil
}

func (s *stubProducts) ListExpiring(_ context.Context, withinDays int) ([]productsvc.ExpiringProduct, error) {
	s.withinDays = withinDays
	return []productsvc.ExpiringProduct{{
		Code:          "7790001",
		Name:          "Yerba 1kg",
		ExpiresAt:     time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC),
		DaysRemaining: 2,
		Status:        enums.ExpiryStatusExpiring,
		OnHandQty:     12,
	}, {
		Code:          "7790002",
		Name:          "Leche 1l",
		ExpiresAt:     time.Date(2026, 4, 29, 0, 0, 0, 0, time.UTC),
		DaysRemaining: -2,
		Status:        enums.ExpiryStatusExpired,
		OnHandQty:     3,
	}}, nil
}

func TestProductByCode(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/products/by-code/{code}", ProductByCode(&stubProducts{}, testLogger()))

	rec := do(t, r, http.MethodGet, "/products/by-code/7790001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var record types.ProductRecord
	decodeData(t, rec, &record)
	assert.Equal(t, "Yerba 1kg", record.DisplayName)

	rec = do(t, r, http.MethodGet, "/products/by-code/000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductsExpiring(t *testing.T) {
	svc := &stubProducts{}
	r := chi.NewRouter()
	r.Get("/products/expiring", ProductsExpiring(svc, testLogger()))

	rec := do(t, r, http.MethodGet, "/products/expiring?within_days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.withinDays)
	var items []productsvc.ExpiringProduct
	decodeData(t, rec, &items)
	require.Len(t, items, 2)
	assert.Equal(t, enums.ExpiryStatusExpiring, items[0].Status)

	rec = do(t, r, http.MethodGet, "/products/expiring?include_expired=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items = nil
	decodeData(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "7790001", items[0].Code)

	rec = do(t, r, http.MethodGet, "/products/expiring?include_expired=perhaps", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/products/expiring", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, svc.withinDays, "missing query falls back to the service default")

	rec = do(t, r, http.MethodGet, "/products/expiring?within_days=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubMovements struct {
	movement *models.StockMovement
}

func (s stubMovements) Get(_ context.Context, id uuid.UUID) (*models.StockMovement, error) {
	if s.movement == nil || s.movement.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "movement not found")
	}
	return s.movement, nil
}

func TestMovementDetail(t *testing.T) {
	movement := &models.StockMovement{
		ID:         uuid.New(),
		Type:       enums.MovementTypeExit,
		TotalUnits: 2,
		Lines:      []models.StockMovementLine{{Code: "111", Name: "Milk", Quantity: 2}},
	}
	r := chi.NewRouter()
	r.Get("/movements/{movementId}", MovementDetail(stubMovements{movement: movement}, testLogger()))

	rec := do(t, r, http.MethodGet, "/movements/"+movement.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dto movements.MovementDTO
	decodeData(t, rec, &dto)
	assert.Equal(t, enums.MovementTypeExit, dto.Type)
	require.Len(t, dto.Lines, 1)

	rec = do(t, r, http.MethodGet, "/movements/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, r, http.MethodGet, "/movements/xyz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubInvoices struct{}

func (stubInvoices) Balance(_ context.Context, id uuid.UUID) (*invoices.InvoiceBalance, error) {
	balance := invoices.Net(decimal.RequireFromString("100.00"), []decimal.Decimal{decimal.RequireFromString("30.50")})
	return &invoices.InvoiceBalance{InvoiceID: id, Number: "A-0001", Supplier: "Acme", Balance: balance}, nil
}

func TestInvoiceBalance(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/invoices/{invoiceId}/balance", InvoiceBalance(stubInvoices{}, testLogger()))

	rec := do(t, r, http.MethodGet, "/invoices/"+uuid.NewString()+"/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Number string `json:"number"`
		Net    string `json:"net"`
	}
	decodeData(t, rec, &body)
	assert.Equal(t, "A-0001", body.Number)
	assert.Equal(t, "69.5", body.Net)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	r := chi.NewRouter()
	r.Get("/live", HealthLive(cfg))
	r.Get("/ready", HealthReady(cfg, testLogger(), stubPinger{}, nil))
	r.Get("/degraded", HealthReady(cfg, testLogger(), stubPinger{}, stubPinger{err: errors.New("connection refused")}))

	rec := do(t, r, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Backoffice-Env"))

	rec = do(t, r, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ready struct {
		Checks map[string]string `json:"checks"`
	}
	decodeData(t, rec, &ready)
	assert.Equal(t, "ok", ready.Checks["database"])
	assert.Equal(t, "disabled", ready.Checks["redis"])

	rec = do(t, r, http.MethodGet, "/degraded", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}
