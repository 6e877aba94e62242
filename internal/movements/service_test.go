package movements

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/internal/products"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/db/dbtest"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	products *products.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	productRepo := products.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		TxRunner: db.NewWithConn(conn),
		Repo:     NewRepository(conn),
		Products: productRepo,
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, products: productRepo}
}

func (f fixture) seed(t *testing.T, code string, onHand int) *models.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), &models.Product{
		Code:      code,
		Name:      "Product " + code,
		IsActive:  true,
		Inventory: &models.InventoryItem{OnHandQty: onHand},
	})
	require.NoError(t, err)
	return p
}

func (f fixture) onHand(t *testing.T, code string) int {
	t.Helper()
	p, err := f.products.FindByCode(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, p.Inventory)
	return p.Inventory.OnHandQty
}

func TestSubmitEntryAddsInventory(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "111", 2)
	f.seed(t, "222", 0)
	sessionID := uuid.New()
	ref := "  PO-1001 "

	movement, err := f.svc.Submit(context.Background(), SubmitInput{
		SessionID: &sessionID,
		Type:      enums.MovementTypeEntry,
		Reference: &ref,
		Lines: []LineInput{
			{Code: "222", Quantity: 5},
			{Code: " 111 ", Quantity: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, movement.TotalUnits)
	require.NotNil(t, movement.Reference)
	assert.Equal(t, "PO-1001", *movement.Reference)
	assert.Equal(t, 5, f.onHand(t, "111"))
	assert.Equal(t, 5, f.onHand(t, "222"))

	loaded, err := f.svc.Get(context.Background(), movement.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, "111", loaded.Lines[0].Code)
	assert.Equal(t, 3, loaded.Lines[0].Quantity)
	assert.Equal(t, "Product 222", loaded.Lines[1].Name)
	require.NotNil(t, loaded.SessionID)
	assert.Equal(t, sessionID, *loaded.SessionID)
}

func TestSubmitExitBelowZeroRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "111", 10)
	f.seed(t, "222", 1)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		Type: enums.MovementTypeExit,
		Lines: []LineInput{
			{Code: "111", Quantity: 4},
			{Code: "222", Quantity: 2},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Contains(t, pkgerrors.As(err).Message(), `"222"`)

	assert.Equal(t, 10, f.onHand(t, "111"))
	assert.Equal(t, 1, f.onHand(t, "222"))

	var count int64
	require.NoError(t, f.conn.Model(&models.StockMovement{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitExitSubtracts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "111", 10)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		Type:  enums.MovementTypeExit,
		Lines: []LineInput{{Code: "111", Quantity: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.onHand(t, "111"))
}

func TestSubmitUnknownCode(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "111", 1)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		Type:  enums.MovementTypeEntry,
		Lines: []LineInput{{Code: "111", Quantity: 1}, {Code: "999", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Equal(t, map[string]any{"codes": []string{"999"}}, pkgerrors.As(err).Details())
	assert.Equal(t, 1, f.onHand(t, "111"))
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]SubmitInput{
		"bad type":      {Type: "transfer", Lines: []LineInput{{Code: "1", Quantity: 1}}},
		"no lines":      {Type: enums.MovementTypeEntry},
		"blank code":    {Type: enums.MovementTypeEntry, Lines: []LineInput{{Code: " ", Quantity: 1}}},
		"zero quantity": {Type: enums.MovementTypeEntry, Lines: []LineInput{{Code: "1", Quantity: 0}}},
		"duplicate":     {Type: enums.MovementTypeEntry, Lines: []LineInput{{Code: "1", Quantity: 1}, {Code: "1 ", Quantity: 2}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), input)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
		})
	}
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = f.svc.Get(context.Background(), uuid.Nil)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestNewMovementDTO(t *testing.T) {
	ref := "PO-7"
	sessionID := uuid.New()
	m := &models.StockMovement{
		ID:         uuid.New(),
		SessionID:  &sessionID,
		Type:       enums.MovementTypeEntry,
		Reference:  &ref,
		TotalUnits: 3,
		Lines: []models.StockMovementLine{
			{ProductID: uuid.New(), Code: "111", Name: "Milk", Quantity: 3},
		},
	}

	dto := NewMovementDTO(m)
	if dto.ID != m.ID || dto.TotalUnits != 3 || *dto.SessionID != sessionID {
		t.Fatalf("unexpected dto header: %+v", dto)
	}
	if len(dto.Lines) != 1 || dto.Lines[0].Code != "111" || dto.Lines[0].Quantity != 3 {
		t.Fatalf("unexpected dto lines: %+v", dto.Lines)
	}
	if empty := NewMovementDTO(nil); empty.ID != uuid.Nil {
		t.Fatalf("expected zero dto for nil movement")
	}
}
