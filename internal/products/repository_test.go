package products

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/db/dbtest"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
)

func mustCreateProduct(t *testing.T, repo *Repository, p models.Product) *models.Product {
	t.Helper()
	created, err := repo.Create(context.Background(), &p)
	require.NoError(t, err)
	return created
}

func timePtr(v time.Time) *time.Time { return &v }

func intPtr(v int) *int { return &v }

func TestRepositoryCreateAndFindByCode(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	created := mustCreateProduct(t, repo, models.Product{
		Code:        "7501031311309",
		Name:        "Leche entera 1L",
		MinQuantity: intPtr(6),
		IsActive:    true,
		Inventory:   &models.InventoryItem{OnHandQty: 12},
	})
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", created.ID.String())
	assert.Equal(t, 1, created.ScanQuantity)

	found, err := repo.FindByCode(ctx, " 7501031311309 ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	require.NotNil(t, found.Inventory)
	assert.Equal(t, 12, found.Inventory.OnHandQty)
	require.NotNil(t, found.MinQuantity)
	assert.Equal(t, 6, *found.MinQuantity)

	_, err = repo.FindByCode(ctx, "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryCreateDuplicateCode(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	mustCreateProduct(t, repo, models.Product{Code: "dup", Name: "One", IsActive: true})

	_, err := repo.Create(context.Background(), &models.Product{Code: "dup", Name: "Two", IsActive: true})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestRepositoryListExpiring(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	base := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	mustCreateProduct(t, repo, models.Product{Code: "late", Name: "Late", IsActive: true, ExpiresAt: timePtr(base.AddDate(0, 0, 40))})
	mustCreateProduct(t, repo, models.Product{Code: "soon", Name: "Soon", IsActive: true, ExpiresAt: timePtr(base.AddDate(0, 0, 3))})
	mustCreateProduct(t, repo, models.Product{Code: "gone", Name: "Gone", IsActive: true, ExpiresAt: timePtr(base.AddDate(0, 0, -2))})
	mustCreateProduct(t, repo, models.Product{Code: "off", Name: "Inactive", IsActive: false, ExpiresAt: timePtr(base.AddDate(0, 0, 1))})
	mustCreateProduct(t, repo, models.Product{Code: "none", Name: "No expiry", IsActive: true})

	rows, err := repo.ListExpiring(context.Background(), base.AddDate(0, 0, 30))
	require.NoError(t, err)
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.Code)
	}
	assert.Equal(t, []string{"gone", "soon"}, codes)
}

func TestRepositoryInventoryLockAndSet(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	p := mustCreateProduct(t, repo, models.Product{Code: "inv", Name: "Inv", IsActive: true})

	item, err := repo.LockInventory(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.OnHandQty)

	require.NoError(t, repo.SetOnHand(ctx, p.ID, 7))
	item, err = repo.LockInventory(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, item.OnHandQty)

	found, err := repo.FindByCodes(ctx, []string{"inv", "missing"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, p.ID, found[0].ID)
}
