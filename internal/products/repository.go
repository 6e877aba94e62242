package products

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

// Repository wires together catalog and inventory persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByCode loads a product and its inventory row by scan code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Inventory").
		Where("code = ?", strings.TrimSpace(code)).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByCodes loads all products matching codes. Missing codes are simply
// absent from the result.
func (r *Repository) FindByCodes(ctx context.Context, codes []string) ([]models.Product, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListExpiring returns active products with an expiry date on or before
// until, soonest first.
func (r *Repository) ListExpiring(ctx context.Context, until time.Time) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Inventory").
		Where("is_active = ?", true).
		Where("expires_at IS NOT NULL AND expires_at <= ?", until).
		Order("expires_at ASC").
		Order("code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a product together with its inventory row.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product == nil {
		return nil, errors.New("product is required")
	}
	inventory := product.Inventory
	product.Inventory = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		if inventory == nil {
			inventory = &models.InventoryItem{}
		}
		inventory.ProductID = product.ID
		return tx.Create(inventory).Error
	})
	if err != nil {
		return nil, pkgerrors.FromDB(err, "create product")
	}
	product.Inventory = inventory
	return product, nil
}

// LockInventory reads the inventory row for productID, taking a row lock on
// databases that support it. A missing row reads as zero on hand.
func (r *Repository) LockInventory(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.InventoryItem{ProductID: productID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetOnHand writes the on-hand quantity, creating the row when missing.
func (r *Repository) SetOnHand(ctx context.Context, productID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ?", productID).
		Update("on_hand_qty", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&models.InventoryItem{ProductID: productID, OnHandQty: qty}).Error
}
