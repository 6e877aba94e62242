package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks the on-hand count per product.
type InventoryItem struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	OnHandQty int       `gorm:"column:on_hand_qty;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
