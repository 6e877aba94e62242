package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog entry addressable by its scan code.
type Product struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Code         string         `gorm:"column:code;not null;uniqueIndex"`
	Name         string         `gorm:"column:name;not null"`
	ScanQuantity int            `gorm:"column:scan_quantity;not null;default:1"`
	MinQuantity  *int           `gorm:"column:min_quantity"`
	ExpiresAt    *time.Time     `gorm:"column:expires_at"`
	IsActive     bool           `gorm:"column:is_active;not null"`
	Inventory    *InventoryItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ScanQuantity <= 0 {
		p.ScanQuantity = 1
	}
	return nil
}
