package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
)

// StockMovement is a submitted entry or exit of goods.
type StockMovement struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SessionID  *uuid.UUID          `gorm:"column:session_id;type:uuid"`
	Type       enums.MovementType  `gorm:"column:type;not null"`
	Reference  *string             `gorm:"column:reference"`
	Notes      *string             `gorm:"column:notes"`
	TotalUnits int                 `gorm:"column:total_units;not null"`
	Lines      []StockMovementLine `gorm:"foreignKey:MovementID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type StockMovementLine struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	MovementID uuid.UUID `gorm:"column:movement_id;type:uuid;not null;index"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Code       string    `gorm:"column:code;not null"`
	Name       string    `gorm:"column:name;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
}

func (l *StockMovementLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
