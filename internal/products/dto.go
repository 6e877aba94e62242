package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

// ExpiringProduct is a product in the expiry countdown.
type ExpiringProduct struct {
	ID            uuid.UUID          `json:"id"`
	Code          string             `json:"code"`
	Name          string             `json:"name"`
	ExpiresAt     time.Time          `json:"expires_at"`
	DaysRemaining int                `json:"days_remaining"`
	Status        enums.ExpiryStatus `json:"status"`
	OnHandQty     int                `json:"on_hand_qty"`
}

// recordFromModel maps a catalog row onto the lookup-by-code shape.
func recordFromModel(p *models.Product) types.ProductRecord {
	qty := p.ScanQuantity
	if qty <= 0 {
		qty = 1
	}
	return types.ProductRecord{
		Code:        p.Code,
		DisplayName: p.Name,
		Quantity:    qty,
		MinQuantity: p.MinQuantity,
	}
}

func onHand(p *models.Product) int {
	if p.Inventory == nil {
		return 0
	}
	return p.Inventory.OnHandQty
}
