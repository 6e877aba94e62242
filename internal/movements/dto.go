package movements

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
)

// MovementDTO is the API shape of a submitted stock movement.
type MovementDTO struct {
	ID         uuid.UUID          `json:"id"`
	SessionID  *uuid.UUID         `json:"session_id,omitempty"`
	Type       enums.MovementType `json:"type"`
	Reference  *string            `json:"reference,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
	TotalUnits int                `json:"total_units"`
	Lines      []LineDTO          `json:"lines"`
	CreatedAt  time.Time          `json:"created_at"`
}

type LineDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
}

func NewMovementDTO(m *models.StockMovement) MovementDTO {
	if m == nil {
		return MovementDTO{}
	}
	dto := MovementDTO{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Type:       m.Type,
		Reference:  m.Reference,
		Notes:      m.Notes,
		TotalUnits: m.TotalUnits,
		Lines:      make([]LineDTO, len(m.Lines)),
		CreatedAt:  m.CreatedAt,
	}
	for i, line := range m.Lines {
		dto.Lines[i] = LineDTO{
			ProductID: line.ProductID,
			Code:      line.Code,
			Name:      line.Name,
			Quantity:  line.Quantity,
		}
	}
	return dto
}
