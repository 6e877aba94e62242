package movements

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/internal/products"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

// LineInput is one product and quantity in a movement.
type LineInput struct {
	Code     string `json:"code" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

// SubmitInput describes a stock movement to record.
type SubmitInput struct {
	SessionID *uuid.UUID
	Type      enums.MovementType
	Reference *string
	Notes     *string
	Lines     []LineInput
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	TxRunner txRunner
	Repo     *Repository
	Products *products.Repository
	Logger   *logger.Logger
}

// Service records stock movements and keeps inventory in step with them.
type Service struct {
	tx       txRunner
	repo     *Repository
	products *products.Repository
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "movement repository required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product repository required")
	}
	return &Service{
		tx:       params.TxRunner,
		repo:     params.Repo,
		products: params.Products,
		logg:     params.Logger,
	}, nil
}

// Submit validates the input and, in a single transaction, stores the
// movement and applies it to inventory. An exit that would take a product
// below zero on hand fails with STATE_CONFLICT and nothing is written.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*models.StockMovement, error) {
	lines, err := validate(input)
	if err != nil {
		return nil, err
	}

	codes := make([]string, len(lines))
	total := 0
	for i, line := range lines {
		codes[i] = line.Code
		total += line.Quantity
	}

	movement := &models.StockMovement{
		SessionID:  input.SessionID,
		Type:       input.Type,
		Reference:  trimmedPtr(input.Reference),
		Notes:      trimmedPtr(input.Notes),
		TotalUnits: total,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)

		rows, err := productRepo.FindByCodes(ctx, codes)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movement products")
		}
		byCode := make(map[string]models.Product, len(rows))
		for _, row := range rows {
			byCode[row.Code] = row
		}
		var missing []string
		for _, code := range codes {
			if _, ok := byCode[code]; !ok {
				missing = append(missing, code)
			}
		}
		if len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown product codes").
				WithDetails(map[string]any{"codes": missing})
		}

		movement.Lines = make([]models.StockMovementLine, 0, len(lines))
		for _, line := range lines {
			product := byCode[line.Code]
			item, err := productRepo.LockInventory(ctx, product.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory")
			}
			next := item.OnHandQty + input.Type.Sign()*line.Quantity
			if next < 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("insufficient stock for %q", line.Code)).
					WithDetails(map[string]any{
						"code":      line.Code,
						"on_hand":   item.OnHandQty,
						"requested": line.Quantity,
					})
			}
			if err := productRepo.SetOnHand(ctx, product.ID, next); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory")
			}
			movement.Lines = append(movement.Lines, models.StockMovementLine{
				ID:        uuid.New(),
				ProductID: product.ID,
				Code:      product.Code,
				Name:      product.Name,
				Quantity:  line.Quantity,
			})
		}

		if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create movement")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit movement")
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"movement_id":   movement.ID.String(),
			"movement_type": movement.Type.String(),
			"total_units":   movement.TotalUnits,
		})
		s.logg.Info(logCtx, "movement.submitted")
	}
	return movement, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.StockMovement, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id required")
	}
	movement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "movement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movement")
	}
	return movement, nil
}

// validate normalizes codes and rejects empty, non-positive or repeated lines.
// Lines are returned sorted by code so inventory rows are always locked in
// the same order.
func validate(input SubmitInput) ([]LineInput, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement type must be entry or exit")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement needs at least one line")
	}
	seen := make(map[string]struct{}, len(input.Lines))
	lines := make([]LineInput, 0, len(input.Lines))
	for _, line := range input.Lines {
		line.Code = strings.TrimSpace(line.Code)
		if line.Code == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line code is required")
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1").
				WithDetails(map[string]any{"code": line.Code})
		}
		if _, dup := seen[line.Code]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate line code").
				WithDetails(map[string]any{"code": line.Code})
		}
		seen[line.Code] = struct{}{}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Code < lines[j].Code })
	return lines, nil
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
