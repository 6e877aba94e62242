package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/backoffice-backend/api/responses"
	"github.com/angelmondragon/backoffice-backend/api/validators"
	"github.com/angelmondragon/backoffice-backend/internal/cart"
	"github.com/angelmondragon/backoffice-backend/internal/movements"
	"github.com/angelmondragon/backoffice-backend/internal/sessions"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

// SessionService is the scan session surface used by the scan-session routes.
type SessionService interface {
	Create(ctx context.Context, movementType enums.MovementType) (*sessions.Session, error)
	Get(id uuid.UUID) (*sessions.Session, error)
	Close(id uuid.UUID) error
	Submit(ctx context.Context, id uuid.UUID, input sessions.SubmitInput) (*models.StockMovement, error)
}

type createSessionRequest struct {
	MovementType string `json:"movement_type" validate:"required,movementtype"`
}

type scanRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

type replaceCartRequest struct {
	Lines []cartLineRequest `json:"lines" validate:"dive"`
}

type cartLineRequest struct {
	Code        string `json:"code" validate:"required,max=128,scancode"`
	Name        string `json:"name" validate:"max=255"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
	MinQuantity *int   `json:"min_quantity" validate:"omitempty,min=0"`
}

type submitRequest struct {
	Reference *string `json:"reference,omitempty" validate:"omitempty,max=128"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type cartResponse struct {
	MovementType enums.MovementType `json:"movement_type"`
	Lines        []cart.Line        `json:"lines"`
	TotalUnits   int                `json:"total_units"`
	BelowMinimum []cart.Line        `json:"below_minimum,omitempty"`
}

type scanAcceptedResponse struct {
	Code    string   `json:"code"`
	Pending []string `json:"pending"`
}

func ScanSessionCreate(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		var body createSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Create(r.Context(), enums.MovementType(body.MovementType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session.View())
	}
}

func ScanSessionDetail(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		responses.WriteSuccess(w, session.View())
	})
}

func ScanSessionClose(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		id, err := uuidParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Close(id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ScanSessionScan enqueues one scanned code. The lookup happens in the
// background, so the response is 202 and the result shows up in the cart or
// the notifications.
func ScanSessionScan(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		var body scanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := validators.SanitizeString(body.Code, 128)
		if err := session.Scan(code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, scanAcceptedResponse{
			Code:    code,
			Pending: session.QueueStats().Pending,
		})
	})
}

func ScanSessionCart(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		responses.WriteSuccess(w, cartView(session.Cart))
	})
}

// ScanSessionCartReplace swaps the whole cart for the posted lines.
func ScanSessionCartReplace(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		var body replaceCartRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines := make([]cart.Line, len(body.Lines))
		for i, line := range body.Lines {
			lines[i] = cart.Line{Code: line.Code, Name: line.Name, Quantity: line.Quantity, MinQuantity: line.MinQuantity}
		}
		if err := session.Cart.ReplaceAll(lines); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView(session.Cart))
	})
}

// ScanSessionCartUpdate overrides one line's quantity; zero removes the line.
func ScanSessionCartUpdate(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		code, err := codeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := session.Cart.SetQuantity(code, *body.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView(session.Cart))
	})
}

func ScanSessionCartRemove(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		code, err := codeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := session.Cart.Remove(code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView(session.Cart))
	})
}

// ScanSessionClear drops pending scans and empties the cart.
func ScanSessionClear(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		session.Clear()
		responses.WriteSuccess(w, session.View())
	})
}

// ScanSessionNotifications drains the session inbox, oldest first.
func ScanSessionNotifications(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
		responses.WriteSuccess(w, session.Inbox.Drain())
	})
}

// ScanSessionSubmit records the session cart as a stock movement. The body is
// optional.
func ScanSessionSubmit(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		id, err := uuidParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body submitRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		movement, err := svc.Submit(r.Context(), id, sessions.SubmitInput{
			Reference: body.Reference,
			Notes:     body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movements.NewMovementDTO(movement))
	}
}

func withSession(svc SessionService, logg *logger.Logger, fn func(http.ResponseWriter, *http.Request, *sessions.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		id, err := uuidParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Get(id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fn(w, r, session)
	}
}

func cartView(c *cart.Cart) cartResponse {
	return cartResponse{
		MovementType: c.MovementType(),
		Lines:        c.Lines(),
		TotalUnits:   c.TotalUnits(),
		BelowMinimum: c.BelowMinimum(),
	}
}
