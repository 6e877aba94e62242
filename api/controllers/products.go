package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/backoffice-backend/api/responses"
	"github.com/angelmondragon/backoffice-backend/api/validators"
	productsvc "github.com/angelmondragon/backoffice-backend/internal/products"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

// ProductService is the catalog surface used by the product routes.
type ProductService interface {
	LookupByCode(ctx context.Context, code string) (types.ProductRecord, error)
	ListExpiring(ctx context.Context, withinDays int) ([]productsvc.ExpiringProduct, error)
}

// ProductByCode resolves a scanned code to its product record.
func ProductByCode(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		code, err := codeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.LookupByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// ProductsExpiring lists active products expiring within ?within_days=N
// (default: the configured warning window). ?include_expired=false hides
// products already past their date.
func ProductsExpiring(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		within, err := validators.ParseQueryInt(r, "within_days", 0, 0, 3650)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		includeExpired, err := validators.ParseQueryBool(r, "include_expired", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListExpiring(r.Context(), within)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]productsvc.ExpiringProduct, 0, len(items))
		for _, item := range items {
			if !includeExpired && item.Status == enums.ExpiryStatusExpired {
				continue
			}
			out = append(out, item)
		}
		responses.WriteSuccess(w, out)
	}
}
