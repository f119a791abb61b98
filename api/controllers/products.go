package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lotkeeper/lotkeeper-backend/api/responses"
	"github.com/lotkeeper/lotkeeper-backend/api/validators"
	lotsvc "github.com/lotkeeper/lotkeeper-backend/internal/lots"
	productsvc "github.com/lotkeeper/lotkeeper-backend/internal/products"
	"github.com/lotkeeper/lotkeeper-backend/pkg/logger"
)

// CreateProduct registers a catalog entry with zero stock.
func CreateProduct(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productsvc.CreateProductInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// ListProducts returns the catalog ordered by internal code.
func ListProducts(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if code := validators.ParseQueryString(r, "internal_code"); code != nil {
			product, err := svc.GetByCode(r.Context(), *code)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, product)
			return
		}

		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

// GetProduct returns one product by id.
func GetProduct(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// GetProductStock returns the cached aggregate next to the lot-derived sum.
func GetProductStock(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetStock(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// ReconcileProductStock recomputes the aggregate from lots and repairs drift.
func ReconcileProductStock(svc *productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reconcile(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// AdjustProductStock applies a product-level correction through lots. Positive
// deltas create an adjustment lot; negative deltas consume oldest lots first.
func AdjustProductStock(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload lotsvc.AdjustProductStockInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AdjustProductStock(r.Context(), productID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func productIDFromPath(r *http.Request) (uuid.UUID, error) {
	return validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
}
