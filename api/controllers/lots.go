package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lotkeeper/lotkeeper-backend/api/responses"
	"github.com/lotkeeper/lotkeeper-backend/api/validators"
	lotsvc "github.com/lotkeeper/lotkeeper-backend/internal/lots"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
	"github.com/lotkeeper/lotkeeper-backend/pkg/logger"
	"github.com/lotkeeper/lotkeeper-backend/pkg/pagination"
	"github.com/lotkeeper/lotkeeper-backend/pkg/types"
)

// ReceiveLot registers a new lot from a purchase receipt or production run.
func ReceiveLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload lotsvc.ReceiveLotInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lot, err := svc.Receive(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, lot)
	}
}

// ListLots returns a filtered, paginated lot listing.
func ListLots(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := lotListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Page: page, Limit: limit}
		rows, total, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WritePaged(w, rows, types.PageMeta{
			Page:       pagination.NormalizePage(page),
			Limit:      pagination.NormalizeLimit(limit),
			Total:      total,
			TotalPages: pagination.TotalPages(total, limit),
		})
	}
}

func lotListFilters(r *http.Request) (lotsvc.ListFilters, error) {
	var filters lotsvc.ListFilters

	productID, err := validators.ParseQueryUUID(r, "product_id")
	if err != nil {
		return filters, err
	}
	filters.ProductID = productID

	supplierID, err := validators.ParseQueryUUID(r, "supplier_company_id")
	if err != nil {
		return filters, err
	}
	filters.SupplierCompanyID = supplierID

	if raw := validators.ParseQueryString(r, "status"); raw != nil {
		status, parseErr := enums.ParseLotStatus(*raw)
		if parseErr != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter")
		}
		filters.Status = &status
	}

	if raw := validators.ParseQueryString(r, "source_type"); raw != nil {
		sourceType, parseErr := enums.ParseLotSourceType(*raw)
		if parseErr != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid source_type filter")
		}
		filters.SourceType = &sourceType
	}

	filters.Location = validators.ParseQueryString(r, "location")
	if raw := validators.ParseQueryString(r, "search"); raw != nil {
		filters.Search = strings.TrimSpace(*raw)
	}
	return filters, nil
}

// GetLot returns one lot with its product preloaded.
func GetLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lot, err := svc.Get(r.Context(), lotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lot)
	}
}

// UpdateLot patches descriptive fields and the available/reserved status.
func UpdateLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload lotsvc.UpdateLotInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lot, err := svc.Update(r.Context(), lotID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lot)
	}
}

// ScrapLot retires a lot and zeroes its quantity.
func ScrapLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lot, err := svc.Delete(r.Context(), lotID, actorFromQuery(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lot)
	}
}

// SplitLot divides a parent lot into two or more child lots.
func SplitLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload lotsvc.SplitLotInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Split(r.Context(), lotID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// LotSplitHistory returns the split lineage above and below one lot.
func LotSplitHistory(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.SplitHistory(r.Context(), lotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, history)
	}
}

// ConsumeLot draws quantity out of a lot.
func ConsumeLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload lotsvc.ConsumeLotInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lot, err := svc.Consume(r.Context(), lotID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lot)
	}
}

// ReserveLot soft-allocates a lot.
func ReserveLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationHandler(logg, svc.Reserve)
}

// UnreserveLot releases a reservation.
func UnreserveLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationHandler(logg, svc.Unreserve)
}

func reservationHandler(
	logg *logger.Logger,
	op func(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*models.Lot, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload lotsvc.ActorInput
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		lot, err := op(r.Context(), lotID, payload.ActorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lot)
	}
}

// AdjustLot applies a signed quantity correction to one lot.
func AdjustLot(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload lotsvc.AdjustLotInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lot, err := svc.Adjust(r.Context(), lotID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lot)
	}
}

// ListLotTransactions returns the lot's ledger in chronological order.
func ListLotTransactions(svc *lotsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, err := lotIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListTransactions(r.Context(), lotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

func lotIDFromPath(r *http.Request) (uuid.UUID, error) {
	return validators.ParsePathUUID(chi.URLParam(r, "lotId"), "lotId")
}

func actorFromQuery(r *http.Request) *uuid.UUID {
	raw := strings.TrimSpace(r.URL.Query().Get("actor_id"))
	if raw == "" {
		return nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &parsed
}
