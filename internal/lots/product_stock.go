package lots

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/internal/ledger"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdjustProductStock corrects a product's total stock. A positive delta books
// a new adjustment-source lot; a negative delta consumes available lots
// oldest first. Everything runs in one transaction.
func (s *Service) AdjustProductStock(ctx context.Context, productID uuid.UUID, input AdjustProductStockInput) (*ProductStockAdjustment, error) {
	start := time.Now()
	result, err := s.adjustProductStock(ctx, productID, input)
	s.metrics.Observe("adjust_product_stock", start, err)
	return result, err
}

func (s *Service) adjustProductStock(ctx context.Context, productID uuid.UUID, input AdjustProductStockInput) (*ProductStockAdjustment, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	result := &ProductStockAdjustment{ProductID: productID, Delta: input.Delta}
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := s.products.WithTx(tx).FindByID(ctx, productID); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if input.Delta.IsPositive() {
			lot, err := s.increaseProductStock(ctx, tx, repo, productID, input)
			if err != nil {
				return err
			}
			result.Lots = []models.Lot{*lot}
		} else {
			lots, err := s.decreaseProductStock(ctx, tx, repo, productID, input)
			if err != nil {
				return err
			}
			result.Lots = lots
		}

		return s.applyDelta(ctx, tx, productID, input.Delta)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) increaseProductStock(
	ctx context.Context,
	tx *gorm.DB,
	repo *Repository,
	productID uuid.UUID,
	input AdjustProductStockInput,
) (*models.Lot, error) {
	reason := input.Reason
	lot, err := s.createLot(ctx, repo, createLotSpec{
		ProductID:  productID,
		Quantity:   input.Delta,
		SourceType: enums.LotSourceTypeAdjustment,
		ReceivedAt: time.Now().UTC(),
		Notes:      &reason,
		ActorID:    input.ActorID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.WithTx(tx).Record(ctx, ledger.RecordTransactionInput{
		LotID:          lot.ID,
		Type:           enums.LotTransactionTypeAdjust,
		Quantity:       input.Delta,
		QuantityBefore: decimal.Zero,
		QuantityAfter:  input.Delta,
		Notes:          &reason,
		CreatedBy:      input.ActorID,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record adjust transaction")
	}
	return lot, nil
}

func (s *Service) decreaseProductStock(
	ctx context.Context,
	tx *gorm.DB,
	repo *Repository,
	productID uuid.UUID,
	input AdjustProductStockInput,
) ([]models.Lot, error) {
	need := input.Delta.Neg()

	candidates, err := repo.ListConsumable(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available lots")
	}

	available := decimal.Zero
	for _, lot := range candidates {
		available = available.Add(lot.CurrentQuantity)
	}
	if available.LessThan(need) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientQuantity,
			"available lots do not cover the requested decrease").
			WithDetails(map[string]string{
				"available": available.String(),
				"requested": need.String(),
			})
	}

	reason := input.Reason
	ledgerTx := s.ledger.WithTx(tx)
	touched := make([]models.Lot, 0, len(candidates))
	for i := range candidates {
		if need.IsZero() {
			break
		}
		lot := candidates[i]

		take := decimal.Min(need, lot.CurrentQuantity)
		if take.IsZero() {
			continue
		}

		before := lot.CurrentQuantity
		readVersion := lot.LockVersion
		lot.CurrentQuantity = before.Sub(take)
		if lot.CurrentQuantity.IsZero() {
			lot.Status = enums.LotStatusDepleted
		}
		if err := s.versionedUpdate(ctx, repo, &lot, readVersion); err != nil {
			return nil, err
		}

		if _, err := ledgerTx.Record(ctx, ledger.RecordTransactionInput{
			LotID:          lot.ID,
			Type:           enums.LotTransactionTypeConsume,
			Quantity:       take.Neg(),
			QuantityBefore: before,
			QuantityAfter:  lot.CurrentQuantity,
			Notes:          &reason,
			CreatedBy:      input.ActorID,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record consume transaction")
		}

		touched = append(touched, lot)
		need = need.Sub(take)
	}

	return touched, nil
}

func (s *Service) applyDelta(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta decimal.Decimal) error {
	if err := s.sync.WithTx(tx).Apply(ctx, productID, delta); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
	}
	return nil
}
