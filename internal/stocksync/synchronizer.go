package stocksync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Synchronizer is the only writer of products.current_stock. Lot operations
// report their net quantity change through Apply inside the same database
// transaction that mutates the lot.
type Synchronizer interface {
	WithTx(tx *gorm.DB) Synchronizer
	Apply(ctx context.Context, productID uuid.UUID, delta decimal.Decimal) error
	Recompute(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
	Reconcile(ctx context.Context, productID uuid.UUID) (*ReconcileResult, error)
	Verify(ctx context.Context, productIDs []uuid.UUID) error
}

// ReconcileResult reports a product's aggregate before and after a recompute.
type ReconcileResult struct {
	ProductID     uuid.UUID       `json:"product_id"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	Corrected     bool            `json:"corrected"`
}

type synchronizer struct {
	db *gorm.DB
}

// NewSynchronizer returns a stock synchronizer bound to the provided database.
func NewSynchronizer(db *gorm.DB) Synchronizer {
	return &synchronizer{db: db}
}

func (s *synchronizer) WithTx(tx *gorm.DB) Synchronizer {
	if tx == nil {
		return s
	}
	return &synchronizer{db: tx}
}

// Apply adds the signed delta to the product aggregate in a single atomic
// update. A zero delta is a no-op so split operations, which conserve
// quantity, never touch the aggregate.
func (s *synchronizer) Apply(ctx context.Context, productID uuid.UUID, delta decimal.Decimal) error {
	if productID == uuid.Nil {
		return fmt.Errorf("product id is required")
	}
	if delta.IsZero() {
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("current_stock", gorm.Expr("current_stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s not found", productID)
	}
	return nil
}

// Recompute derives the aggregate from the lots that still hold stock. Lots
// in a terminal status carry current_quantity zero, so summing non-terminal
// lots and summing everything agree; the filter documents the source of truth.
func (s *synchronizer) Recompute(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	if productID == uuid.Nil {
		return decimal.Zero, fmt.Errorf("product id is required")
	}

	var row struct {
		Total decimal.Decimal
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Lot{}).
		Select("COALESCE(SUM(current_quantity), 0) AS total").
		Where("product_id = ? AND status IN ?", productID,
			[]enums.LotStatus{enums.LotStatusAvailable, enums.LotStatusReserved}).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

// Reconcile recomputes the aggregate from lots and overwrites the stored
// value when it drifted.
func (s *synchronizer) Reconcile(ctx context.Context, productID uuid.UUID) (*ReconcileResult, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}

	derived, err := s.Recompute(ctx, productID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		ProductID:     productID,
		PreviousStock: product.CurrentStock,
		CurrentStock:  derived,
	}
	if product.CurrentStock.Equal(derived) {
		return result, nil
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("current_stock", derived).Error; err != nil {
		return nil, err
	}
	result.Corrected = true
	return result, nil
}

// Verify checks each product's stored aggregate against the lot-derived sum
// and aggregates every mismatch into one error.
func (s *synchronizer) Verify(ctx context.Context, productIDs []uuid.UUID) error {
	var errs error
	for _, id := range productIDs {
		var product models.Product
		if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", id, err))
			continue
		}
		derived, err := s.Recompute(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", id, err))
			continue
		}
		if !product.CurrentStock.Equal(derived) {
			errs = multierr.Append(errs, fmt.Errorf(
				"product %s: stored stock %s does not match lot-derived %s",
				id, product.CurrentStock, derived))
		}
	}
	return errs
}
