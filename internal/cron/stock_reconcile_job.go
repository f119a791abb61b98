package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	product "github.com/lotkeeper/lotkeeper-backend/internal/products"
	"github.com/lotkeeper/lotkeeper-backend/internal/stocksync"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db"
	"github.com/lotkeeper/lotkeeper-backend/pkg/logger"
)

// StockReconcileJob sweeps the catalog and repairs any product whose cached
// aggregate drifted from the sum over its non-terminal lots. Drift should
// never happen while all writes go through the synchronizer; this job exists
// to catch out-of-band mutations and to repair after incidents.
type StockReconcileJob struct {
	client   *db.Client
	products *product.Repository
	sync     stocksync.Synchronizer
	logg     *logger.Logger
}

// NewStockReconcileJob wires the reconcile sweep.
func NewStockReconcileJob(
	client *db.Client,
	products *product.Repository,
	sync stocksync.Synchronizer,
	logg *logger.Logger,
) (*StockReconcileJob, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if sync == nil {
		return nil, fmt.Errorf("stock synchronizer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &StockReconcileJob{client: client, products: products, sync: sync, logg: logg}, nil
}

func (j *StockReconcileJob) Name() string { return "stock_reconcile" }

// Run reconciles every product. One product failing does not stop the sweep;
// failures are collected and reported together.
func (j *StockReconcileJob) Run(ctx context.Context) error {
	rows, err := j.products.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	var errs error
	corrected := 0
	for _, row := range rows {
		productID := row.ID
		txErr := j.client.WithTx(ctx, func(tx *gorm.DB) error {
			result, reconcileErr := j.sync.WithTx(tx).Reconcile(ctx, productID)
			if reconcileErr != nil {
				return reconcileErr
			}
			if result.Corrected {
				corrected++
				fields := map[string]any{
					"product_id":     productID.String(),
					"previous_stock": result.PreviousStock.String(),
					"current_stock":  result.CurrentStock.String(),
				}
				j.logg.Warn(j.logg.WithFields(ctx, fields), "repaired drifted stock aggregate")
			}
			return nil
		})
		if txErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile product %s: %w", productID, txErr))
		}
	}

	ctx = j.logg.WithFields(ctx, map[string]any{
		"products":  len(rows),
		"corrected": corrected,
	})
	j.logg.Info(ctx, "stock reconcile sweep finished")
	return errs
}
