package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/internal/stocksync"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service exposes product stock reads and the reconcile path. The cached
// aggregate is written only by the stock synchronizer; this service never
// touches products.current_stock directly.
type Service struct {
	client *db.Client
	repo   *Repository
	sync   stocksync.Synchronizer
}

// StockView pairs the cached aggregate with the lot-derived sum so callers
// can see whether the two signals agree.
type StockView struct {
	ProductID    uuid.UUID       `json:"product_id"`
	InternalCode string          `json:"internal_code"`
	InternalName string          `json:"internal_name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	LotDerived   decimal.Decimal `json:"lot_derived_stock"`
	Consistent   bool            `json:"consistent"`
}

// NewService wires a product service.
func NewService(client *db.Client, repo *Repository, sync stocksync.Synchronizer) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if sync == nil {
		return nil, fmt.Errorf("stock synchronizer required")
	}
	return &Service{client: client, repo: repo, sync: sync}, nil
}

// CreateProductInput registers a new catalog entry. Stock always starts at
// zero; it only moves through lot operations.
type CreateProductInput struct {
	InternalCode string `json:"internal_code" validate:"required"`
	InternalName string `json:"internal_name" validate:"required"`
	Unit         string `json:"unit" validate:"required"`
}

// Create inserts a product with zero stock.
func (s *Service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	product := &models.Product{
		InternalCode: strings.TrimSpace(input.InternalCode),
		InternalName: strings.TrimSpace(input.InternalName),
		Unit:         strings.TrimSpace(input.Unit),
		CurrentStock: decimal.Zero,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err, "internal_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "internal code already in use").
				WithDetails(map[string]any{"internal_code": product.InternalCode})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return created, nil
}

// Get loads one product by id.
func (s *Service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

// GetByCode loads one product by its internal code.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Product, error) {
	product, err := s.repo.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

// List returns the catalog ordered by internal code.
func (s *Service) List(ctx context.Context) ([]models.Product, error) {
	rows, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return rows, nil
}

// GetStock returns the product's cached aggregate alongside the sum derived
// from its non-terminal lots.
func (s *Service) GetStock(ctx context.Context, productID uuid.UUID) (*StockView, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	derived, err := s.sync.Recompute(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive stock from lots")
	}

	return &StockView{
		ProductID:    product.ID,
		InternalCode: product.InternalCode,
		InternalName: product.InternalName,
		Unit:         product.Unit,
		CurrentStock: product.CurrentStock,
		LotDerived:   derived,
		Consistent:   product.CurrentStock.Equal(derived),
	}, nil
}

// Reconcile recomputes the aggregate from lots and repairs the cached value
// if it drifted.
func (s *Service) Reconcile(ctx context.Context, productID uuid.UUID) (*stocksync.ReconcileResult, error) {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	var result *stocksync.ReconcileResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.sync.WithTx(tx).Reconcile(ctx, productID)
		return txErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile stock")
	}
	return result, nil
}
