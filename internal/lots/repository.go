package lots

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	"github.com/lotkeeper/lotkeeper-backend/pkg/pagination"
	"gorm.io/gorm"
)

// ErrVersionConflict signals that a versioned update matched no row, meaning
// the lot changed between read and write.
var ErrVersionConflict = errors.New("lot version conflict")

// ListFilters restricts the lot listing.
type ListFilters struct {
	ProductID         *uuid.UUID
	Status            *enums.LotStatus
	SourceType        *enums.LotSourceType
	SupplierCompanyID *uuid.UUID
	Location          *string
	Search            string
}

// Repository wires together lot persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new lot row.
func (r *Repository) Create(ctx context.Context, lot *models.Lot) error {
	return r.db.WithContext(ctx).Create(lot).Error
}

// FindByID loads a lot with its product and parent references.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Lot, error) {
	var lot models.Lot
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("SourceLot").
		First(&lot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

// List returns a page of lots plus the unpaged total.
func (r *Repository) List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Lot, int64, error) {
	qb := r.db.WithContext(ctx).Model(&models.Lot{})

	if filters.ProductID != nil {
		qb = qb.Where("product_id = ?", *filters.ProductID)
	}
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if filters.SourceType != nil {
		qb = qb.Where("source_type = ?", *filters.SourceType)
	}
	if filters.SupplierCompanyID != nil {
		qb = qb.Where("supplier_company_id = ?", *filters.SupplierCompanyID)
	}
	if filters.Location != nil {
		qb = qb.Where("location = ?", *filters.Location)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(lot_number) LIKE ? OR LOWER(COALESCE(notes, '')) LIKE ?)", pattern, pattern)
	}

	var total int64
	if err := qb.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Lot
	err := qb.
		Preload("Product").
		Order("received_at DESC, created_at DESC").
		Offset(page.Offset()).
		Limit(pagination.NormalizeLimit(page.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateVersioned writes the lot's mutable columns guarded by the version the
// caller read. The row's lock_version is incremented; zero rows affected means
// a concurrent writer got there first.
func (r *Repository) UpdateVersioned(ctx context.Context, lot *models.Lot, readVersion int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Lot{}).
		Where("id = ? AND lock_version = ?", lot.ID, readVersion).
		Updates(map[string]any{
			"status":           lot.Status,
			"current_quantity": lot.CurrentQuantity,
			"unit_cost":        lot.UnitCost,
			"total_cost":       lot.TotalCost,
			"location":         lot.Location,
			"expiry_date":      lot.ExpiryDate,
			"notes":            lot.Notes,
			"lock_version":     readVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	lot.LockVersion = readVersion + 1
	return nil
}

// ListChildren returns the lots produced by splitting the given parent.
func (r *Repository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.Lot, error) {
	var rows []models.Lot
	err := r.db.WithContext(ctx).
		Where("source_lot_id = ? AND source_type = ?", parentID, enums.LotSourceTypeSplit).
		Order("created_at ASC, lot_number ASC").
		Find(&rows).Error
	return rows, err
}

// ListConsumable returns the product's available lots oldest first, the order
// cross-lot consumption drains them in.
func (r *Repository) ListConsumable(ctx context.Context, productID uuid.UUID) ([]models.Lot, error) {
	var rows []models.Lot
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, enums.LotStatusAvailable).
		Order("received_at ASC, created_at ASC").
		Find(&rows).Error
	return rows, err
}

// LastLotNumber returns the highest lot_number matching the prefix, or empty
// when the prefix is unused.
func (r *Repository) LastLotNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := r.db.WithContext(ctx).
		Model(&models.Lot{}).
		Where("lot_number LIKE ?", prefix+"%").
		Order("lot_number DESC").
		Limit(1).
		Pluck("lot_number", &number).Error
	if err != nil {
		return "", err
	}
	return number, nil
}
