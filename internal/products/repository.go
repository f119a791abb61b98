package product

import (
	"context"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository wires together product persistence helpers.
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

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByCode loads a product by its internal code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "internal_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns every product ordered by internal code.
func (r *Repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Order("internal_code ASC").
		Find(&rows).
		Error
	return rows, err
}
