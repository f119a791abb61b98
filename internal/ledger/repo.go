package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository manages persistence for lot transactions. Transactions are
// append-only: there is no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.LotTransaction) error
	ListByLotID(ctx context.Context, lotID uuid.UUID) ([]models.LotTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.LotTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListByLotID(ctx context.Context, lotID uuid.UUID) ([]models.LotTransaction, error) {
	var txns []models.LotTransaction
	if err := r.db.WithContext(ctx).
		Where("lot_id = ?", lotID).
		Order("created_at ASC, id ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
