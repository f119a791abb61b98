package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
)

// LotTransaction is an immutable ledger row recording one quantity-changing
// event on a lot. Rows are only ever inserted; corrections are new adjust
// rows. Replaying quantity deltas from original_quantity must reproduce the
// lot's current_quantity at every point.
type LotTransaction struct {
	ID    uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	LotID uuid.UUID                `gorm:"column:lot_id;type:uuid;not null;index" json:"lot_id"`
	Type  enums.LotTransactionType `gorm:"column:transaction_type;type:lot_transaction_type_enum;not null" json:"transaction_type"`

	Quantity       decimal.Decimal `gorm:"column:quantity;type:numeric(18,4);not null" json:"quantity"`
	QuantityBefore decimal.Decimal `gorm:"column:quantity_before;type:numeric(18,4);not null" json:"quantity_before"`
	QuantityAfter  decimal.Decimal `gorm:"column:quantity_after;type:numeric(18,4);not null" json:"quantity_after"`

	ReferenceType *string    `gorm:"column:reference_type" json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID `gorm:"column:reference_id;type:uuid" json:"reference_id,omitempty"`

	Notes     *string    `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy *uuid.UUID `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (t *LotTransaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
