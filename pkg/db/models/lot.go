package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
)

// Lot is a traceable batch of a product. A lot is never physically deleted:
// soft delete is the terminal transition to scrapped, and splits retire the
// parent into status=split with children pointing back via source_lot_id.
type Lot struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index;uniqueIndex:ux_lots_product_lot_number,priority:1" json:"product_id"`
	LotNumber string          `gorm:"column:lot_number;not null;uniqueIndex:ux_lots_product_lot_number,priority:2" json:"lot_number"`
	Status    enums.LotStatus `gorm:"column:status;type:lot_status_enum;not null" json:"status"`

	OriginalQuantity decimal.Decimal  `gorm:"column:original_quantity;type:numeric(18,4);not null" json:"original_quantity"`
	CurrentQuantity  decimal.Decimal  `gorm:"column:current_quantity;type:numeric(18,4);not null" json:"current_quantity"`
	UnitCost         *decimal.Decimal `gorm:"column:unit_cost;type:numeric(18,4)" json:"unit_cost,omitempty"`
	TotalCost        *decimal.Decimal `gorm:"column:total_cost;type:numeric(18,4)" json:"total_cost,omitempty"`

	Location   *string    `gorm:"column:location" json:"location,omitempty"`
	ExpiryDate *time.Time `gorm:"column:expiry_date" json:"expiry_date,omitempty"`
	ReceivedAt time.Time  `gorm:"column:received_at;not null" json:"received_at"`

	SourceType        enums.LotSourceType `gorm:"column:source_type;type:lot_source_type_enum;not null" json:"source_type"`
	SourceDocumentID  *uuid.UUID          `gorm:"column:source_document_id;type:uuid" json:"source_document_id,omitempty"`
	SourceLotID       *uuid.UUID          `gorm:"column:source_lot_id;type:uuid;index" json:"source_lot_id,omitempty"`
	SupplierCompanyID *uuid.UUID          `gorm:"column:supplier_company_id;type:uuid;index" json:"supplier_company_id,omitempty"`

	Notes     *string    `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy *uuid.UUID `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// LockVersion guards concurrent mutations: every quantity or status
	// write increments it and must match the version that was read.
	LockVersion int64 `gorm:"column:lock_version;not null" json:"lock_version"`

	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	SourceLot *Lot     `gorm:"foreignKey:SourceLotID" json:"source_lot,omitempty"`
}

func (l *Lot) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
