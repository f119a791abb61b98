package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product carries the catalog identity and the cached aggregate stock
// counter. current_stock is written only by the stock synchronizer and must
// equal the sum of current_quantity over the product's non-terminal lots.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InternalCode string          `gorm:"column:internal_code;uniqueIndex;not null" json:"internal_code"`
	InternalName string          `gorm:"column:internal_name;not null" json:"internal_name"`
	Unit         string          `gorm:"column:unit;not null" json:"unit"`
	CurrentStock decimal.Decimal `gorm:"column:current_stock;type:numeric(18,4);not null" json:"current_stock"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
