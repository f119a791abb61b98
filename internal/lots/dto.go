package lots

import (
	"time"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// ReceiveLotInput creates a new lot from a receipt or production run.
type ReceiveLotInput struct {
	ProductID         uuid.UUID           `json:"product_id" validate:"required"`
	Quantity          decimal.Decimal     `json:"quantity" validate:"required"`
	UnitCost          *decimal.Decimal    `json:"unit_cost,omitempty"`
	SourceType        enums.LotSourceType `json:"source_type" validate:"required,oneof=purchase production"`
	SourceDocumentID  *uuid.UUID          `json:"source_document_id,omitempty"`
	SupplierCompanyID *uuid.UUID          `json:"supplier_company_id,omitempty"`
	Location          *string             `json:"location,omitempty"`
	ExpiryDate        *time.Time          `json:"expiry_date,omitempty"`
	LotNumber         *string             `json:"lot_number,omitempty"`
	ReceivedAt        *time.Time          `json:"received_at,omitempty"`
	Notes             *string             `json:"notes,omitempty"`
	ActorID           *uuid.UUID          `json:"actor_id,omitempty"`
}

// UpdateLotInput patches a lot's descriptive fields. Quantity is never
// updatable here; status may only move between available and reserved.
type UpdateLotInput struct {
	Location   *string          `json:"location,omitempty"`
	UnitCost   *decimal.Decimal `json:"unit_cost,omitempty"`
	ExpiryDate *time.Time       `json:"expiry_date,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
	Status     *enums.LotStatus `json:"status,omitempty" validate:"omitempty,oneof=available reserved"`
	ActorID    *uuid.UUID       `json:"actor_id,omitempty"`
}

// SplitChildSpec describes one child of a split.
type SplitChildSpec struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
	Location *string         `json:"location,omitempty"`
	Notes    *string         `json:"notes,omitempty"`
}

// SplitLotInput divides a parent lot's entire remaining quantity.
type SplitLotInput struct {
	Children []SplitChildSpec `json:"children" validate:"required,min=2,dive"`
	ActorID  *uuid.UUID       `json:"actor_id,omitempty"`
}

// SplitResult pairs the retired parent with its children.
type SplitResult struct {
	Parent   *models.Lot  `json:"parent"`
	Children []models.Lot `json:"children"`
}

// SplitHistory lists a lot's split lineage in both directions.
type SplitHistory struct {
	SplitFrom []models.Lot `json:"split_from"`
	SplitTo   []models.Lot `json:"split_to"`
}

// ConsumeLotInput draws quantity out of a lot.
type ConsumeLotInput struct {
	Quantity      decimal.Decimal `json:"quantity" validate:"required"`
	ReferenceType *string         `json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	ActorID       *uuid.UUID      `json:"actor_id,omitempty"`
}

// AdjustLotInput applies a signed stock-count correction to one lot.
type AdjustLotInput struct {
	Delta   decimal.Decimal `json:"delta" validate:"required"`
	Reason  string          `json:"reason" validate:"required"`
	ActorID *uuid.UUID      `json:"actor_id,omitempty"`
}

// ActorInput carries the acting user for status-only operations.
type ActorInput struct {
	ActorID *uuid.UUID `json:"actor_id,omitempty"`
}

// AdjustProductStockInput corrects a product's total stock. A positive delta
// creates a new adjustment lot; a negative delta consumes available lots
// oldest first.
type AdjustProductStockInput struct {
	Delta   decimal.Decimal `json:"delta" validate:"required"`
	Reason  string          `json:"reason" validate:"required"`
	ActorID *uuid.UUID      `json:"actor_id,omitempty"`
}

// ProductStockAdjustment reports the lots touched by a product-level adjust.
type ProductStockAdjustment struct {
	ProductID uuid.UUID       `json:"product_id"`
	Delta     decimal.Decimal `json:"delta"`
	Lots      []models.Lot    `json:"lots"`
}
