package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service records lot transactions and replays a lot's history.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordTransactionInput) (*models.LotTransaction, error)
	ListByLotID(ctx context.Context, lotID uuid.UUID) ([]models.LotTransaction, error)
	Replay(ctx context.Context, lotID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

// RecordTransactionInput captures the immutable data a lot transaction requires.
// Quantity is the signed delta; QuantityBefore and QuantityAfter snapshot the
// lot's current_quantity around the mutation.
type RecordTransactionInput struct {
	LotID          uuid.UUID
	Type           enums.LotTransactionType
	Quantity       decimal.Decimal
	QuantityBefore decimal.Decimal
	QuantityAfter  decimal.Decimal
	ReferenceType  *string
	ReferenceID    *uuid.UUID
	Notes          *string
	CreatedBy      *uuid.UUID
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, input RecordTransactionInput) (*models.LotTransaction, error) {
	if input.LotID == uuid.Nil {
		return nil, fmt.Errorf("lot id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid lot transaction type %q", input.Type)
	}
	if !input.QuantityBefore.Add(input.Quantity).Equal(input.QuantityAfter) {
		return nil, fmt.Errorf("transaction does not balance: %s + %s != %s",
			input.QuantityBefore, input.Quantity, input.QuantityAfter)
	}

	txn := &models.LotTransaction{
		LotID:          input.LotID,
		Type:           input.Type,
		Quantity:       input.Quantity,
		QuantityBefore: input.QuantityBefore,
		QuantityAfter:  input.QuantityAfter,
		ReferenceType:  input.ReferenceType,
		ReferenceID:    input.ReferenceID,
		Notes:          input.Notes,
		CreatedBy:      input.CreatedBy,
	}

	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) ListByLotID(ctx context.Context, lotID uuid.UUID) ([]models.LotTransaction, error) {
	if lotID == uuid.Nil {
		return nil, fmt.Errorf("lot id is required")
	}
	return s.repo.ListByLotID(ctx, lotID)
}

// Replay folds a lot's transactions in order and returns the derived final
// quantity. It fails when the before/after chain is broken, which would mean
// a mutation bypassed the ledger.
func (s *service) Replay(ctx context.Context, lotID uuid.UUID) (decimal.Decimal, error) {
	txns, err := s.ListByLotID(ctx, lotID)
	if err != nil {
		return decimal.Zero, err
	}
	return ReplayTransactions(txns)
}

// ReplayTransactions verifies the before/after chain of an ordered transaction
// history and returns the final quantity.
func ReplayTransactions(txns []models.LotTransaction) (decimal.Decimal, error) {
	current := decimal.Zero
	for i, txn := range txns {
		if !txn.QuantityBefore.Equal(current) {
			return decimal.Zero, fmt.Errorf(
				"broken transaction chain at index %d: quantity_before %s, expected %s",
				i, txn.QuantityBefore, current)
		}
		current = txn.QuantityBefore.Add(txn.Quantity)
		if !txn.QuantityAfter.Equal(current) {
			return decimal.Zero, fmt.Errorf(
				"unbalanced transaction at index %d: %s + %s != %s",
				i, txn.QuantityBefore, txn.Quantity, txn.QuantityAfter)
		}
	}
	return current, nil
}
