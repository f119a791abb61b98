package lots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/internal/ledger"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxLineageDepth caps ancestor/descendant walks so a corrupted parent chain
// cannot loop forever.
const maxLineageDepth = 64

// Split divides a parent lot's entire remaining quantity into two or more
// child lots. The child quantities must sum to the parent's current quantity
// exactly; the parent is retired to status=split with quantity zero. The
// product aggregate is untouched since the transfer nets to zero.
func (s *Service) Split(ctx context.Context, parentID uuid.UUID, input SplitLotInput) (*SplitResult, error) {
	start := time.Now()
	result, err := s.split(ctx, parentID, input)
	s.metrics.Observe("split", start, err)
	return result, err
}

func (s *Service) split(ctx context.Context, parentID uuid.UUID, input SplitLotInput) (*SplitResult, error) {
	if len(input.Children) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"split requires at least two children")
	}
	for i, child := range input.Children {
		if !child.Quantity.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("child %d quantity must be positive", i))
		}
	}

	var result SplitResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		parent, err := repo.FindByID(ctx, parentID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent lot")
		}
		if err := guardTransition(parent.Status, enums.LotStatusSplit); err != nil {
			return err
		}

		sum := decimal.Zero
		for _, child := range input.Children {
			sum = sum.Add(child.Quantity)
		}
		if !sum.Equal(parent.CurrentQuantity) {
			return pkgerrors.New(pkgerrors.CodeQuantityMismatch,
				"children quantities must sum to the parent's current quantity").
				WithDetails(map[string]string{
					"parent_quantity": parent.CurrentQuantity.String(),
					"children_sum":    sum.String(),
				})
		}

		ledgerTx := s.ledger.WithTx(tx)
		children := make([]models.Lot, 0, len(input.Children))
		for i, spec := range input.Children {
			child := models.Lot{
				ProductID:         parent.ProductID,
				LotNumber:         fmt.Sprintf("%s-S%d", parent.LotNumber, i+1),
				Status:            enums.LotStatusAvailable,
				OriginalQuantity:  spec.Quantity,
				CurrentQuantity:   spec.Quantity,
				UnitCost:          parent.UnitCost,
				TotalCost:         totalCost(parent.UnitCost, spec.Quantity),
				Location:          parent.Location,
				ExpiryDate:        parent.ExpiryDate,
				ReceivedAt:        parent.ReceivedAt,
				SourceType:        enums.LotSourceTypeSplit,
				SourceLotID:       &parent.ID,
				SupplierCompanyID: parent.SupplierCompanyID,
				Notes:             spec.Notes,
				CreatedBy:         input.ActorID,
			}
			if spec.Location != nil {
				child.Location = spec.Location
			}
			if err := repo.Create(ctx, &child); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert child lot")
			}
			children = append(children, child)
		}

		before := parent.CurrentQuantity
		readVersion := parent.LockVersion
		parent.Status = enums.LotStatusSplit
		parent.CurrentQuantity = decimal.Zero
		if err := s.versionedUpdate(ctx, repo, parent, readVersion); err != nil {
			return err
		}

		if _, err := ledgerTx.Record(ctx, ledger.RecordTransactionInput{
			LotID:          parent.ID,
			Type:           enums.LotTransactionTypeSplitOut,
			Quantity:       before.Neg(),
			QuantityBefore: before,
			QuantityAfter:  decimal.Zero,
			CreatedBy:      input.ActorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record split_out transaction")
		}
		for i := range children {
			child := &children[i]
			if _, err := ledgerTx.Record(ctx, ledger.RecordTransactionInput{
				LotID:          child.ID,
				Type:           enums.LotTransactionTypeSplitIn,
				Quantity:       child.OriginalQuantity,
				QuantityBefore: decimal.Zero,
				QuantityAfter:  child.OriginalQuantity,
				ReferenceType:  refTypeSplit(),
				ReferenceID:    &parent.ID,
				CreatedBy:      input.ActorID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record split_in transaction")
			}
		}

		// The transfer nets to zero; Apply short-circuits the write but
		// keeps every quantity move on the same code path.
		if err := s.sync.WithTx(tx).Apply(ctx, parent.ProductID, decimal.Zero); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
		}

		result = SplitResult{Parent: parent, Children: children}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SplitHistory walks a lot's split lineage: ancestors through source_lot_id,
// descendants breadth-first through child lots.
func (s *Service) SplitHistory(ctx context.Context, lotID uuid.UUID) (*SplitHistory, error) {
	lot, err := s.Get(ctx, lotID)
	if err != nil {
		return nil, err
	}

	history := &SplitHistory{
		SplitFrom: []models.Lot{},
		SplitTo:   []models.Lot{},
	}

	current := lot
	for depth := 0; current.SourceLotID != nil && depth < maxLineageDepth; depth++ {
		parent, err := s.repo.FindByID(ctx, *current.SourceLotID)
		if err != nil {
			if db.IsNotFound(err) {
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ancestor lot")
		}
		history.SplitFrom = append(history.SplitFrom, *parent)
		current = parent
	}

	frontier := []uuid.UUID{lotID}
	for depth := 0; len(frontier) > 0 && depth < maxLineageDepth; depth++ {
		var next []uuid.UUID
		for _, id := range frontier {
			children, err := s.repo.ListChildren(ctx, id)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load descendant lots")
			}
			for _, child := range children {
				history.SplitTo = append(history.SplitTo, child)
				next = append(next, child.ID)
			}
		}
		frontier = next
	}

	return history, nil
}

func refTypeSplit() *string {
	t := "split"
	return &t
}
