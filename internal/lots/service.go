package lots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/internal/ledger"
	product "github.com/lotkeeper/lotkeeper-backend/internal/products"
	"github.com/lotkeeper/lotkeeper-backend/internal/stocksync"
	"github.com/lotkeeper/lotkeeper-backend/pkg/config"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
	"github.com/lotkeeper/lotkeeper-backend/pkg/metrics"
	"github.com/lotkeeper/lotkeeper-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service implements the lot lifecycle: receive, split, consume, reserve,
// scrap, adjust. Every mutation runs in one database transaction that also
// writes the ledger row and moves the product aggregate through the stock
// synchronizer.
type Service struct {
	client   *db.Client
	repo     *Repository
	products *product.Repository
	ledger   ledger.Service
	sync     stocksync.Synchronizer
	metrics  *metrics.OperationMetrics
	cfg      config.LotConfig
}

// NewService wires a lot service. Metrics may be nil.
func NewService(
	client *db.Client,
	repo *Repository,
	products *product.Repository,
	ledgerSvc ledger.Service,
	sync stocksync.Synchronizer,
	operationMetrics *metrics.OperationMetrics,
	cfg config.LotConfig,
) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("lot repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if sync == nil {
		return nil, fmt.Errorf("stock synchronizer required")
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "LOT"
	}
	if cfg.NumberMaxRetries <= 0 {
		cfg.NumberMaxRetries = 3
	}
	return &Service{
		client:   client,
		repo:     repo,
		products: products,
		ledger:   ledgerSvc,
		sync:     sync,
		metrics:  operationMetrics,
		cfg:      cfg,
	}, nil
}

// Receive creates a new available lot and raises the product aggregate.
func (s *Service) Receive(ctx context.Context, input ReceiveLotInput) (*models.Lot, error) {
	start := time.Now()
	lot, err := s.receive(ctx, input)
	s.metrics.Observe("receive", start, err)
	return lot, err
}

func (s *Service) receive(ctx context.Context, input ReceiveLotInput) (*models.Lot, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.SourceType != enums.LotSourceTypePurchase && input.SourceType != enums.LotSourceTypeProduction {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"source type must be purchase or production")
	}
	if input.UnitCost != nil && input.UnitCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}

	receivedAt := time.Now().UTC()
	if input.ReceivedAt != nil {
		receivedAt = input.ReceivedAt.UTC()
	}

	var lot *models.Lot
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := s.products.WithTx(tx).FindByID(ctx, input.ProductID); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		created, err := s.createLot(ctx, repo, createLotSpec{
			ProductID:         input.ProductID,
			Quantity:          input.Quantity,
			UnitCost:          input.UnitCost,
			SourceType:        input.SourceType,
			SourceDocumentID:  input.SourceDocumentID,
			SupplierCompanyID: input.SupplierCompanyID,
			Location:          input.Location,
			ExpiryDate:        input.ExpiryDate,
			LotNumber:         input.LotNumber,
			ReceivedAt:        receivedAt,
			Notes:             input.Notes,
			ActorID:           input.ActorID,
		})
		if err != nil {
			return err
		}
		lot = created

		if _, err := s.ledger.WithTx(tx).Record(ctx, ledger.RecordTransactionInput{
			LotID:          lot.ID,
			Type:           enums.LotTransactionTypeReceive,
			Quantity:       input.Quantity,
			QuantityBefore: decimal.Zero,
			QuantityAfter:  input.Quantity,
			ReferenceType:  refTypePtr(input.SourceDocumentID, "source_document"),
			ReferenceID:    input.SourceDocumentID,
			Notes:          input.Notes,
			CreatedBy:      input.ActorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record receive transaction")
		}

		if err := s.sync.WithTx(tx).Apply(ctx, input.ProductID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, lot.ID)
}

type createLotSpec struct {
	ProductID         uuid.UUID
	Quantity          decimal.Decimal
	UnitCost          *decimal.Decimal
	SourceType        enums.LotSourceType
	SourceDocumentID  *uuid.UUID
	SourceLotID       *uuid.UUID
	SupplierCompanyID *uuid.UUID
	Location          *string
	ExpiryDate        *time.Time
	LotNumber         *string
	ReceivedAt        time.Time
	Notes             *string
	ActorID           *uuid.UUID
}

// createLot inserts a lot, generating the lot number when the caller did not
// supply one. Generated numbers are retried on unique-index collisions.
func (s *Service) createLot(ctx context.Context, repo *Repository, spec createLotSpec) (*models.Lot, error) {
	attempts := 1
	if spec.LotNumber == nil {
		attempts = s.cfg.NumberMaxRetries
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		number := ""
		if spec.LotNumber != nil {
			number = *spec.LotNumber
		} else {
			generated, err := s.nextLotNumber(ctx, repo, spec.ReceivedAt)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate lot number")
			}
			number = generated
		}

		lot := &models.Lot{
			ProductID:         spec.ProductID,
			LotNumber:         number,
			Status:            enums.LotStatusAvailable,
			OriginalQuantity:  spec.Quantity,
			CurrentQuantity:   spec.Quantity,
			UnitCost:          spec.UnitCost,
			TotalCost:         totalCost(spec.UnitCost, spec.Quantity),
			Location:          spec.Location,
			ExpiryDate:        spec.ExpiryDate,
			ReceivedAt:        spec.ReceivedAt,
			SourceType:        spec.SourceType,
			SourceDocumentID:  spec.SourceDocumentID,
			SourceLotID:       spec.SourceLotID,
			SupplierCompanyID: spec.SupplierCompanyID,
			Notes:             spec.Notes,
			CreatedBy:         spec.ActorID,
		}

		err := repo.Create(ctx, lot)
		if err == nil {
			return lot, nil
		}
		if !db.IsUniqueViolation(err, "ux_lots_product_lot_number") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert lot")
		}
		if spec.LotNumber != nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				"lot number already exists for product")
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "lot number generation exhausted retries")
}

// nextLotNumber produces PREFIX-YYYYMMDD-NNNN, continuing the day's sequence.
func (s *Service) nextLotNumber(ctx context.Context, repo *Repository, receivedAt time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", s.cfg.NumberPrefix, receivedAt.UTC().Format("20060102"))
	last, err := repo.LastLotNumber(ctx, prefix)
	if err != nil {
		return "", err
	}

	seq := 1
	if len(last) > len(prefix) {
		var parsed int
		if _, err := fmt.Sscanf(last[len(prefix):], "%d", &parsed); err == nil {
			seq = parsed + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// Get returns a lot with its product and parent references resolved.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Lot, error) {
	lot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lot")
	}
	return lot, nil
}

// List returns a page of lots and the unpaged total.
func (s *Service) List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Lot, int64, error) {
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lots")
	}
	return rows, total, nil
}

// Update patches a lot's descriptive fields. Terminal lots reject every
// change; status may only toggle between available and reserved here.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateLotInput) (*models.Lot, error) {
	start := time.Now()
	lot, err := s.update(ctx, id, input)
	s.metrics.Observe("update", start, err)
	return lot, err
}

func (s *Service) update(ctx context.Context, id uuid.UUID, input UpdateLotInput) (*models.Lot, error) {
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lot, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lot")
		}
		if err := guardMutable(lot.Status); err != nil {
			return err
		}

		readVersion := lot.LockVersion
		var reservationTxn *enums.LotTransactionType
		if input.Status != nil && *input.Status != lot.Status {
			if *input.Status != enums.LotStatusAvailable && *input.Status != enums.LotStatusReserved {
				return pkgerrors.New(pkgerrors.CodeValidation,
					"status may only be set to available or reserved")
			}
			if err := guardTransition(lot.Status, *input.Status); err != nil {
				return err
			}
			txnType := enums.LotTransactionTypeReserve
			if *input.Status == enums.LotStatusAvailable {
				txnType = enums.LotTransactionTypeUnreserve
			}
			reservationTxn = &txnType
			lot.Status = *input.Status
		}
		if input.Location != nil {
			lot.Location = input.Location
		}
		if input.UnitCost != nil {
			if input.UnitCost.IsNegative() {
				return pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
			}
			lot.UnitCost = input.UnitCost
			lot.TotalCost = totalCost(input.UnitCost, lot.CurrentQuantity)
		}
		if input.ExpiryDate != nil {
			lot.ExpiryDate = input.ExpiryDate
		}
		if input.Notes != nil {
			lot.Notes = input.Notes
		}

		if err := s.versionedUpdate(ctx, repo, lot, readVersion); err != nil {
			return err
		}

		// A status toggle here is the same audit event the dedicated
		// reserve/unreserve endpoints write.
		if reservationTxn != nil {
			if _, err := s.ledger.WithTx(tx).Record(ctx, ledger.RecordTransactionInput{
				LotID:          lot.ID,
				Type:           *reservationTxn,
				Quantity:       decimal.Zero,
				QuantityBefore: lot.CurrentQuantity,
				QuantityAfter:  lot.CurrentQuantity,
				CreatedBy:      input.ActorID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation transaction")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a lot: status moves to scrapped, its remaining quantity
// leaves the product aggregate, and a scrap ledger row is written.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*models.Lot, error) {
	start := time.Now()
	lot, err := s.scrap(ctx, id, actorID)
	s.metrics.Observe("scrap", start, err)
	return lot, err
}

func (s *Service) scrap(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*models.Lot, error) {
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lot, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lot")
		}
		if err := guardTransition(lot.Status, enums.LotStatusScrapped); err != nil {
			return err
		}

		prior := lot.CurrentQuantity
		readVersion := lot.LockVersion
		lot.Status = enums.LotStatusScrapped
		lot.CurrentQuantity = decimal.Zero
		if err := s.versionedUpdate(ctx, repo, lot, readVersion); err != nil {
			return err
		}

		if _, err := s.ledger.WithTx(tx).Record(ctx, ledger.RecordTransactionInput{
			LotID:          lot.ID,
			Type:           enums.LotTransactionTypeScrap,
			Quantity:       prior.Neg(),
			QuantityBefore: prior,
			QuantityAfter:  decimal.Zero,
			CreatedBy:      actorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record scrap transaction")
		}

		if err := s.sync.WithTx(tx).Apply(ctx, lot.ProductID, prior.Neg()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Consume draws quantity out of a lot; draining it to zero transitions the
// lot to depleted.
func (s *Service) Consume(ctx context.Context, id uuid.UUID, input ConsumeLotInput) (*models.Lot, error) {
	start := time.Now()
	lot, err := s.consume(ctx, id, input)
	s.metrics.Observe("consume", start, err)
	return lot, err
}

func (s *Service) consume(ctx context.Context, id uuid.UUID, input ConsumeLotInput) (*models.Lot, error) {
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lot, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lot")
		}
		if err := guardMutable(lot.Status); err != nil {
			return err
		}

		remaining := lot.CurrentQuantity.Sub(input.Quantity)
		if remaining.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInsufficientQuantity,
				"consume exceeds remaining quantity").
				WithDetails(map[string]string{
					"current_quantity": lot.CurrentQuantity.String(),
					"requested":        input.Quantity.String(),
				})
		}

		before := lot.CurrentQuantity
		readVersion := lot.LockVersion
		lot.CurrentQuantity = remaining
		if remaining.IsZero() {
			if err := guardTransition(lot.Status, enums.LotStatusDepleted); err != nil {
				return err
			}
			lot.Status = enums.LotStatusDepleted
		}
		if err := s.versionedUpdate(ctx, repo, lot, readVersion); err != nil {
			return err
		}

		if _, err := s.ledger.WithTx(tx).Record(ctx, ledger.RecordTransactionInput{
			LotID:          lot.ID,
			Type:           enums.LotTransactionTypeConsume,
			Quantity:       input.Quantity.Neg(),
			QuantityBefore: before,
			QuantityAfter:  remaining,
			ReferenceType:  input.ReferenceType,
			ReferenceID:    input.ReferenceID,
			Notes:          input.Notes,
			CreatedBy:      input.ActorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record consume transaction")
		}

		if err := s.sync.WithTx(tx).Apply(ctx, lot.ProductID, input.Quantity.Neg()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Reserve marks the lot's entire remaining quantity as spoken for.
func (s *Service) Reserve(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*models.Lot, error) {
	start := time.Now()
	lot, err := s.setReservation(ctx, id, enums.LotStatusReserved, enums.LotTransactionTypeReserve, actorID)
	s.metrics.Observe("reserve", start, err)
	return lot, err
}

// Unreserve returns a reserved lot to available.
func (s *Service) Unreserve(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*models.Lot, error) {
	start := time.Now()
	lot, err := s.setReservation(ctx, id, enums.LotStatusAvailable, enums.LotTransactionTypeUnreserve, actorID)
	s.metrics.Observe("unreserve", start, err)
	return lot, err
}

func (s *Service) setReservation(
	ctx context.Context,
	id uuid.UUID,
	target enums.LotStatus,
	txnType enums.LotTransactionType,
	actorID *uuid.UUID,
) (*models.Lot, error) {
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lot, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lot")
		}
		if lot.Status == target {
			return pkgerrors.New(pkgerrors.CodeInvalidState,
				"lot is already "+string(target))
		}
		if err := guardTransition(lot.Status, target); err != nil {
			return err
		}

		readVersion := lot.LockVersion
		lot.Status = target
		if err := s.versionedUpdate(ctx, repo, lot, readVersion); err != nil {
			return err
		}

		// Status-only: quantity delta is zero, the row records intent.
		if _, err := s.ledger.WithTx(tx).Record(ctx, ledger.RecordTransactionInput{
			LotID:          lot.ID,
			Type:           txnType,
			Quantity:       decimal.Zero,
			QuantityBefore: lot.CurrentQuantity,
			QuantityAfter:  lot.CurrentQuantity,
			CreatedBy:      actorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation transaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Adjust applies a signed stock-count correction to one non-terminal lot.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, input AdjustLotInput) (*models.Lot, error) {
	start := time.Now()
	lot, err := s.adjust(ctx, id, input)
	s.metrics.Observe("adjust", start, err)
	return lot, err
}

func (s *Service) adjust(ctx context.Context, id uuid.UUID, input AdjustLotInput) (*models.Lot, error) {
	if input.Delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lot, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lot")
		}
		if err := guardMutable(lot.Status); err != nil {
			return err
		}

		result := lot.CurrentQuantity.Add(input.Delta)
		if result.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInsufficientQuantity,
				"adjustment would drive quantity negative").
				WithDetails(map[string]string{
					"current_quantity": lot.CurrentQuantity.String(),
					"delta":            input.Delta.String(),
				})
		}

		before := lot.CurrentQuantity
		readVersion := lot.LockVersion
		lot.CurrentQuantity = result
		if err := s.versionedUpdate(ctx, repo, lot, readVersion); err != nil {
			return err
		}

		reason := input.Reason
		if _, err := s.ledger.WithTx(tx).Record(ctx, ledger.RecordTransactionInput{
			LotID:          lot.ID,
			Type:           enums.LotTransactionTypeAdjust,
			Quantity:       input.Delta,
			QuantityBefore: before,
			QuantityAfter:  result,
			Notes:          &reason,
			CreatedBy:      input.ActorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record adjust transaction")
		}

		if err := s.sync.WithTx(tx).Apply(ctx, lot.ProductID, input.Delta); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ListTransactions returns a lot's ledger rows in chronological order.
func (s *Service) ListTransactions(ctx context.Context, lotID uuid.UUID) ([]models.LotTransaction, error) {
	if _, err := s.Get(ctx, lotID); err != nil {
		return nil, err
	}
	txns, err := s.ledger.ListByLotID(ctx, lotID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lot transactions")
	}
	return txns, nil
}

func (s *Service) versionedUpdate(ctx context.Context, repo *Repository, lot *models.Lot, readVersion int64) error {
	if err := repo.UpdateVersioned(ctx, lot, readVersion); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return pkgerrors.New(pkgerrors.CodeConflict,
				"lot was modified concurrently, re-read and retry")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update lot")
	}
	return nil
}

func totalCost(unitCost *decimal.Decimal, quantity decimal.Decimal) *decimal.Decimal {
	if unitCost == nil {
		return nil
	}
	total := unitCost.Mul(quantity)
	return &total
}

func refTypePtr(id *uuid.UUID, refType string) *string {
	if id == nil {
		return nil
	}
	return &refType
}
