package lots

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/internal/ledger"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
	"github.com/lotkeeper/lotkeeper-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func q(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func dptr(v decimal.Decimal) *decimal.Decimal { return &v }

func TestService_Receive(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID:  prod.ID,
		Quantity:   q(100),
		UnitCost:   dptr(q(10)),
		SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.LotStatusAvailable, lot.Status)
	assert.True(t, lot.CurrentQuantity.Equal(q(100)))
	assert.True(t, lot.OriginalQuantity.Equal(q(100)))
	require.NotNil(t, lot.TotalCost)
	assert.True(t, lot.TotalCost.Equal(q(1000)))
	assert.Regexp(t, `^LOT-\d{8}-\d{4}$`, lot.LotNumber)
	require.NotNil(t, lot.Product)
	assert.Equal(t, prod.ID, lot.Product.ID)

	var got models.Product
	require.NoError(t, conn.First(&got, "id = ?", prod.ID).Error)
	assert.True(t, got.CurrentStock.Equal(q(100)))

	txns, err := svc.ListTransactions(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, enums.LotTransactionTypeReceive, txns[0].Type)
	assert.True(t, txns[0].Quantity.Equal(q(100)))
	assert.True(t, txns[0].QuantityBefore.IsZero())
	assert.True(t, txns[0].QuantityAfter.Equal(q(100)))

	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_ReceiveValidation(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	tests := []struct {
		name  string
		input ReceiveLotInput
		code  pkgerrors.Code
	}{
		{
			name:  "missing product",
			input: ReceiveLotInput{Quantity: q(10), SourceType: enums.LotSourceTypePurchase},
			code:  pkgerrors.CodeValidation,
		},
		{
			name:  "zero quantity",
			input: ReceiveLotInput{ProductID: prod.ID, Quantity: q(0), SourceType: enums.LotSourceTypePurchase},
			code:  pkgerrors.CodeValidation,
		},
		{
			name:  "negative quantity",
			input: ReceiveLotInput{ProductID: prod.ID, Quantity: q(-5), SourceType: enums.LotSourceTypePurchase},
			code:  pkgerrors.CodeValidation,
		},
		{
			name:  "split source type",
			input: ReceiveLotInput{ProductID: prod.ID, Quantity: q(10), SourceType: enums.LotSourceTypeSplit},
			code:  pkgerrors.CodeValidation,
		},
		{
			name:  "unknown product",
			input: ReceiveLotInput{ProductID: uuid.New(), Quantity: q(10), SourceType: enums.LotSourceTypePurchase},
			code:  pkgerrors.CodeNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Receive(ctx, tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.code, pkgerrors.As(err).Code())
		})
	}
}

func TestService_ReceiveSequencesLotNumbers(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	day := time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC)
	first, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(10),
		SourceType: enums.LotSourceTypePurchase, ReceivedAt: &day,
	})
	require.NoError(t, err)
	second, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(20),
		SourceType: enums.LotSourceTypeProduction, ReceivedAt: &day,
	})
	require.NoError(t, err)

	assert.Equal(t, "LOT-20260412-0001", first.LotNumber)
	assert.Equal(t, "LOT-20260412-0002", second.LotNumber)
}

func TestService_ReceiveDuplicateExplicitNumber(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	number := "LOT-CUSTOM-1"
	_, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(10),
		SourceType: enums.LotSourceTypePurchase, LotNumber: &number,
	})
	require.NoError(t, err)

	_, err = svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(10),
		SourceType: enums.LotSourceTypePurchase, LotNumber: &number,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestService_Consume(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(100), UnitCost: dptr(q(10)),
		SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	refType := "production_order"
	refID := uuid.New()
	lot, err = svc.Consume(ctx, lot.ID, ConsumeLotInput{
		Quantity: q(30), ReferenceType: &refType, ReferenceID: &refID,
	})
	require.NoError(t, err)
	assert.True(t, lot.CurrentQuantity.Equal(q(70)))
	assert.Equal(t, enums.LotStatusAvailable, lot.Status)

	var got models.Product
	require.NoError(t, conn.First(&got, "id = ?", prod.ID).Error)
	assert.True(t, got.CurrentStock.Equal(q(70)))

	txns, err := svc.ListTransactions(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, enums.LotTransactionTypeConsume, txns[1].Type)
	assert.True(t, txns[1].Quantity.Equal(q(-30)))
	assert.True(t, txns[1].QuantityBefore.Equal(q(100)))
	assert.True(t, txns[1].QuantityAfter.Equal(q(70)))
	require.NotNil(t, txns[1].ReferenceType)
	assert.Equal(t, refType, *txns[1].ReferenceType)

	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_ConsumeToZeroDepletes(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(40), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	lot, err = svc.Consume(ctx, lot.ID, ConsumeLotInput{Quantity: q(40)})
	require.NoError(t, err)
	assert.Equal(t, enums.LotStatusDepleted, lot.Status)
	assert.True(t, lot.CurrentQuantity.IsZero())

	// Terminal: further consumption is rejected without writes.
	_, err = svc.Consume(ctx, lot.ID, ConsumeLotInput{Quantity: q(1)})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidState, pkgerrors.As(err).Code())

	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_ConsumeInsufficient(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(10), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, lot.ID, ConsumeLotInput{Quantity: q(11)})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientQuantity, pkgerrors.As(err).Code())

	got, err := svc.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentQuantity.Equal(q(10)))
	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_ReserveUnreserve(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(50), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	lot, err = svc.Reserve(ctx, lot.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.LotStatusReserved, lot.Status)
	assert.True(t, lot.CurrentQuantity.Equal(q(50)))

	_, err = svc.Reserve(ctx, lot.ID, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidState, pkgerrors.As(err).Code())

	lot, err = svc.Unreserve(ctx, lot.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.LotStatusAvailable, lot.Status)

	txns, err := svc.ListTransactions(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, enums.LotTransactionTypeReserve, txns[1].Type)
	assert.Equal(t, enums.LotTransactionTypeUnreserve, txns[2].Type)
	assert.True(t, txns[1].Quantity.IsZero())

	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_ScrapReservedLot(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(20), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, lot.ID, nil)
	require.NoError(t, err)

	lot, err = svc.Delete(ctx, lot.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.LotStatusScrapped, lot.Status)
	assert.True(t, lot.CurrentQuantity.IsZero())

	var got models.Product
	require.NoError(t, conn.First(&got, "id = ?", prod.ID).Error)
	assert.True(t, got.CurrentStock.IsZero())

	txns, err := svc.ListTransactions(ctx, lot.ID)
	require.NoError(t, err)
	last := txns[len(txns)-1]
	assert.Equal(t, enums.LotTransactionTypeScrap, last.Type)
	assert.True(t, last.Quantity.Equal(q(-20)))

	// Any later update attempt fails before writing.
	loc := "B-12"
	_, err = svc.Update(ctx, lot.ID, UpdateLotInput{Location: &loc})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidState, pkgerrors.As(err).Code())

	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_Update(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(10), UnitCost: dptr(q(2)),
		SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	loc := "A-01"
	notes := "recount pending"
	status := enums.LotStatusReserved
	updated, err := svc.Update(ctx, lot.ID, UpdateLotInput{
		Location: &loc,
		Notes:    &notes,
		UnitCost: dptr(q(3)),
		Status:   &status,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Location)
	assert.Equal(t, loc, *updated.Location)
	assert.Equal(t, enums.LotStatusReserved, updated.Status)
	require.NotNil(t, updated.TotalCost)
	assert.True(t, updated.TotalCost.Equal(q(30)))
	assert.Greater(t, updated.LockVersion, lot.LockVersion)
}

func TestService_UpdateStatusTogglesWriteLedgerRows(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	actor := uuid.New()
	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(10), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	reserved := enums.LotStatusReserved
	_, err = svc.Update(ctx, lot.ID, UpdateLotInput{Status: &reserved, ActorID: &actor})
	require.NoError(t, err)

	available := enums.LotStatusAvailable
	loc := "B-02"
	_, err = svc.Update(ctx, lot.ID, UpdateLotInput{Status: &available, Location: &loc})
	require.NoError(t, err)

	// A descriptive-only patch must not add audit rows.
	notes := "recount pending"
	_, err = svc.Update(ctx, lot.ID, UpdateLotInput{Notes: &notes})
	require.NoError(t, err)

	txns, err := svc.ListTransactions(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, enums.LotTransactionTypeReserve, txns[1].Type)
	assert.True(t, txns[1].Quantity.IsZero())
	assert.True(t, txns[1].QuantityBefore.Equal(q(10)))
	assert.True(t, txns[1].QuantityAfter.Equal(q(10)))
	require.NotNil(t, txns[1].CreatedBy)
	assert.Equal(t, actor, *txns[1].CreatedBy)
	assert.Equal(t, enums.LotTransactionTypeUnreserve, txns[2].Type)
	assert.True(t, txns[2].Quantity.IsZero())
}

func TestService_Adjust(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(10), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	lot, err = svc.Adjust(ctx, lot.ID, AdjustLotInput{Delta: q(-4), Reason: "stock count"})
	require.NoError(t, err)
	assert.True(t, lot.CurrentQuantity.Equal(q(6)))

	lot, err = svc.Adjust(ctx, lot.ID, AdjustLotInput{Delta: q(2), Reason: "found pallet"})
	require.NoError(t, err)
	assert.True(t, lot.CurrentQuantity.Equal(q(8)))

	_, err = svc.Adjust(ctx, lot.ID, AdjustLotInput{Delta: q(-20), Reason: "stock count"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientQuantity, pkgerrors.As(err).Code())

	_, err = svc.Adjust(ctx, lot.ID, AdjustLotInput{Delta: q(1)})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_StaleVersionWriteConflicts(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID:  prod.ID,
		Quantity:   q(100),
		SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	// First writer reads the lot, then a second writer lands before the
	// first one gets to write.
	stale, err := svc.repo.FindByID(ctx, lot.ID)
	require.NoError(t, err)
	staleVersion := stale.LockVersion

	consumed, err := svc.Consume(ctx, lot.ID, ConsumeLotInput{Quantity: q(10)})
	require.NoError(t, err)
	require.Greater(t, consumed.LockVersion, staleVersion)

	stale.CurrentQuantity = q(1)
	err = svc.versionedUpdate(ctx, svc.repo, stale, staleVersion)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	// The stale write must not have touched the row.
	var got models.Lot
	require.NoError(t, conn.First(&got, "id = ?", lot.ID).Error)
	assert.True(t, got.CurrentQuantity.Equal(q(90)))
	assert.Equal(t, consumed.LockVersion, got.LockVersion)
	requireAggregateConsistent(t, conn, prod.ID)
}

func TestRepository_UpdateVersionedStaleRead(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID:  prod.ID,
		Quantity:   q(50),
		SourceType: enums.LotSourceTypeProduction,
	})
	require.NoError(t, err)

	repo := NewRepository(conn)
	fresh, err := repo.FindByID(ctx, lot.ID)
	require.NoError(t, err)

	fresh.CurrentQuantity = q(40)
	require.NoError(t, repo.UpdateVersioned(ctx, fresh, lot.LockVersion))
	assert.Equal(t, lot.LockVersion+1, fresh.LockVersion)

	fresh.CurrentQuantity = q(30)
	err = repo.UpdateVersioned(ctx, fresh, lot.LockVersion)
	require.ErrorIs(t, err, ErrVersionConflict)

	var got models.Lot
	require.NoError(t, conn.First(&got, "id = ?", lot.ID).Error)
	assert.True(t, got.CurrentQuantity.Equal(q(40)))
	assert.Equal(t, lot.LockVersion+1, got.LockVersion)
}

func TestService_List(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prodA := seedTestProduct(t, conn)
	prodB := seedTestProduct(t, conn)

	loc := "A-01"
	_, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prodA.ID, Quantity: q(10),
		SourceType: enums.LotSourceTypePurchase, Location: &loc,
	})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, ReceiveLotInput{
		ProductID: prodA.ID, Quantity: q(20), SourceType: enums.LotSourceTypeProduction,
	})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, ReceiveLotInput{
		ProductID: prodB.ID, Quantity: q(30), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	rows, total, err := svc.List(ctx, ListFilters{ProductID: &prodA.ID}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rows, 2)

	srcType := enums.LotSourceTypeProduction
	rows, total, err = svc.List(ctx, ListFilters{SourceType: &srcType}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	rows, total, err = svc.List(ctx, ListFilters{Location: &loc}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	rows, total, err = svc.List(ctx, ListFilters{}, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 1)
}

func TestService_LedgerReplayMatchesLot(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(100), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)
	_, err = svc.Consume(ctx, lot.ID, ConsumeLotInput{Quantity: q(30)})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, lot.ID, AdjustLotInput{Delta: q(5), Reason: "recount"})
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, lot.ID, nil)
	require.NoError(t, err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	replayed, err := ledgerSvc.Replay(ctx, lot.ID)
	require.NoError(t, err)

	got, err := svc.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, replayed.Equal(got.CurrentQuantity),
		"replayed %s, stored %s", replayed, got.CurrentQuantity)
}
