package lots

import (
	"context"
	"testing"
	"time"

	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AdjustProductStockIncrease(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	result, err := svc.AdjustProductStock(ctx, prod.ID, AdjustProductStockInput{
		Delta: q(25), Reason: "found unbooked pallet",
	})
	require.NoError(t, err)
	require.Len(t, result.Lots, 1)

	lot := result.Lots[0]
	assert.Equal(t, enums.LotSourceTypeAdjustment, lot.SourceType)
	assert.Equal(t, enums.LotStatusAvailable, lot.Status)
	assert.True(t, lot.CurrentQuantity.Equal(q(25)))

	var got models.Product
	require.NoError(t, conn.First(&got, "id = ?", prod.ID).Error)
	assert.True(t, got.CurrentStock.Equal(q(25)))
	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_AdjustProductStockDecreaseFIFO(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	older := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(30),
		SourceType: enums.LotSourceTypePurchase, ReceivedAt: &older,
	})
	require.NoError(t, err)
	second, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(50),
		SourceType: enums.LotSourceTypePurchase, ReceivedAt: &newer,
	})
	require.NoError(t, err)

	result, err := svc.AdjustProductStock(ctx, prod.ID, AdjustProductStockInput{
		Delta: q(-40), Reason: "cycle count shortage",
	})
	require.NoError(t, err)
	require.Len(t, result.Lots, 2)

	// Oldest lot drains first and is depleted; the newer one covers the rest.
	assert.Equal(t, first.ID, result.Lots[0].ID)
	assert.Equal(t, enums.LotStatusDepleted, result.Lots[0].Status)
	assert.True(t, result.Lots[0].CurrentQuantity.IsZero())

	assert.Equal(t, second.ID, result.Lots[1].ID)
	assert.True(t, result.Lots[1].CurrentQuantity.Equal(q(40)))

	var got models.Product
	require.NoError(t, conn.First(&got, "id = ?", prod.ID).Error)
	assert.True(t, got.CurrentStock.Equal(q(40)))
	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_AdjustProductStockInsufficient(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	lot, err := svc.Receive(ctx, ReceiveLotInput{
		ProductID: prod.ID, Quantity: q(10), SourceType: enums.LotSourceTypePurchase,
	})
	require.NoError(t, err)

	// Reserved lots are not draining candidates.
	_, err = svc.Reserve(ctx, lot.ID, nil)
	require.NoError(t, err)

	_, err = svc.AdjustProductStock(ctx, prod.ID, AdjustProductStockInput{
		Delta: q(-5), Reason: "shortage",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientQuantity, pkgerrors.As(err).Code())

	got, err := svc.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentQuantity.Equal(q(10)))
	requireAggregateConsistent(t, conn, prod.ID)
}

func TestService_AdjustProductStockValidation(t *testing.T) {
	conn := setupLotTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	prod := seedTestProduct(t, conn)

	_, err := svc.AdjustProductStock(ctx, prod.ID, AdjustProductStockInput{Delta: q(0), Reason: "noop"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.AdjustProductStock(ctx, prod.ID, AdjustProductStockInput{Delta: q(5)})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
