package lots

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lotkeeper/lotkeeper-backend/internal/ledger"
	product "github.com/lotkeeper/lotkeeper-backend/internal/products"
	"github.com/lotkeeper/lotkeeper-backend/internal/stocksync"
	"github.com/lotkeeper/lotkeeper-backend/pkg/config"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db"
	"github.com/lotkeeper/lotkeeper-backend/pkg/db/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLotTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:lots_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.Lot{},
		&models.LotTransaction{},
	))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) *Service {
	t.Helper()

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	svc, err := NewService(
		db.NewFromConn(conn),
		NewRepository(conn),
		product.NewRepository(conn),
		ledgerSvc,
		stocksync.NewSynchronizer(conn),
		nil,
		config.LotConfig{NumberPrefix: "LOT", NumberMaxRetries: 3, DefaultPageSize: 20},
	)
	require.NoError(t, err)
	return svc
}

func seedTestProduct(t *testing.T, conn *gorm.DB) *models.Product {
	t.Helper()

	prod := &models.Product{
		InternalCode: "SKU-" + uuid.NewString()[:8],
		InternalName: "Widget",
		Unit:         "kg",
		CurrentStock: decimal.Zero,
	}
	require.NoError(t, conn.Create(prod).Error)
	return prod
}

// requireAggregateConsistent asserts the cached aggregate equals the sum over
// the product's non-terminal lots.
func requireAggregateConsistent(t *testing.T, conn *gorm.DB, productID uuid.UUID) {
	t.Helper()

	err := stocksync.NewSynchronizer(conn).Verify(context.Background(), []uuid.UUID{productID})
	require.NoError(t, err)
}
