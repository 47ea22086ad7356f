package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/GTDGit/apparel_tracker/internal/database"
	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// testDB returns a fresh database with migrations applied. It skips unless
// MONGODB_TEST_URI points at a disposable MongoDB.
func testDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetRegistry(database.NewRegistry()))
	require.NoError(t, err)

	name := fmt.Sprintf("apparel_test_%d", time.Now().UnixNano())
	require.NoError(t, database.RunMigrations("file://../../migrations", uri, name))

	db := client.Database(name)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func seedProduct(t *testing.T, repo *ProductRepository, owner primitive.ObjectID, sku string, qty, reorder int) *models.Product {
	t.Helper()
	p := &models.Product{
		OwnerID:         owner,
		SKU:             sku,
		Name:            "Tee " + sku,
		Category:        models.CategoryTShirts,
		Size:            models.Size("M"),
		Quantity:        qty,
		Price:           decimal.RequireFromString("19.99"),
		CostPrice:       decimal.RequireFromString("8.00"),
		ReorderPoint:    reorder,
		ReorderQuantity: models.DefaultReorderQuantity,
		IsActive:        true,
	}
	models.RefreshStockFlags(p)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestProductRepositoryAdjustStock(t *testing.T) {
	db := testDB(t)
	repo := NewProductRepository(db, 5*time.Second)
	ctx := context.Background()
	owner := primitive.NewObjectID()
	p := seedProduct(t, repo, owner, "TEE-1", 10, 5)

	updated, prev, err := repo.AdjustStock(ctx, owner, p.ID, 6, models.StockSubtract)
	require.NoError(t, err)
	assert.Equal(t, 10, prev)
	assert.Equal(t, 4, updated.Quantity)
	assert.True(t, updated.LowStockAlert)

	_, _, err = repo.AdjustStock(ctx, owner, p.ID, 10, models.StockSubtract)
	assert.ErrorIs(t, err, utils.ErrInsufficientStock)

	got, err := repo.GetByID(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)

	updated, _, err = repo.AdjustStock(ctx, owner, p.ID, 20, models.StockAdd)
	require.NoError(t, err)
	assert.Equal(t, 24, updated.Quantity)
	assert.False(t, updated.LowStockAlert)

	_, _, err = repo.AdjustStock(ctx, primitive.NewObjectID(), p.ID, 1, models.StockAdd)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestProductRepositoryConcurrentSubtractNeverOversells(t *testing.T) {
	db := testDB(t)
	repo := NewProductRepository(db, 5*time.Second)
	owner := primitive.NewObjectID()
	p := seedProduct(t, repo, owner, "TEE-RACE", 50, 5)

	var ok, short int64
	var wg sync.WaitGroup
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.AdjustStock(context.Background(), owner, p.ID, 1, models.StockSubtract)
			if err == nil {
				atomic.AddInt64(&ok, 1)
			} else if assert.ErrorIs(t, err, utils.ErrInsufficientStock) {
				atomic.AddInt64(&short, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), ok)
	assert.Equal(t, int64(30), short)
	got, err := repo.GetByID(context.Background(), owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.True(t, got.LowStockAlert)
}

func TestProductRepositoryUpdateRecomputesAlert(t *testing.T) {
	db := testDB(t)
	repo := NewProductRepository(db, 5*time.Second)
	ctx := context.Background()
	owner := primitive.NewObjectID()
	p := seedProduct(t, repo, owner, "TEE-2", 8, 5)
	assert.False(t, p.LowStockAlert)

	reorder := 8
	name := "$name is not a field path"
	updated, err := repo.Update(ctx, owner, p.ID, ProductUpdate{ReorderPoint: &reorder, Name: &name})
	require.NoError(t, err)
	assert.True(t, updated.LowStockAlert)
	assert.Equal(t, name, updated.Name)

	dupSKU := "TEE-3"
	seedProduct(t, repo, owner, dupSKU, 1, 5)
	_, err = repo.Update(ctx, owner, p.ID, ProductUpdate{SKU: &dupSKU})
	assert.ErrorIs(t, err, utils.ErrDuplicateKey)
}

func TestProductRepositoryReconcileLowStock(t *testing.T) {
	db := testDB(t)
	repo := NewProductRepository(db, 5*time.Second)
	ctx := context.Background()
	owner := primitive.NewObjectID()
	stale := seedProduct(t, repo, owner, "TEE-STALE", 1, 5)
	seedProduct(t, repo, owner, "TEE-FINE", 50, 5)

	_, err := db.Collection(productsCollection).UpdateByID(ctx, stale.ID, bson.M{"$set": bson.M{"lowStockAlert": false}})
	require.NoError(t, err)

	n, err := repo.ReconcileLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	low, err := repo.CountLowStock(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), low)
}

func TestSaleRepositoryWindowAndStatus(t *testing.T) {
	db := testDB(t)
	repo := NewSaleRepository(db, 5*time.Second)
	ctx := context.Background()
	owner := primitive.NewObjectID()
	w := utils.DayWindow(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), time.UTC)

	mk := func(invoice string, at time.Time, total string) *models.Sale {
		s := &models.Sale{
			OwnerID:       owner,
			InvoiceNumber: invoice,
			Total:         decimal.RequireFromString(total),
			Status:        models.SaleCompleted,
			PaymentStatus: models.PaymentPaid,
			PaymentMethod: models.PaymentCash,
			CreatedAt:     at,
		}
		require.NoError(t, repo.Create(ctx, s))
		return s
	}
	in := mk("INV-20240101-000001", time.Date(2024, 1, 1, 23, 59, 59, 999_000_000, time.UTC), "10.50")
	mk("INV-20240102-000002", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "99.00")

	totals, err := repo.Totals(ctx, owner, w)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Count)
	assert.True(t, decimal.RequireFromString("10.50").Equal(totals.Revenue))

	err = repo.Create(ctx, &models.Sale{OwnerID: owner, InvoiceNumber: in.InvoiceNumber, Status: models.SaleCompleted})
	assert.ErrorIs(t, err, utils.ErrDuplicateInvoiceNumber)

	cancelled, err := repo.UpdateStatus(ctx, owner, in.ID, models.SaleCancelled, models.PaymentRefunded)
	require.NoError(t, err)
	assert.Equal(t, models.SaleCancelled, cancelled.Status)

	_, err = repo.UpdateStatus(ctx, owner, in.ID, models.SaleRefunded, models.PaymentRefunded)
	assert.ErrorIs(t, err, utils.ErrInvalidStatusChange)

	totals, err = repo.Totals(ctx, owner, w)
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.Count)
}
