package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

func TestCreateProductAppliesDefaults(t *testing.T) {
	f := newFixture()
	owner := *f.owner
	owner.Settings.LowStockThreshold = 7
	f.users.set(&owner)

	p, err := f.productSvc.Create(context.Background(), f.owner, &CreateProductRequest{
		SKU:       " JN-32-BLU ",
		Name:      "Slim Jeans",
		Category:  models.CategoryJeans,
		Size:      models.Size("32"),
		Quantity:  6,
		Price:     decimal.RequireFromString("49.999"),
		CostPrice: decimal.RequireFromString("20"),
	})
	require.NoError(t, err)

	assert.Equal(t, "JN-32-BLU", p.SKU)
	assert.Equal(t, 7, p.ReorderPoint)
	assert.Equal(t, models.DefaultReorderQuantity, p.ReorderQuantity)
	assert.True(t, p.LowStockAlert)
	assert.Equal(t, models.StockLow, p.StockStatus)
	assert.True(t, decimal.RequireFromString("50").Equal(p.Price))
	assert.True(t, decimal.RequireFromString("150").Equal(p.ProfitMargin))
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture()
	_, err := f.productSvc.Create(context.Background(), f.owner, &CreateProductRequest{
		SKU:      "X",
		Name:     "Thing",
		Category: "Hats",
		Size:     "Giant",
		Quantity: -1,
	})
	require.ErrorIs(t, err, utils.ErrValidation)

	var v *utils.ValidationError
	require.ErrorAs(t, err, &v)
	fields := map[string]bool{}
	for _, fe := range v.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["category"])
	assert.True(t, fields["size"])
	assert.True(t, fields["quantity"])
}

func TestAdjustStockScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.addProduct("TEE-1", 10, 5, "19.99")

	updated, err := f.productSvc.AdjustStock(ctx, f.owner, p.ID, &StockAdjustmentRequest{Quantity: 6, Operation: models.StockSubtract})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.True(t, updated.LowStockAlert)
	assert.Equal(t, []string{"TEE-1"}, f.notifier.lowStock)

	_, err = f.productSvc.AdjustStock(ctx, f.owner, p.ID, &StockAdjustmentRequest{Quantity: 10, Operation: models.StockSubtract})
	assert.ErrorIs(t, err, utils.ErrInsufficientStock)
	assert.Equal(t, 4, f.products.quantity(p.ID))

	updated, err = f.productSvc.AdjustStock(ctx, f.owner, p.ID, &StockAdjustmentRequest{Quantity: 2, Operation: models.StockSubtract})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
	assert.Equal(t, models.StockCritical, updated.StockStatus)
	assert.Len(t, f.notifier.lowStock, 1, "already low, no second event")

	moves := f.movements.all()
	require.Len(t, moves, 2)
	assert.Equal(t, 10, moves[0].PreviousQuantity)
	assert.Equal(t, 4, moves[0].NewQuantity)
	assert.Equal(t, models.ReasonManual, moves[0].Reason)
	assert.Equal(t, f.owner.ID, moves[0].ActorID)

	_, err = f.productSvc.AdjustStock(ctx, f.owner, p.ID, &StockAdjustmentRequest{Quantity: 0, Operation: models.StockAdd})
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = f.productSvc.AdjustStock(ctx, f.owner, p.ID, &StockAdjustmentRequest{Quantity: 1, Operation: "multiply"})
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = f.productSvc.AdjustStock(ctx, f.owner, p.ID, &StockAdjustmentRequest{Quantity: 1, Operation: models.StockAdd, Reason: models.ReasonSale})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestAdjustStockRestockReasonDefault(t *testing.T) {
	f := newFixture()
	p := f.addProduct("TEE-2", 1, 5, "10")

	updated, err := f.productSvc.AdjustStock(context.Background(), f.owner, p.ID, &StockAdjustmentRequest{Quantity: 20, Operation: models.StockAdd})
	require.NoError(t, err)
	assert.Equal(t, 21, updated.Quantity)
	assert.False(t, updated.LowStockAlert)
	assert.Equal(t, models.ReasonRestock, f.movements.all()[0].Reason)
}

func TestAdjustStockConcurrentSubtractsNeverOversell(t *testing.T) {
	f := newFixture()
	p := f.addProduct("TEE-RACE", 50, 5, "10")

	var ok, short int64
	var wg sync.WaitGroup
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.productSvc.AdjustStock(context.Background(), f.owner, p.ID, &StockAdjustmentRequest{Quantity: 1, Operation: models.StockSubtract})
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case assert.ErrorIs(t, err, utils.ErrInsufficientStock):
				atomic.AddInt64(&short, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), ok)
	assert.Equal(t, int64(70), short)
	assert.Equal(t, 0, f.products.quantity(p.ID))
	assert.Len(t, f.movements.all(), 50)
}

func TestUpdateProductQuantityGoesThroughAdjustment(t *testing.T) {
	f := newFixture()
	p := f.addProduct("TEE-3", 10, 5, "10")

	qty := 3
	name := "Renamed Tee"
	updated, err := f.productSvc.Update(context.Background(), f.owner, p.ID, &UpdateProductRequest{Quantity: &qty, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)
	assert.Equal(t, name, updated.Name)
	assert.True(t, updated.LowStockAlert)

	moves := f.movements.all()
	require.Len(t, moves, 1)
	assert.Equal(t, models.StockSubtract, moves[0].Operation)
	assert.Equal(t, 7, moves[0].Quantity)
	assert.Equal(t, models.ReasonManual, moves[0].Reason)
}

func TestUpdateQuantityCountsSalesSinceRead(t *testing.T) {
	f := newFixture()
	p := f.addProduct("TEE-6", 10, 5, "10")
	f.products.afterGet = func(id primitive.ObjectID) {
		f.products.afterGet = nil
		_, _, err := f.products.AdjustStock(context.Background(), f.owner.OwnerID, id, 2, models.StockSubtract)
		require.NoError(t, err)
	}

	qty := 4
	updated, err := f.productSvc.Update(context.Background(), f.owner, p.ID, &UpdateProductRequest{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity, "the edit is relative to what the editor saw")

	moves := f.movements.all()
	require.Len(t, moves, 1)
	assert.Equal(t, 6, moves[0].Quantity)
	assert.Equal(t, 8, moves[0].PreviousQuantity)
}

func TestUpdateInsufficientStockLeavesFieldsUntouched(t *testing.T) {
	f := newFixture()
	p := f.addProduct("TEE-7", 10, 5, "10")
	f.products.afterGet = func(id primitive.ObjectID) {
		f.products.afterGet = nil
		_, _, err := f.products.AdjustStock(context.Background(), f.owner.OwnerID, id, 8, models.StockSubtract)
		require.NoError(t, err)
	}

	qty := 1
	name := "Should Not Stick"
	_, err := f.productSvc.Update(context.Background(), f.owner, p.ID, &UpdateProductRequest{Quantity: &qty, Name: &name})
	require.ErrorIs(t, err, utils.ErrInsufficientStock)

	got, err := f.products.GetByID(context.Background(), f.owner.OwnerID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Item TEE-7", got.Name)
	assert.Equal(t, 2, got.Quantity)
	assert.Empty(t, f.movements.all())
}

func TestUpdateFieldFailureRevertsQuantity(t *testing.T) {
	f := newFixture()
	f.addProduct("TEE-8", 10, 5, "10")
	p := f.addProduct("TEE-9", 10, 5, "10")

	qty := 25
	sku := "TEE-8"
	_, err := f.productSvc.Update(context.Background(), f.owner, p.ID, &UpdateProductRequest{Quantity: &qty, SKU: &sku})
	var dup *utils.DuplicateKeyError
	require.ErrorAs(t, err, &dup)

	assert.Equal(t, 10, f.products.quantity(p.ID))
	moves := f.movements.all()
	require.Len(t, moves, 2)
	assert.Equal(t, models.StockAdd, moves[0].Operation)
	assert.Equal(t, models.StockSubtract, moves[1].Operation)
	assert.Equal(t, 15, moves[1].Quantity)
}

func TestUpdateReorderPointRecomputesAlert(t *testing.T) {
	f := newFixture()
	p := f.addProduct("TEE-4", 8, 5, "10")
	require.False(t, p.LowStockAlert)

	rp := 8
	updated, err := f.productSvc.Update(context.Background(), f.owner, p.ID, &UpdateProductRequest{ReorderPoint: &rp})
	require.NoError(t, err)
	assert.True(t, updated.LowStockAlert)
	assert.Empty(t, f.movements.all())

	neg := -1
	_, err = f.productSvc.Update(context.Background(), f.owner, p.ID, &UpdateProductRequest{ReorderPoint: &neg})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestProductsAreScopedToOwner(t *testing.T) {
	f := newFixture()
	p := f.addProduct("TEE-5", 8, 5, "10")

	stranger := &models.User{ID: p.ID, OwnerID: p.ID, Role: models.RoleAdmin}
	_, err := f.productSvc.Get(context.Background(), stranger, p.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	// Staff see the owner's catalogue.
	got, err := f.productSvc.Get(context.Background(), f.clerk, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.SKU, got.SKU)
}

func TestDeactivateAndListing(t *testing.T) {
	f := newFixture()
	a := f.addProduct("A", 1, 5, "10")
	f.addProduct("B", 50, 5, "10")

	_, err := f.productSvc.Deactivate(context.Background(), f.owner, a.ID)
	require.NoError(t, err)

	active, page, err := f.productSvc.List(context.Background(), f.owner, ProductQuery{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "B", active[0].SKU)
	assert.Equal(t, int64(1), page.TotalItems)

	all, _, err := f.productSvc.List(context.Background(), f.owner, ProductQuery{Active: "all"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	low, _, err := f.productSvc.LowStock(context.Background(), f.owner, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, low, "inactive products are not reported")

	_, _, err = f.productSvc.List(context.Background(), f.owner, ProductQuery{Active: "maybe"})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestListLowStockCombinesWithFilters(t *testing.T) {
	f := newFixture()
	f.addProduct("TEE-LOW", 1, 5, "10")
	f.addProduct("TEE-OK", 50, 5, "10")
	jeans := &models.Product{
		OwnerID:      f.owner.OwnerID,
		SKU:          "JN-LOW",
		Name:         "Low Jeans",
		Category:     models.CategoryJeans,
		Size:         models.Size("32"),
		Quantity:     2,
		Price:        decimal.NewFromInt(40),
		ReorderPoint: 5,
		IsActive:     true,
	}
	models.RefreshStockFlags(jeans)
	require.NoError(t, f.products.Create(context.Background(), jeans))

	low, page, err := f.productSvc.List(context.Background(), f.owner, ProductQuery{LowStock: true, Category: string(models.CategoryJeans)})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "JN-LOW", low[0].SKU)
	assert.Equal(t, int64(1), page.TotalItems)

	low, _, err = f.productSvc.List(context.Background(), f.owner, ProductQuery{LowStock: true})
	require.NoError(t, err)
	assert.Len(t, low, 2)
}

func TestUploadImage(t *testing.T) {
	f := newFixture()
	p := f.addProduct("IMG", 5, 2, "10")

	updated, err := f.productSvc.UploadImage(context.Background(), f.owner, p.ID, "Front.JPG", "image/jpeg", []byte{0xff, 0xd8})
	require.NoError(t, err)
	require.Len(t, f.images.keys, 1)
	key := f.images.keys[0]
	assert.True(t, strings.HasPrefix(key, "products/"+f.owner.OwnerID.Hex()+"/"+p.ID.Hex()+"/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.Equal(t, "https://cdn.example.com/"+key, updated.ImageURL)

	_, err = f.productSvc.UploadImage(context.Background(), f.owner, p.ID, "notes.txt", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, utils.ErrValidation)

	noStorage := NewProductService(f.products, f.movements, f.users, nil, nil, nil, nil)
	_, err = noStorage.UploadImage(context.Background(), f.owner, p.ID, "a.png", "image/png", []byte{1})
	assert.ErrorIs(t, err, utils.ErrStorageDisabled)
}

func TestMovementsHistory(t *testing.T) {
	f := newFixture()
	p := f.addProduct("MOV", 5, 2, "10")
	for i := 0; i < 3; i++ {
		_, err := f.productSvc.AdjustStock(context.Background(), f.owner, p.ID, &StockAdjustmentRequest{Quantity: 1, Operation: models.StockAdd})
		require.NoError(t, err)
	}

	moves, err := f.productSvc.Movements(context.Background(), f.owner, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, 8, moves[0].NewQuantity, "newest first")
}
