package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// Category enumerates the apparel taxonomy.
type Category string

const (
	CategoryShirts      Category = "Shirts"
	CategoryTShirts     Category = "T-Shirts"
	CategoryPants       Category = "Pants"
	CategoryJeans       Category = "Jeans"
	CategoryShorts      Category = "Shorts"
	CategoryDresses     Category = "Dresses"
	CategorySkirts      Category = "Skirts"
	CategoryJackets     Category = "Jackets"
	CategorySweaters    Category = "Sweaters"
	CategoryHoodies     Category = "Hoodies"
	CategoryActivewear  Category = "Activewear"
	CategoryUnderwear   Category = "Underwear"
	CategorySocks       Category = "Socks"
	CategoryAccessories Category = "Accessories"
	CategoryShoes       Category = "Shoes"
	CategoryOther       Category = "Other"
)

var categories = map[Category]bool{
	CategoryShirts: true, CategoryTShirts: true, CategoryPants: true, CategoryJeans: true,
	CategoryShorts: true, CategoryDresses: true, CategorySkirts: true, CategoryJackets: true,
	CategorySweaters: true, CategoryHoodies: true, CategoryActivewear: true, CategoryUnderwear: true,
	CategorySocks: true, CategoryAccessories: true, CategoryShoes: true, CategoryOther: true,
}

// Valid reports whether c belongs to the taxonomy.
func (c Category) Valid() bool { return categories[c] }

// Size enumerates garment sizes, letter and waist.
type Size string

var sizes = map[Size]bool{
	"XS": true, "S": true, "M": true, "L": true, "XL": true, "XXL": true, "XXXL": true,
	"Free Size": true, "28": true, "30": true, "32": true, "34": true, "36": true,
	"38": true, "40": true, "42": true,
}

// Valid reports whether s is a known size.
func (s Size) Valid() bool { return sizes[s] }

// StockStatus is the coarse stock level shown in the UI.
type StockStatus string

const (
	StockCritical StockStatus = "critical"
	StockLow      StockStatus = "low"
	StockInStock  StockStatus = "in-stock"
)

// criticalQuantity is the level at or below which stock is critical regardless of reorder point.
const criticalQuantity = 2

// Defaults applied when a product is created without explicit thresholds.
const (
	DefaultReorderPoint    = 5
	DefaultReorderQuantity = 10
)

// StockOperation tags the direction of a stock adjustment.
type StockOperation string

const (
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
)

// Valid reports whether op is add or subtract.
func (op StockOperation) Valid() bool { return op == StockAdd || op == StockSubtract }

// Signed returns delta with the sign implied by op.
func (op StockOperation) Signed(delta int) int {
	if op == StockSubtract {
		return -delta
	}
	return delta
}

// Product is an apparel item held in stock by a store.
type Product struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	OwnerID         primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	SKU             string             `bson:"sku" json:"sku"`
	Barcode         string             `bson:"barcode,omitempty" json:"barcode,omitempty"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	Brand           string             `bson:"brand" json:"brand"`
	Category        Category           `bson:"category" json:"category"`
	Size            Size               `bson:"size" json:"size"`
	Color           string             `bson:"color" json:"color"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	Price           decimal.Decimal    `bson:"price" json:"price"`
	CostPrice       decimal.Decimal    `bson:"costPrice" json:"costPrice"`
	ReorderPoint    int                `bson:"reorderPoint" json:"reorderPoint"`
	ReorderQuantity int                `bson:"reorderQuantity" json:"reorderQuantity"`
	LowStockAlert   bool               `bson:"lowStockAlert" json:"lowStockAlert"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	ImageURL        string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedBy       primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`

	// Derived, never persisted. Filled by RefreshStockFlags.
	StockStatus  StockStatus     `bson:"-" json:"stockStatus"`
	ProfitMargin decimal.Decimal `bson:"-" json:"profitMargin"`
}

// IsLowStock is the threshold comparison behind lowStockAlert.
func IsLowStock(quantity, reorderPoint int) bool {
	return quantity <= reorderPoint
}

// StockStatusFor classifies a quantity against its reorder point.
func StockStatusFor(quantity, reorderPoint int) StockStatus {
	switch {
	case quantity <= criticalQuantity:
		return StockCritical
	case quantity <= reorderPoint:
		return StockLow
	default:
		return StockInStock
	}
}

// ProfitMargin returns (price - cost) / cost * 100 rounded to 2 places, or 0 without a cost.
func ProfitMargin(price, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(cost).Div(cost).Mul(decimal.NewFromInt(100)).Round(2)
}

// RefreshStockFlags recomputes every field derived from quantity, reorder
// point and prices. Call it after any change to those fields.
func RefreshStockFlags(p *Product) {
	p.LowStockAlert = IsLowStock(p.Quantity, p.ReorderPoint)
	p.StockStatus = StockStatusFor(p.Quantity, p.ReorderPoint)
	p.ProfitMargin = ProfitMargin(p.Price, p.CostPrice)
}

// ApplyStockAdjustment changes p.Quantity by delta in the direction of op and
// refreshes the flags. On ErrInsufficientStock p is left untouched.
func ApplyStockAdjustment(p *Product, delta int, op StockOperation) error {
	if !op.Valid() {
		return utils.NewValidationError("operation", "must be 'add' or 'subtract'")
	}
	if delta < 1 {
		return utils.NewValidationError("quantity", "must be at least 1")
	}
	next := p.Quantity + op.Signed(delta)
	if next < 0 {
		return utils.ErrInsufficientStock
	}
	p.Quantity = next
	RefreshStockFlags(p)
	return nil
}
