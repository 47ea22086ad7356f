package repository

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

const productsCollection = "products"

// lowStockExpr is the server-side form of models.IsLowStock.
var lowStockExpr = bson.D{{Key: "$lte", Value: bson.A{"$quantity", "$reorderPoint"}}}

// ProductRepository handles data access for products.
type ProductRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *mongo.Database, timeout time.Duration) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection), timeout: timeout}
}

// ProductFilter holds filters for product listings. Empty strings are ignored.
type ProductFilter struct {
	OwnerID  primitive.ObjectID
	Category string
	Size     string
	Brand    string
	Search   string
	IsActive *bool
	LowStock bool
	Page     int
	Limit    int
}

// ProductUpdate lists editable fields; nil pointers are left unchanged.
// Quantity is absent on purpose: it only changes through AdjustStock.
type ProductUpdate struct {
	SKU             *string
	Barcode         *string
	Name            *string
	Description     *string
	Brand           *string
	Category        *models.Category
	Size            *models.Size
	Color           *string
	Price           *decimal.Decimal
	CostPrice       *decimal.Decimal
	ReorderPoint    *int
	ReorderQuantity *int
	IsActive        *bool
	ImageURL        *string
}

// Create inserts a new product. The caller refreshes derived flags first.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := r.coll.InsertOne(ctx, p)
	return translate(err, "insert product")
}

// GetByID returns a product belonging to ownerID.
func (r *ProductRepository) GetByID(ctx context.Context, ownerID, id primitive.ObjectID) (*models.Product, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var p models.Product
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "ownerId": ownerID}).Decode(&p)
	if err != nil {
		return nil, translate(err, "find product")
	}
	return &p, nil
}

// List returns one page of products matching filter and the total match count.
func (r *ProductRepository) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	q := bson.M{"ownerId": filter.OwnerID}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	if filter.Size != "" {
		q["size"] = filter.Size
	}
	if filter.Brand != "" {
		q["brand"] = bson.M{"$regex": "^" + regexp.QuoteMeta(filter.Brand) + "$", "$options": "i"}
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"sku": pattern},
			bson.M{"brand": pattern},
			bson.M{"barcode": pattern},
		}
	}
	if filter.IsActive != nil {
		q["isActive"] = *filter.IsActive
	}

	sort := bson.D{{Key: "createdAt", Value: -1}}
	if filter.LowStock {
		q["lowStockAlert"] = true
		sort = bson.D{{Key: "quantity", Value: 1}, {Key: "name", Value: 1}}
	}

	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, translate(err, "count products")
	}

	_, limit, skip := pageBounds(filter.Page, filter.Limit)
	cur, err := r.coll.Find(ctx, q, options.Find().SetSort(sort).SetSkip(skip).SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, translate(err, "find products")
	}
	products := make([]models.Product, 0, limit)
	if err := cur.All(ctx, &products); err != nil {
		return nil, 0, translate(err, "decode products")
	}
	return products, total, nil
}

// Update applies the non-nil fields of u and recomputes lowStockAlert in the
// same write, so a reorder point change can never leave the flag stale.
func (r *ProductRepository) Update(ctx context.Context, ownerID, id primitive.ObjectID, u ProductUpdate) (*models.Product, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	set := bson.D{{Key: "updatedAt", Value: literal(time.Now().UTC())}}
	add := func(key string, v interface{}) { set = append(set, bson.E{Key: key, Value: literal(v)}) }
	if u.SKU != nil {
		add("sku", *u.SKU)
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Brand != nil {
		add("brand", *u.Brand)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.Size != nil {
		add("size", *u.Size)
	}
	if u.Color != nil {
		add("color", *u.Color)
	}
	if u.Price != nil {
		add("price", *u.Price)
	}
	if u.CostPrice != nil {
		add("costPrice", *u.CostPrice)
	}
	if u.ReorderPoint != nil {
		add("reorderPoint", *u.ReorderPoint)
	}
	if u.ReorderQuantity != nil {
		add("reorderQuantity", *u.ReorderQuantity)
	}
	if u.IsActive != nil {
		add("isActive", *u.IsActive)
	}
	if u.ImageURL != nil {
		add("imageUrl", *u.ImageURL)
	}

	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}
	if u.Barcode != nil {
		// An empty barcode removes the field so the partial unique index ignores it.
		if *u.Barcode == "" {
			pipeline = append(pipeline, bson.D{{Key: "$unset", Value: "barcode"}})
		} else {
			pipeline = append(pipeline, bson.D{{Key: "$set", Value: bson.D{{Key: "barcode", Value: literal(*u.Barcode)}}}})
		}
	}
	pipeline = append(pipeline, bson.D{{Key: "$set", Value: bson.D{{Key: "lowStockAlert", Value: lowStockExpr}}}})

	var p models.Product
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "ownerId": ownerID},
		pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		return nil, translate(err, "update product")
	}
	return &p, nil
}

// AdjustStock atomically moves quantity by delta in the direction of op and
// recomputes lowStockAlert in the same document write. A subtract only
// matches while quantity >= delta, so concurrent sales of the same product
// can never drive stock negative or lose an update. It returns the updated
// product and the quantity before the change.
func (r *ProductRepository) AdjustStock(ctx context.Context, ownerID, id primitive.ObjectID, delta int, op models.StockOperation) (*models.Product, int, error) {
	if !op.Valid() {
		return nil, 0, utils.NewValidationError("operation", "must be 'add' or 'subtract'")
	}
	if delta < 1 {
		return nil, 0, utils.NewValidationError("quantity", "must be at least 1")
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"_id": id, "ownerId": ownerID}
	if op == models.StockSubtract {
		filter["quantity"] = bson.M{"$gte": delta}
	}
	signed := op.Signed(delta)
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "quantity", Value: bson.D{{Key: "$add", Value: bson.A{"$quantity", signed}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
		{{Key: "$set", Value: bson.D{{Key: "lowStockAlert", Value: lowStockExpr}}}},
	}

	var p models.Product
	err := r.coll.FindOneAndUpdate(ctx, filter, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err == nil {
		return &p, p.Quantity - signed, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, translate(err, "adjust stock")
	}

	// No match: either the product is missing or there was not enough stock.
	n, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": id, "ownerId": ownerID}, options.Count().SetLimit(1))
	if cerr != nil {
		return nil, 0, translate(cerr, "adjust stock")
	}
	if n == 0 {
		return nil, 0, utils.ErrNotFound
	}
	return nil, 0, utils.ErrInsufficientStock
}

// CountActive returns the number of active products of an owner.
func (r *ProductRepository) CountActive(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"ownerId": ownerID, "isActive": true})
	return n, translate(err, "count active products")
}

// CountLowStock returns the number of active products with lowStockAlert set.
func (r *ProductRepository) CountLowStock(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"ownerId": ownerID, "isActive": true, "lowStockAlert": true})
	return n, translate(err, "count low stock products")
}

// ReconcileLowStock rewrites lowStockAlert on every product whose stored flag
// disagrees with its quantity and reorder point. It returns how many changed.
func (r *ProductRepository) ReconcileLowStock(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"$expr": bson.M{"$ne": bson.A{"$lowStockAlert", lowStockExpr}}}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: "lowStockAlert", Value: lowStockExpr}}}}}

	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, translate(err, "reconcile low stock")
	}
	return res.ModifiedCount, nil
}
