package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/GTDGit/apparel_tracker/internal/models"
)

const movementsCollection = "stock_movements"

// StockMovementRepository appends to and reads the stock ledger
type StockMovementRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewStockMovementRepository creates a new StockMovementRepository
func NewStockMovementRepository(db *mongo.Database, timeout time.Duration) *StockMovementRepository {
	return &StockMovementRepository{coll: db.Collection(movementsCollection), timeout: timeout}
}

// Create appends a movement
func (r *StockMovementRepository) Create(ctx context.Context, m *models.StockMovement) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, m)
	return translate(err, "insert stock movement")
}

// ListByProduct returns the newest movements of a product, at most limit
func (r *StockMovementRepository) ListByProduct(ctx context.Context, ownerID, productID primitive.ObjectID, limit int) ([]models.StockMovement, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, limit, _ = pageBounds(1, limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID, "productId": productID}, opts)
	if err != nil {
		return nil, translate(err, "find stock movements")
	}
	movements := []models.StockMovement{}
	if err := cur.All(ctx, &movements); err != nil {
		return nil, translate(err, "decode stock movements")
	}
	return movements, nil
}
