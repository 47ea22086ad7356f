package repository

import (
	"context"
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

const salesCollection = "sales"

// SaleRepository handles data access for sales
type SaleRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewSaleRepository creates a new SaleRepository
func NewSaleRepository(db *mongo.Database, timeout time.Duration) *SaleRepository {
	return &SaleRepository{coll: db.Collection(salesCollection), timeout: timeout}
}

// SaleFilter holds filters for sale listings
type SaleFilter struct {
	OwnerID primitive.ObjectID
	Status  models.SaleStatus
	Window  *utils.Window
	Page    int
	Limit   int
}

// Create inserts a sale. A collision on invoiceNumber surfaces as
// utils.ErrDuplicateInvoiceNumber.
func (r *SaleRepository) Create(ctx context.Context, s *models.Sale) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, s)
	return translate(err, "insert sale")
}

// GetByID returns a sale belonging to ownerID
func (r *SaleRepository) GetByID(ctx context.Context, ownerID, id primitive.ObjectID) (*models.Sale, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var s models.Sale
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "ownerId": ownerID}).Decode(&s); err != nil {
		return nil, translate(err, "find sale")
	}
	return &s, nil
}

// List returns one page of sales, newest first, and the total match count
func (r *SaleRepository) List(ctx context.Context, filter SaleFilter) ([]models.Sale, int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	q := bson.M{"ownerId": filter.OwnerID}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.Window != nil {
		q["createdAt"] = windowFilter(*filter.Window)
	}

	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, translate(err, "count sales")
	}

	_, limit, skip := pageBounds(filter.Page, filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, translate(err, "find sales")
	}
	sales := make([]models.Sale, 0, limit)
	if err := cur.All(ctx, &sales); err != nil {
		return nil, 0, translate(err, "decode sales")
	}
	return sales, total, nil
}

// UpdateStatus moves a Completed sale to status. Any other current status
// yields utils.ErrInvalidStatusChange, so stock is restored at most once.
func (r *SaleRepository) UpdateStatus(ctx context.Context, ownerID, id primitive.ObjectID, status models.SaleStatus, payment models.PaymentStatus) (*models.Sale, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"_id": id, "ownerId": ownerID, "status": models.SaleCompleted}
	update := bson.M{"$set": bson.M{
		"status":        status,
		"paymentStatus": payment,
		"updatedAt":     time.Now().UTC(),
	}}

	var s models.Sale
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&s)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, translate(err, "update sale status")
	}

	n, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": id, "ownerId": ownerID}, options.Count().SetLimit(1))
	if cerr != nil {
		return nil, translate(cerr, "update sale status")
	}
	if n == 0 {
		return nil, utils.ErrNotFound
	}
	return nil, utils.ErrInvalidStatusChange
}

// Totals sums completed sales created inside w.
func (r *SaleRepository) Totals(ctx context.Context, ownerID primitive.ObjectID, w utils.Window) (models.SalesTotals, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: completedIn(ownerID, w)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$total"}}},
			{Key: "itemsSold", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$sum", Value: "$items.quantity"}}}}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.SalesTotals{}, translate(err, "aggregate sales totals")
	}
	var rows []models.SalesTotals
	if err := cur.All(ctx, &rows); err != nil {
		return models.SalesTotals{}, translate(err, "decode sales totals")
	}
	if len(rows) == 0 {
		return models.SalesTotals{Revenue: decimal.Zero}, nil
	}
	return rows[0], nil
}

// DailyTotals buckets completed sales inside w per calendar day in loc.
func (r *SaleRepository) DailyTotals(ctx context.Context, ownerID primitive.ObjectID, w utils.Window, loc *time.Location) ([]models.DailySales, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	day := bson.D{{Key: "$dateToString", Value: bson.D{
		{Key: "format", Value: "%Y-%m-%d"},
		{Key: "date", Value: "$createdAt"},
		{Key: "timezone", Value: loc.String()},
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: completedIn(ownerID, w)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: day},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$total"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translate(err, "aggregate daily sales")
	}
	days := []models.DailySales{}
	if err := cur.All(ctx, &days); err != nil {
		return nil, translate(err, "decode daily sales")
	}
	return days, nil
}

func completedIn(ownerID primitive.ObjectID, w utils.Window) bson.M {
	return bson.M{
		"ownerId":   ownerID,
		"status":    models.SaleCompleted,
		"createdAt": windowFilter(w),
	}
}

// windowFilter is the half-open [Start, End) createdAt range.
func windowFilter(w utils.Window) bson.M {
	return bson.M{"$gte": w.Start, "$lt": w.End}
}
