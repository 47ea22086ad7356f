package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/metrics"
	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/repository"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

const defaultMovementLimit = 50

// ProductService provides product-related business logic. It is the only
// path through which stock quantities change.
type ProductService struct {
	products  ProductStore
	movements MovementStore
	users     UserStore
	cache     DashboardCache
	notifier  Notifier
	images    ImageStore
	metrics   *metrics.Metrics
}

// NewProductService constructs a ProductService. cache, notifier, images and
// m may be nil.
func NewProductService(
	products ProductStore,
	movements MovementStore,
	users UserStore,
	cache DashboardCache,
	notifier Notifier,
	images ImageStore,
	m *metrics.Metrics,
) *ProductService {
	if cache == nil {
		cache = noopCache{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ProductService{
		products:  products,
		movements: movements,
		users:     users,
		cache:     cache,
		notifier:  notifier,
		images:    images,
		metrics:   m,
	}
}

// CreateProductRequest input
type CreateProductRequest struct {
	SKU             string          `json:"sku" binding:"required"`
	Barcode         string          `json:"barcode"`
	Name            string          `json:"name" binding:"required"`
	Description     string          `json:"description"`
	Brand           string          `json:"brand"`
	Category        models.Category `json:"category" binding:"required"`
	Size            models.Size     `json:"size" binding:"required"`
	Color           string          `json:"color"`
	Quantity        int             `json:"quantity" binding:"min=0"`
	Price           decimal.Decimal `json:"price"`
	CostPrice       decimal.Decimal `json:"costPrice"`
	ReorderPoint    *int            `json:"reorderPoint"`
	ReorderQuantity *int            `json:"reorderQuantity"`
}

// UpdateProductRequest input. Nil fields are left unchanged. A quantity
// change is recorded as a manual stock adjustment.
type UpdateProductRequest struct {
	SKU             *string          `json:"sku"`
	Barcode         *string          `json:"barcode"`
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Brand           *string          `json:"brand"`
	Category        *models.Category `json:"category"`
	Size            *models.Size     `json:"size"`
	Color           *string          `json:"color"`
	Quantity        *int             `json:"quantity"`
	Price           *decimal.Decimal `json:"price"`
	CostPrice       *decimal.Decimal `json:"costPrice"`
	ReorderPoint    *int             `json:"reorderPoint"`
	ReorderQuantity *int             `json:"reorderQuantity"`
	IsActive        *bool            `json:"isActive"`
}

// StockAdjustmentRequest input
type StockAdjustmentRequest struct {
	Quantity  int                   `json:"quantity" binding:"required"`
	Operation models.StockOperation `json:"operation" binding:"required"`
	Reason    models.MovementReason `json:"reason"`
}

// ProductQuery filters product listings. Active is "", "true", "false" or
// "all"; the empty value lists active products only.
type ProductQuery struct {
	Category string
	Size     string
	Brand    string
	Search   string
	Active   string
	LowStock bool
	Page     int
	Limit    int
}

// stockChange is one call to the stock-adjustment operation.
type stockChange struct {
	ownerID   primitive.ObjectID
	actorID   primitive.ObjectID
	productID primitive.ObjectID
	delta     int
	op        models.StockOperation
	reason    models.MovementReason
	saleID    *primitive.ObjectID
}

// List returns products of the actor's store and pagination info.
func (s *ProductService) List(ctx context.Context, actor *models.User, q ProductQuery) ([]models.Product, utils.Pagination, error) {
	filter := repository.ProductFilter{
		OwnerID:  actor.OwnerID,
		Category: q.Category,
		Size:     q.Size,
		Brand:    q.Brand,
		Search:   strings.TrimSpace(q.Search),
		LowStock: q.LowStock,
		Page:     q.Page,
		Limit:    q.Limit,
	}
	switch q.Active {
	case "", "true":
		active := true
		filter.IsActive = &active
	case "false":
		inactive := false
		filter.IsActive = &inactive
	case "all":
	default:
		return nil, utils.Pagination{}, utils.NewValidationError("isActive", "must be true, false or all")
	}
	return s.list(ctx, filter)
}

// LowStock returns active products at or below their reorder point, lowest quantity first.
func (s *ProductService) LowStock(ctx context.Context, actor *models.User, page, limit int) ([]models.Product, utils.Pagination, error) {
	active := true
	return s.list(ctx, repository.ProductFilter{
		OwnerID:  actor.OwnerID,
		IsActive: &active,
		LowStock: true,
		Page:     page,
		Limit:    limit,
	})
}

func (s *ProductService) list(ctx context.Context, filter repository.ProductFilter) ([]models.Product, utils.Pagination, error) {
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, utils.Pagination{}, err
	}
	for i := range products {
		models.RefreshStockFlags(&products[i])
	}
	return products, utils.NewPagination(filter.Page, filter.Limit, total), nil
}

// Get returns a single product of the actor's store.
func (s *ProductService) Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Product, error) {
	p, err := s.products.GetByID(ctx, actor.OwnerID, id)
	if err != nil {
		return nil, err
	}
	models.RefreshStockFlags(p)
	return p, nil
}

// Create validates and stores a new product. Reorder point defaults to the
// store's low stock threshold.
func (s *ProductService) Create(ctx context.Context, actor *models.User, req *CreateProductRequest) (*models.Product, error) {
	p := &models.Product{
		OwnerID:         actor.OwnerID,
		SKU:             strings.TrimSpace(req.SKU),
		Barcode:         strings.TrimSpace(req.Barcode),
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		Brand:           strings.TrimSpace(req.Brand),
		Category:        req.Category,
		Size:            req.Size,
		Color:           strings.TrimSpace(req.Color),
		Quantity:        req.Quantity,
		Price:           req.Price.Round(2),
		CostPrice:       req.CostPrice.Round(2),
		ReorderPoint:    s.defaultReorderPoint(ctx, actor),
		ReorderQuantity: models.DefaultReorderQuantity,
		IsActive:        true,
		CreatedBy:       actor.ID,
	}
	if req.ReorderPoint != nil {
		p.ReorderPoint = *req.ReorderPoint
	}
	if req.ReorderQuantity != nil {
		p.ReorderQuantity = *req.ReorderQuantity
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	models.RefreshStockFlags(p)
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, actor.OwnerID.Hex())
	log.Info().
		Str("product_id", p.ID.Hex()).
		Str("owner_id", p.OwnerID.Hex()).
		Str("sku", p.SKU).
		Int("quantity", p.Quantity).
		Msg("product created")
	return p, nil
}

// Update edits product fields. A quantity change is applied first, as a
// relative stock adjustment with reason manual measured against the quantity
// read at the start of the request, so sales landing meanwhile still count.
// If the field edit then fails the adjustment is reversed.
func (s *ProductService) Update(ctx context.Context, actor *models.User, id primitive.ObjectID, req *UpdateProductRequest) (*models.Product, error) {
	current, err := s.products.GetByID(ctx, actor.OwnerID, id)
	if err != nil {
		return nil, err
	}

	// Validate the merged result before touching anything.
	merged := *current
	u := repository.ProductUpdate{
		SKU:             trimmed(req.SKU),
		Barcode:         trimmed(req.Barcode),
		Name:            trimmed(req.Name),
		Description:     trimmed(req.Description),
		Brand:           trimmed(req.Brand),
		Category:        req.Category,
		Size:            req.Size,
		Color:           trimmed(req.Color),
		Price:           rounded(req.Price),
		CostPrice:       rounded(req.CostPrice),
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
		IsActive:        req.IsActive,
	}
	applyProductUpdate(&merged, u)
	if req.Quantity != nil {
		merged.Quantity = *req.Quantity
	}
	if err := validateProduct(&merged); err != nil {
		return nil, err
	}

	var (
		updated *models.Product
		change  *stockChange
	)
	if req.Quantity != nil && *req.Quantity != current.Quantity {
		delta := *req.Quantity - current.Quantity
		op := models.StockAdd
		if delta < 0 {
			op, delta = models.StockSubtract, -delta
		}
		change = &stockChange{
			ownerID:   actor.OwnerID,
			actorID:   actor.ID,
			productID: id,
			delta:     delta,
			op:        op,
			reason:    models.ReasonManual,
		}
		updated, err = s.adjust(ctx, *change)
		if err != nil {
			return nil, err
		}
	}

	if change == nil || hasFieldChanges(u) {
		updated, err = s.products.Update(ctx, actor.OwnerID, id, u)
		if err != nil {
			if change != nil {
				s.revertAdjustment(ctx, *change)
			}
			return nil, err
		}
	}

	s.cache.Invalidate(ctx, actor.OwnerID.Hex())
	models.RefreshStockFlags(updated)
	return updated, nil
}

// revertAdjustment undoes c after a failed field edit.
func (s *ProductService) revertAdjustment(ctx context.Context, c stockChange) {
	c.op = opposite(c.op)
	if _, err := s.adjust(context.WithoutCancel(ctx), c); err != nil {
		log.Error().
			Err(err).
			Str("product_id", c.productID.Hex()).
			Int("quantity", c.delta).
			Msg("failed to revert stock adjustment after product update error")
	}
}

func opposite(op models.StockOperation) models.StockOperation {
	if op == models.StockAdd {
		return models.StockSubtract
	}
	return models.StockAdd
}

func hasFieldChanges(u repository.ProductUpdate) bool {
	return u.SKU != nil || u.Barcode != nil || u.Name != nil || u.Description != nil ||
		u.Brand != nil || u.Category != nil || u.Size != nil || u.Color != nil ||
		u.Price != nil || u.CostPrice != nil || u.ReorderPoint != nil ||
		u.ReorderQuantity != nil || u.IsActive != nil || u.ImageURL != nil
}

// Deactivate hides a product from sale. Products are never deleted.
func (s *ProductService) Deactivate(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Product, error) {
	inactive := false
	p, err := s.products.Update(ctx, actor.OwnerID, id, repository.ProductUpdate{IsActive: &inactive})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, actor.OwnerID.Hex())
	models.RefreshStockFlags(p)
	log.Info().Str("product_id", id.Hex()).Str("owner_id", actor.OwnerID.Hex()).Msg("product deactivated")
	return p, nil
}

// AdjustStock applies a manual add or subtract to a product.
func (s *ProductService) AdjustStock(ctx context.Context, actor *models.User, id primitive.ObjectID, req *StockAdjustmentRequest) (*models.Product, error) {
	reason := req.Reason
	switch reason {
	case "":
		reason = models.ReasonManual
		if req.Operation == models.StockAdd {
			reason = models.ReasonRestock
		}
	case models.ReasonManual, models.ReasonRestock:
	default:
		return nil, utils.NewValidationError("reason", "must be 'manual' or 'restock'")
	}

	p, err := s.adjust(ctx, stockChange{
		ownerID:   actor.OwnerID,
		actorID:   actor.ID,
		productID: id,
		delta:     req.Quantity,
		op:        req.Operation,
		reason:    reason,
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, actor.OwnerID.Hex())
	return p, nil
}

// Movements returns the newest stock ledger entries of a product.
func (s *ProductService) Movements(ctx context.Context, actor *models.User, id primitive.ObjectID, limit int) ([]models.StockMovement, error) {
	if _, err := s.products.GetByID(ctx, actor.OwnerID, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	return s.movements.ListByProduct(ctx, actor.OwnerID, id, limit)
}

// UploadImage stores an image for a product and records its URL.
func (s *ProductService) UploadImage(ctx context.Context, actor *models.User, id primitive.ObjectID, filename, contentType string, data []byte) (*models.Product, error) {
	if s.images == nil {
		return nil, utils.ErrStorageDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, utils.NewValidationError("image", "must be an image")
	}
	if _, err := s.products.GetByID(ctx, actor.OwnerID, id); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("products/%s/%s/%s%s", actor.OwnerID.Hex(), id.Hex(), uuid.NewString(), strings.ToLower(path.Ext(filename)))
	url, err := s.images.Upload(ctx, key, data, contentType)
	if err != nil {
		return nil, err
	}

	p, err := s.products.Update(ctx, actor.OwnerID, id, repository.ProductUpdate{ImageURL: &url})
	if err != nil {
		return nil, err
	}
	models.RefreshStockFlags(p)
	return p, nil
}

// adjust runs the stock-adjustment operation, appends the ledger entry and
// raises a low stock event when the product crosses its reorder point.
func (s *ProductService) adjust(ctx context.Context, c stockChange) (*models.Product, error) {
	p, prev, err := s.products.AdjustStock(ctx, c.ownerID, c.productID, c.delta, c.op)
	if err != nil {
		s.metrics.StockAdjusted(string(c.op), outcomeOf(err))
		return nil, err
	}
	s.metrics.StockAdjusted(string(c.op), "ok")
	models.RefreshStockFlags(p)

	movement := &models.StockMovement{
		ProductID:        p.ID,
		OwnerID:          c.ownerID,
		Operation:        c.op,
		Quantity:         c.delta,
		PreviousQuantity: prev,
		NewQuantity:      p.Quantity,
		Reason:           c.reason,
		SaleID:           c.saleID,
		ActorID:          c.actorID,
	}
	if err := s.movements.Create(ctx, movement); err != nil {
		// The quantity has already moved; losing the ledger line is not worth failing the request.
		log.Error().Err(err).Str("product_id", p.ID.Hex()).Msg("failed to record stock movement")
	}

	if p.LowStockAlert && !models.IsLowStock(prev, p.ReorderPoint) {
		s.notifier.NotifyLowStock(c.ownerID.Hex(), p)
		s.metrics.LowStock()
		log.Warn().
			Str("product_id", p.ID.Hex()).
			Str("sku", p.SKU).
			Int("quantity", p.Quantity).
			Int("reorder_point", p.ReorderPoint).
			Msg("product reached low stock")
	}
	return p, nil
}

func (s *ProductService) defaultReorderPoint(ctx context.Context, actor *models.User) int {
	owner, err := s.users.GetByID(ctx, actor.OwnerID)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			log.Warn().Err(err).Str("owner_id", actor.OwnerID.Hex()).Msg("failed to load store settings")
		}
		return models.DefaultReorderPoint
	}
	if owner.Settings.LowStockThreshold > 0 {
		return owner.Settings.LowStockThreshold
	}
	return models.DefaultReorderPoint
}

func applyProductUpdate(p *models.Product, u repository.ProductUpdate) {
	if u.SKU != nil {
		p.SKU = *u.SKU
	}
	if u.Barcode != nil {
		p.Barcode = *u.Barcode
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Size != nil {
		p.Size = *u.Size
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.CostPrice != nil {
		p.CostPrice = *u.CostPrice
	}
	if u.ReorderPoint != nil {
		p.ReorderPoint = *u.ReorderPoint
	}
	if u.ReorderQuantity != nil {
		p.ReorderQuantity = *u.ReorderQuantity
	}
}

func validateProduct(p *models.Product) error {
	v := &utils.ValidationError{}
	if p.SKU == "" {
		v.Add("sku", "is required")
	}
	if p.Name == "" {
		v.Add("name", "is required")
	}
	if !p.Category.Valid() {
		v.Add("category", "is not a known category")
	}
	if !p.Size.Valid() {
		v.Add("size", "is not a known size")
	}
	if p.Quantity < 0 {
		v.Add("quantity", "must not be negative")
	}
	if p.Price.IsNegative() {
		v.Add("price", "must not be negative")
	}
	if p.CostPrice.IsNegative() {
		v.Add("costPrice", "must not be negative")
	}
	if p.ReorderPoint < 0 {
		v.Add("reorderPoint", "must not be negative")
	}
	if p.ReorderQuantity < 0 {
		v.Add("reorderQuantity", "must not be negative")
	}
	return v.OrNil()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, utils.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, utils.ErrNotFound):
		return "not_found"
	case errors.Is(err, utils.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func rounded(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := d.Round(2)
	return &r
}
