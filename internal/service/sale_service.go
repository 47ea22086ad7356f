package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/metrics"
	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/repository"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// maxInvoiceAttempts bounds invoice number regeneration after collisions.
const maxInvoiceAttempts = 5

var hundred = decimal.NewFromInt(100)

// SaleService records sales and keeps stock in step with them.
type SaleService struct {
	sales    SaleStore
	users    UserStore
	products *ProductService
	invoices *utils.InvoiceGenerator
	cache    DashboardCache
	notifier Notifier
	metrics  *metrics.Metrics
	loc      *time.Location
}

// NewSaleService constructs a SaleService. cache, notifier and m may be nil.
func NewSaleService(
	sales SaleStore,
	users UserStore,
	products *ProductService,
	invoices *utils.InvoiceGenerator,
	cache DashboardCache,
	notifier Notifier,
	m *metrics.Metrics,
	loc *time.Location,
) *SaleService {
	if cache == nil {
		cache = noopCache{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SaleService{
		sales:    sales,
		users:    users,
		products: products,
		invoices: invoices,
		cache:    cache,
		notifier: notifier,
		metrics:  m,
		loc:      loc,
	}
}

// SaleItemRequest is one requested line.
type SaleItemRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Discount  decimal.Decimal `json:"discount"`
}

// CreateSaleRequest input. Tax defaults to the store tax rate applied to the
// subtotal; Discount is the discount on the whole sale.
type CreateSaleRequest struct {
	InvoiceNumber string               `json:"invoiceNumber"`
	Customer      *models.Customer     `json:"customer"`
	Items         []SaleItemRequest    `json:"items" binding:"required,min=1,dive"`
	Tax           *decimal.Decimal     `json:"tax"`
	Discount      decimal.Decimal      `json:"discount"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" binding:"required"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	Notes         string               `json:"notes"`
}

// ChangeStatusRequest input
type ChangeStatusRequest struct {
	Status models.SaleStatus `json:"status" binding:"required"`
}

// SaleQuery filters sale listings. From and To are YYYY-MM-DD, inclusive.
type SaleQuery struct {
	Status string
	From   string
	To     string
	Page   int
	Limit  int
}

// Create validates a sale, takes its stock and persists it. If any item
// cannot be taken, or the sale cannot be stored, stock already taken is put
// back before the error is returned.
func (s *SaleService) Create(ctx context.Context, actor *models.User, req *CreateSaleRequest) (*models.Sale, error) {
	sale, err := s.buildSale(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	taken, err := s.takeStock(ctx, actor, sale)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, sale, sale.InvoiceNumber != ""); err != nil {
		s.restoreStock(context.WithoutCancel(ctx), actor, sale.ID, taken, models.ReasonSaleReverted)
		return nil, err
	}

	owner := actor.OwnerID.Hex()
	s.cache.Invalidate(ctx, owner)
	s.notifier.NotifySaleCreated(owner, sale)
	s.metrics.SaleCreated(sale.Total)

	log.Info().
		Str("sale_id", sale.ID.Hex()).
		Str("invoice_number", sale.InvoiceNumber).
		Str("owner_id", owner).
		Int("items", len(sale.Items)).
		Str("total", sale.Total.StringFixed(2)).
		Msg("sale created")
	return sale, nil
}

// Get returns a sale of the actor's store.
func (s *SaleService) Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Sale, error) {
	return s.sales.GetByID(ctx, actor.OwnerID, id)
}

// List returns sales of the actor's store, newest first.
func (s *SaleService) List(ctx context.Context, actor *models.User, q SaleQuery) ([]models.Sale, utils.Pagination, error) {
	filter := repository.SaleFilter{
		OwnerID: actor.OwnerID,
		Page:    q.Page,
		Limit:   q.Limit,
	}
	if q.Status != "" {
		status := models.SaleStatus(q.Status)
		if !validSaleStatus(status) {
			return nil, utils.Pagination{}, utils.NewValidationError("status", "must be Completed, Cancelled or Refunded")
		}
		filter.Status = status
	}
	if q.From != "" || q.To != "" {
		w, err := dateRange(q.From, q.To, s.loc, time.Now())
		if err != nil {
			return nil, utils.Pagination{}, err
		}
		filter.Window = &w
	}

	sales, total, err := s.sales.List(ctx, filter)
	if err != nil {
		return nil, utils.Pagination{}, err
	}
	return sales, utils.NewPagination(q.Page, q.Limit, total), nil
}

// ChangeStatus cancels or refunds a Completed sale and puts its stock back.
func (s *SaleService) ChangeStatus(ctx context.Context, actor *models.User, id primitive.ObjectID, status models.SaleStatus) (*models.Sale, error) {
	if actor.Role != models.RoleAdmin {
		return nil, utils.ErrForbidden
	}

	var payment models.PaymentStatus
	reason := models.ReasonSaleCancelled
	switch status {
	case models.SaleCancelled:
	case models.SaleRefunded:
		payment = models.PaymentRefunded
		reason = models.ReasonSaleRefunded
	default:
		return nil, utils.NewValidationError("status", "must be Cancelled or Refunded")
	}

	current, err := s.sales.GetByID(ctx, actor.OwnerID, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.SaleCompleted {
		return nil, utils.ErrInvalidStatusChange
	}
	if payment == "" {
		payment = current.PaymentStatus
		if payment == models.PaymentPaid {
			payment = models.PaymentRefunded
		}
	}

	// The store only moves a sale that is still Completed, so concurrent
	// requests restore stock once.
	updated, err := s.sales.UpdateStatus(ctx, actor.OwnerID, id, status, payment)
	if err != nil {
		return nil, err
	}

	s.restoreStock(context.WithoutCancel(ctx), actor, updated.ID, models.StockDemand(updated), reason)
	s.cache.Invalidate(ctx, actor.OwnerID.Hex())
	s.metrics.SaleStatusChanged(string(status))

	log.Info().
		Str("sale_id", id.Hex()).
		Str("invoice_number", updated.InvoiceNumber).
		Str("status", string(status)).
		Msg("sale status changed")
	return updated, nil
}

// buildSale validates the request and snapshots products into line items.
func (s *SaleService) buildSale(ctx context.Context, actor *models.User, req *CreateSaleRequest) (*models.Sale, error) {
	v := &utils.ValidationError{}
	if len(req.Items) == 0 {
		v.Add("items", "at least one item is required")
	}
	if !req.PaymentMethod.Valid() {
		v.Add("paymentMethod", "must be Cash, Card, UPI or Other")
	}
	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = models.PaymentPaid
	}
	if paymentStatus != models.PaymentPaid && paymentStatus != models.PaymentPending {
		v.Add("paymentStatus", "must be Paid or Pending")
	}
	if req.Discount.IsNegative() {
		v.Add("discount", "must not be negative")
	}
	if req.Tax != nil && req.Tax.IsNegative() {
		v.Add("tax", "must not be negative")
	}

	sale := &models.Sale{
		ID:            primitive.NewObjectID(),
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		OwnerID:       actor.OwnerID,
		Customer:      req.Customer,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: paymentStatus,
		Status:        models.SaleCompleted,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedBy:     actor.ID,
	}

	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.Quantity < 1 {
			v.Add(field+".quantity", "must be at least 1")
			continue
		}
		if item.Discount.IsNegative() {
			v.Add(field+".discount", "must not be negative")
			continue
		}
		productID, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			v.Add(field+".productId", "is not a valid id")
			continue
		}
		p, err := s.products.Get(ctx, actor, productID)
		if errors.Is(err, utils.ErrNotFound) {
			v.Add(field+".productId", "product not found")
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			v.Add(field+".productId", "product is inactive")
			continue
		}
		line := models.AddItem(sale, p, item.Quantity, item.Discount.Round(2))
		if line.Total.IsNegative() {
			v.Add(field+".discount", "must not exceed the line amount")
		}
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if req.Tax != nil {
		sale.Tax = req.Tax.Round(2)
	} else {
		sale.Tax = sale.Subtotal.Mul(s.taxRate(ctx, actor)).Div(hundred).Round(2)
	}
	sale.OrderDiscount = req.Discount.Round(2)
	models.CalculateTotals(sale)
	if sale.Total.IsNegative() {
		return nil, utils.NewValidationError("discount", "must not exceed subtotal plus tax")
	}
	return sale, nil
}

// takeStock subtracts the merged demand of every product in item order. On
// failure it restores what was taken and returns the error.
func (s *SaleService) takeStock(ctx context.Context, actor *models.User, sale *models.Sale) (map[primitive.ObjectID]int, error) {
	demand := models.StockDemand(sale)
	taken := make(map[primitive.ObjectID]int, len(demand))
	saleID := sale.ID

	for _, item := range sale.Items {
		qty, pending := demand[item.ProductID]
		if !pending {
			continue
		}
		delete(demand, item.ProductID)

		_, err := s.products.adjust(ctx, stockChange{
			ownerID:   actor.OwnerID,
			actorID:   actor.ID,
			productID: item.ProductID,
			delta:     qty,
			op:        models.StockSubtract,
			reason:    models.ReasonSale,
			saleID:    &saleID,
		})
		if err != nil {
			s.restoreStock(context.WithoutCancel(ctx), actor, saleID, taken, models.ReasonSaleReverted)
			if errors.Is(err, utils.ErrInsufficientStock) {
				return nil, fmt.Errorf("%w: %s (%s)", utils.ErrInsufficientStock, item.ProductName, item.SKU)
			}
			return nil, err
		}
		taken[item.ProductID] = qty
	}
	return taken, nil
}

// restoreStock adds back quantities per product. Failures are logged; the
// ledger shows what was and was not restored.
func (s *SaleService) restoreStock(ctx context.Context, actor *models.User, saleID primitive.ObjectID, quantities map[primitive.ObjectID]int, reason models.MovementReason) {
	for productID, qty := range quantities {
		_, err := s.products.adjust(ctx, stockChange{
			ownerID:   actor.OwnerID,
			actorID:   actor.ID,
			productID: productID,
			delta:     qty,
			op:        models.StockAdd,
			reason:    reason,
			saleID:    &saleID,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("sale_id", saleID.Hex()).
				Str("product_id", productID.Hex()).
				Int("quantity", qty).
				Msg("failed to restore stock")
		}
	}
}

// persist stores the sale, generating invoice numbers when none was given.
// Only generated numbers are retried after a collision.
func (s *SaleService) persist(ctx context.Context, sale *models.Sale, supplied bool) error {
	if supplied {
		return s.sales.Create(ctx, sale)
	}

	var err error
	for attempt := 1; attempt <= maxInvoiceAttempts; attempt++ {
		sale.InvoiceNumber = s.invoices.Next()
		err = s.sales.Create(ctx, sale)
		if !errors.Is(err, utils.ErrDuplicateInvoiceNumber) {
			return err
		}
		s.metrics.InvoiceRetry()
		log.Warn().Str("invoice_number", sale.InvoiceNumber).Int("attempt", attempt).Msg("invoice number collision")
	}
	return err
}

func (s *SaleService) taxRate(ctx context.Context, actor *models.User) decimal.Decimal {
	owner, err := s.users.GetByID(ctx, actor.OwnerID)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", actor.OwnerID.Hex()).Msg("failed to load store settings, using actor copy")
		return actor.Settings.TaxRate
	}
	return owner.Settings.TaxRate
}

func validSaleStatus(st models.SaleStatus) bool {
	return st == models.SaleCompleted || st == models.SaleCancelled || st == models.SaleRefunded
}
