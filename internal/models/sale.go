package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SaleStatus string
type PaymentMethod string
type PaymentStatus string

const (
	SaleCompleted SaleStatus = "Completed"
	SaleCancelled SaleStatus = "Cancelled"
	SaleRefunded  SaleStatus = "Refunded"
)

const (
	PaymentCash  PaymentMethod = "Cash"
	PaymentCard  PaymentMethod = "Card"
	PaymentUPI   PaymentMethod = "UPI"
	PaymentOther PaymentMethod = "Other"
)

const (
	PaymentPaid     PaymentStatus = "Paid"
	PaymentPending  PaymentStatus = "Pending"
	PaymentRefunded PaymentStatus = "Refunded"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentOther:
		return true
	}
	return false
}

// Customer is the optional buyer contact captured on a sale.
type Customer struct {
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// SaleItem is one line of a sale. Product fields are a copy taken when the
// item was added and are never joined back to the live product.
type SaleItem struct {
	ID          string             `bson:"itemId" json:"itemId"`
	ProductID   primitive.ObjectID `bson:"productId" json:"productId"`
	ProductName string             `bson:"productName" json:"productName"`
	SKU         string             `bson:"sku" json:"sku"`
	Category    Category           `bson:"category" json:"category"`
	Size        Size               `bson:"size,omitempty" json:"size,omitempty"`
	Color       string             `bson:"color,omitempty" json:"color,omitempty"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal    `bson:"unitPrice" json:"unitPrice"`
	Discount    decimal.Decimal    `bson:"discount" json:"discount"`
	Total       decimal.Decimal    `bson:"total" json:"total"`
}

// Sale is a completed point-of-sale transaction.
type Sale struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	InvoiceNumber string             `bson:"invoiceNumber" json:"invoiceNumber"`
	OwnerID       primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Customer      *Customer          `bson:"customer,omitempty" json:"customer,omitempty"`
	Items         []SaleItem         `bson:"items" json:"items"`
	Subtotal      decimal.Decimal    `bson:"subtotal" json:"subtotal"`
	Tax           decimal.Decimal    `bson:"tax" json:"tax"`
	// OrderDiscount is the discount applied to the sale as a whole.
	OrderDiscount decimal.Decimal `bson:"orderDiscount" json:"orderDiscount"`
	// Discount is OrderDiscount plus every item discount.
	Discount      decimal.Decimal    `bson:"discount" json:"discount"`
	Total         decimal.Decimal    `bson:"total" json:"total"`
	PaymentMethod PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	Status        SaleStatus         `bson:"status" json:"status"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedBy     primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CalculateTotals recomputes line totals, subtotal, discount and total:
//
//	item.Total = quantity*unitPrice - item.Discount
//	Subtotal   = sum(quantity*unitPrice)
//	Discount   = OrderDiscount + sum(item.Discount)
//	Total      = Subtotal + Tax - Discount
func CalculateTotals(s *Sale) {
	subtotal := decimal.Zero
	discount := s.OrderDiscount
	for i := range s.Items {
		item := &s.Items[i]
		gross := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		item.Total = gross.Sub(item.Discount).Round(2)
		subtotal = subtotal.Add(gross)
		discount = discount.Add(item.Discount)
	}
	s.Subtotal = subtotal.Round(2)
	s.Discount = discount.Round(2)
	s.Total = s.Subtotal.Add(s.Tax).Sub(s.Discount).Round(2)
}

// AddItem snapshots p into a new line item, appends it and recomputes totals.
func AddItem(s *Sale, p *Product, quantity int, discount decimal.Decimal) *SaleItem {
	s.Items = append(s.Items, SaleItem{
		ID:          uuid.NewString(),
		ProductID:   p.ID,
		ProductName: p.Name,
		SKU:         p.SKU,
		Category:    p.Category,
		Size:        p.Size,
		Color:       p.Color,
		Quantity:    quantity,
		UnitPrice:   p.Price,
		Discount:    discount,
	})
	CalculateTotals(s)
	return &s.Items[len(s.Items)-1]
}

// RemoveItem drops the line item with itemID and recomputes totals.
// It reports whether an item was removed.
func RemoveItem(s *Sale, itemID string) bool {
	kept := s.Items[:0]
	removed := false
	for _, item := range s.Items {
		if item.ID == itemID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	s.Items = kept
	CalculateTotals(s)
	return removed
}

// SetItemQuantity edits the quantity of a line item and recomputes totals.
func SetItemQuantity(s *Sale, itemID string, quantity int) bool {
	for i := range s.Items {
		if s.Items[i].ID == itemID {
			s.Items[i].Quantity = quantity
			CalculateTotals(s)
			return true
		}
	}
	return false
}

// StockDemand sums the quantity requested per product across all items.
func StockDemand(s *Sale) map[primitive.ObjectID]int {
	demand := make(map[primitive.ObjectID]int, len(s.Items))
	for _, item := range s.Items {
		demand[item.ProductID] += item.Quantity
	}
	return demand
}
