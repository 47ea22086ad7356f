package sse

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/apparel_tracker/internal/models"
)

// SaleCreatedData is the payload of a sale.created event.
type SaleCreatedData struct {
	SaleID        string          `json:"saleId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Items         int             `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	CreatedBy     string          `json:"createdBy"`
}

// StockLowData is the payload of a stock.low event.
type StockLowData struct {
	ProductID    string `json:"productId"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	ReorderPoint int    `json:"reorderPoint"`
	StockStatus  string `json:"stockStatus"`
}

// HubNotifier pushes sale and stock events through the Hub.
type HubNotifier struct {
	hub *Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub, now: time.Now}
}

func (n *HubNotifier) NotifySaleCreated(ownerID string, sale *models.Sale) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(ownerID, &Event{
		Event: EventSaleCreated,
		Data: SaleCreatedData{
			SaleID:        sale.ID.Hex(),
			InvoiceNumber: sale.InvoiceNumber,
			Items:         len(sale.Items),
			Total:         sale.Total,
			PaymentMethod: string(sale.PaymentMethod),
			CreatedBy:     sale.CreatedBy.Hex(),
		},
		Timestamp: n.now(),
	})
}

func (n *HubNotifier) NotifyLowStock(ownerID string, p *models.Product) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(ownerID, &Event{
		Event: EventStockLow,
		Data: StockLowData{
			ProductID:    p.ID.Hex(),
			SKU:          p.SKU,
			Name:         p.Name,
			Quantity:     p.Quantity,
			ReorderPoint: p.ReorderPoint,
			StockStatus:  string(p.StockStatus),
		},
		Timestamp: n.now(),
	})
}
