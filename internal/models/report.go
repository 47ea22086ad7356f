package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard is the store overview. Only Completed sales are counted.
type Dashboard struct {
	TodaySales       int64           `json:"todaySales"`
	TodayRevenue     decimal.Decimal `json:"todayRevenue"`
	MonthlySales     int64           `json:"monthlySales"`
	MonthlyRevenue   decimal.Decimal `json:"monthlyRevenue"`
	TotalProducts    int64           `json:"totalProducts"`
	LowStockProducts int64           `json:"lowStockProducts"`
	GeneratedAt      time.Time       `json:"generatedAt"`
}

// SalesTotals is the count and revenue of completed sales in a window.
type SalesTotals struct {
	Count     int64           `bson:"count" json:"sales"`
	Revenue   decimal.Decimal `bson:"revenue" json:"revenue"`
	ItemsSold int64           `bson:"itemsSold" json:"itemsSold"`
}

// DailySales is one calendar day bucket of completed sales.
type DailySales struct {
	Date    string          `bson:"_id" json:"date"`
	Count   int64           `bson:"count" json:"sales"`
	Revenue decimal.Decimal `bson:"revenue" json:"revenue"`
}

// SalesSummary reports completed sales per day over [From, To).
type SalesSummary struct {
	From   time.Time    `json:"from"`
	To     time.Time    `json:"to"`
	Totals SalesTotals  `json:"totals"`
	Days   []DailySales `json:"days"`
}
