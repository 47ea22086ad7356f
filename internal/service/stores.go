package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/repository"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// ProductStore is the product persistence used by the services.
// *repository.ProductRepository satisfies it.
type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, ownerID, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, filter repository.ProductFilter) ([]models.Product, int64, error)
	Update(ctx context.Context, ownerID, id primitive.ObjectID, u repository.ProductUpdate) (*models.Product, error)
	AdjustStock(ctx context.Context, ownerID, id primitive.ObjectID, delta int, op models.StockOperation) (*models.Product, int, error)
	CountActive(ctx context.Context, ownerID primitive.ObjectID) (int64, error)
	CountLowStock(ctx context.Context, ownerID primitive.ObjectID) (int64, error)
}

// SaleStore is the sale persistence used by the services.
type SaleStore interface {
	Create(ctx context.Context, s *models.Sale) error
	GetByID(ctx context.Context, ownerID, id primitive.ObjectID) (*models.Sale, error)
	List(ctx context.Context, filter repository.SaleFilter) ([]models.Sale, int64, error)
	UpdateStatus(ctx context.Context, ownerID, id primitive.ObjectID, status models.SaleStatus, payment models.PaymentStatus) (*models.Sale, error)
	Totals(ctx context.Context, ownerID primitive.ObjectID, w utils.Window) (models.SalesTotals, error)
	DailyTotals(ctx context.Context, ownerID primitive.ObjectID, w utils.Window, loc *time.Location) ([]models.DailySales, error)
}

// UserStore is the user persistence used by the services.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, u repository.UserProfileUpdate) (*models.User, error)
}

// MovementStore is the stock ledger.
type MovementStore interface {
	Create(ctx context.Context, m *models.StockMovement) error
	ListByProduct(ctx context.Context, ownerID, productID primitive.ObjectID, limit int) ([]models.StockMovement, error)
}

// DashboardCache keeps recently computed dashboards per store owner.
type DashboardCache interface {
	Get(ctx context.Context, ownerID string) (*models.Dashboard, bool)
	Set(ctx context.Context, ownerID string, d *models.Dashboard)
	Invalidate(ctx context.Context, ownerID string)
}

// Notifier pushes live events to connected dashboards of a store.
type Notifier interface {
	NotifySaleCreated(ownerID string, sale *models.Sale)
	NotifyLowStock(ownerID string, p *models.Product)
}

// ImageStore persists product images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*models.Dashboard, bool) { return nil, false }
func (noopCache) Set(context.Context, string, *models.Dashboard)        {}
func (noopCache) Invalidate(context.Context, string)                    {}

type noopNotifier struct{}

func (noopNotifier) NotifySaleCreated(string, *models.Sale)  {}
func (noopNotifier) NotifyLowStock(string, *models.Product) {}
