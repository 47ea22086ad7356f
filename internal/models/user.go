package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the permission level of a store user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSales     Role = "sales"
	RoleInventory Role = "inventory"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSales || r == RoleInventory
}

// StoreSettings are per-store preferences owned by the store admin.
type StoreSettings struct {
	TaxRate               decimal.Decimal `bson:"taxRate" json:"taxRate"`
	Currency              string          `bson:"currency" json:"currency"`
	LowStockThreshold     int             `bson:"lowStockThreshold" json:"lowStockThreshold"`
	EmailNotifications    bool            `bson:"emailNotifications" json:"emailNotifications"`
	LowStockNotifications bool            `bson:"lowStockNotifications" json:"lowStockNotifications"`
}

// DefaultStoreSettings returns the settings a new store starts with.
func DefaultStoreSettings() StoreSettings {
	return StoreSettings{
		TaxRate:               decimal.Zero,
		Currency:              "USD",
		LowStockThreshold:     DefaultReorderPoint,
		EmailNotifications:    true,
		LowStockNotifications: true,
	}
}

// User is a store owner or a staff member acting for one.
// OwnerID equals ID for the owner account itself.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	OwnerID      primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	FullName     string             `bson:"fullName,omitempty" json:"fullName,omitempty"`
	StoreName    string             `bson:"storeName,omitempty" json:"storeName,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	Settings     StoreSettings      `bson:"settings" json:"settings"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	LastLogin    *time.Time         `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
