package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MovementReason records why stock changed.
type MovementReason string

const (
	ReasonSale          MovementReason = "sale"
	ReasonRestock       MovementReason = "restock"
	ReasonManual        MovementReason = "manual"
	ReasonSaleCancelled MovementReason = "sale-cancelled"
	ReasonSaleRefunded  MovementReason = "sale-refunded"
	// ReasonSaleReverted restores stock taken by a sale that failed to persist.
	ReasonSaleReverted  MovementReason = "sale-reverted"
)

// StockMovement is one entry of the append-only stock ledger.
type StockMovement struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	ProductID        primitive.ObjectID  `bson:"productId" json:"productId"`
	OwnerID          primitive.ObjectID  `bson:"ownerId" json:"ownerId"`
	Operation        StockOperation      `bson:"operation" json:"operation"`
	Quantity         int                 `bson:"quantity" json:"quantity"`
	PreviousQuantity int                 `bson:"previousQuantity" json:"previousQuantity"`
	NewQuantity      int                 `bson:"newQuantity" json:"newQuantity"`
	Reason           MovementReason      `bson:"reason" json:"reason"`
	SaleID           *primitive.ObjectID `bson:"saleId,omitempty" json:"saleId,omitempty"`
	ActorID          primitive.ObjectID  `bson:"actorId" json:"actorId"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
}
