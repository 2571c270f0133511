package domain

import (
	"time"

	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// MovementType is the closed set of ledger movement types.
type MovementType string

const (
	MovementInbound    MovementType = "inbound"
	MovementOutbound   MovementType = "outbound"
	MovementAdjustment MovementType = "adjustment"
)

// StockMovement is one immutable ledger entry. Quantity is the signed
// stock delta, so the sum of a part's movement quantities equals its
// current stock. Movements are never updated or deleted; a correction
// is a new adjustment movement.
type StockMovement struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	PartID      uint         `json:"part_id" gorm:"not null;index"`
	Type        MovementType `json:"type" gorm:"not null"`
	Quantity    int          `json:"quantity" gorm:"not null"`
	UnitPrice   float64      `json:"unit_price"`
	Reason      string       `json:"reason"`
	DocumentRef string       `json:"document_ref" gorm:"index"`
	ActorID     uint         `json:"actor_id"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TableName specifies the table name
func (StockMovement) TableName() string {
	return "stock_movements"
}

// SignedDelta converts a movement request quantity into the signed
// ledger delta. Inbound and outbound quantities must be positive;
// adjustments carry their own sign and must not be zero.
func SignedDelta(movementType MovementType, quantity int) (int, error) {
	switch movementType {
	case MovementInbound:
		if quantity <= 0 {
			return 0, &apperrors.ValidationError{Field: "quantity", Reason: "inbound quantity must be positive"}
		}
		return quantity, nil
	case MovementOutbound:
		if quantity <= 0 {
			return 0, &apperrors.ValidationError{Field: "quantity", Reason: "outbound quantity must be positive"}
		}
		return -quantity, nil
	case MovementAdjustment:
		if quantity == 0 {
			return 0, &apperrors.ValidationError{Field: "quantity", Reason: "adjustment quantity must not be zero"}
		}
		return quantity, nil
	}
	return 0, &apperrors.ValidationError{Field: "type", Reason: "unknown movement type"}
}
