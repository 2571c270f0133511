package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// PartStatus is the closed set of spare part statuses.
type PartStatus string

const (
	PartStatusActive     PartStatus = "active"
	PartStatusObsolete   PartStatus = "obsolete"
	PartStatusOutOfStock PartStatus = "out_of_stock"
)

// Part represents a spare-parts catalog entry. CurrentStock is a cached
// counter: at all times it equals the sum of the part's movement
// quantities, and only ApplyMovement may change it.
type Part struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Reference     string         `json:"reference" gorm:"uniqueIndex;not null"`
	Barcode       string         `json:"barcode"`
	Name          string         `json:"name" gorm:"not null"`
	Category      string         `json:"category"`
	CurrentStock  int            `json:"current_stock" gorm:"not null;default:0"`
	MinStock      int            `json:"min_stock" gorm:"not null;default:0"`
	MaxStock      int            `json:"max_stock" gorm:"not null;default:0"`
	PurchasePrice float64        `json:"purchase_price"`
	SalePrice     float64        `json:"sale_price"`
	Supplier      string         `json:"supplier"`
	Location      string         `json:"location"`
	Status        PartStatus     `json:"status" gorm:"not null;default:'active'"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Part) TableName() string {
	return "parts"
}

// ThresholdReport is the result of a threshold check against a part's
// configured minimum and maximum stock.
type ThresholdReport struct {
	PartID    uint   `json:"part_id"`
	Reference string `json:"reference"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"min_stock"`
	MaxStock  int    `json:"max_stock"`
	LowStock  bool   `json:"low_stock"`
	Overstock bool   `json:"overstock"`
}

// Check evaluates the thresholds for the part's current stock. A max of
// zero means no overstock ceiling is configured.
func (p *Part) Check() ThresholdReport {
	return ThresholdReport{
		PartID:    p.ID,
		Reference: p.Reference,
		Stock:     p.CurrentStock,
		MinStock:  p.MinStock,
		MaxStock:  p.MaxStock,
		LowStock:  p.CurrentStock <= p.MinStock,
		Overstock: p.MaxStock > 0 && p.CurrentStock >= p.MaxStock,
	}
}

// PartRepository defines the contract for part and ledger data access.
// ApplyMovement is the single mutation path for stock counters.
type PartRepository interface {
	Create(ctx context.Context, part *Part) error
	FindByID(ctx context.Context, id uint) (*Part, error)
	FindByReference(ctx context.Context, reference string) (*Part, error)
	FindAll(ctx context.Context, limit, offset int) ([]Part, error)
	Update(ctx context.Context, part *Part) error
	Delete(ctx context.Context, id uint) error
	ApplyMovement(ctx context.Context, movement *StockMovement) (int, error)
	Movements(ctx context.Context, partID uint, limit, offset int) ([]StockMovement, error)
}
