package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Technician is the roster entry tickets are assigned to. Credentials
// live with the external identity service; this is identity data only.
type Technician struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"not null"`
	Email     string         `json:"email" gorm:"uniqueIndex"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Technician) TableName() string {
	return "technicians"
}

// TechnicianDirectory resolves technician identifiers at assignment time.
type TechnicianDirectory interface {
	FindTechnician(ctx context.Context, id uint) (*Technician, error)
}
