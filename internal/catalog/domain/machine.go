package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Machine statuses
const (
	MachineStatusActive       = "active"
	MachineStatusMaintenance  = "maintenance"
	MachineStatusOutOfService = "out_of_service"
	MachineStatusRetired      = "retired"
)

// Machine represents one equipment unit, owned by exactly one client.
type Machine struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	ClientID     uint           `json:"client_id" gorm:"not null;index"`
	Model        string         `json:"model" gorm:"not null"`
	SerialNumber string         `json:"serial_number" gorm:"uniqueIndex;not null"`
	Category     string         `json:"category"`
	Status       string         `json:"status" gorm:"not null;default:'active'"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Machine) TableName() string {
	return "machines"
}

// MachineRepository defines the contract for machine data access
type MachineRepository interface {
	Create(ctx context.Context, machine *Machine) error
	FindByID(ctx context.Context, id uint) (*Machine, error)
	FindBySerialNumber(ctx context.Context, serial string) (*Machine, error)
	FindByClientID(ctx context.Context, clientID uint, limit, offset int) ([]Machine, error)
}
