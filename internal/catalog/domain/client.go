package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Client statuses
const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
)

// Client represents an organization owning machines. The engine treats
// clients as read-only reference data.
type Client struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"not null;index"`
	Address   string         `json:"address"`
	Contact   string         `json:"contact"`
	Status    string         `json:"status" gorm:"not null;default:'active'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Client) TableName() string {
	return "clients"
}

// ClientRepository defines the contract for client data access
type ClientRepository interface {
	Create(ctx context.Context, client *Client) error
	FindByID(ctx context.Context, id uint) (*Client, error)
	FindAll(ctx context.Context, limit, offset int) ([]Client, error)
}
