package domain

import (
	"context"
	"time"

	invdomain "github.com/fieldops/fieldservice/internal/inventory/domain"
)

// PartUsage is one consumed part line on an intervention. The list
// order is preserved.
type PartUsage struct {
	PartID   uint `json:"part_id"`
	Quantity int  `json:"quantity"`
}

// Intervention is one recorded work session against a ticket. Records
// are immutable once created; a correction is a new record. The only
// deletion path is the cascade when the owning ticket is deleted.
type Intervention struct {
	ID               uint        `json:"id" gorm:"primaryKey"`
	TicketID         uint        `json:"ticket_id" gorm:"not null;index"`
	TechnicianID     uint        `json:"technician_id" gorm:"not null;index"`
	StartedAt        time.Time   `json:"started_at"`
	EndedAt          *time.Time  `json:"ended_at"`
	WorkDescription  string      `json:"work_description"`
	TimeSpentMinutes int         `json:"time_spent_minutes" gorm:"not null;default:0"`
	DistanceKM       float64     `json:"distance_km"`
	Photos           []string    `json:"photos" gorm:"serializer:json"`
	PartsUsed        []PartUsage `json:"parts_used" gorm:"serializer:json"`
	SignatureRef     string      `json:"signature_ref"`
	SignatoryName    string      `json:"signatory_name"`
	Satisfaction     *int        `json:"satisfaction"`
	InternalComment  string      `json:"internal_comment"`
	ExternalComment  string      `json:"external_comment"`
	FinalCost        float64     `json:"final_cost"`
	Billable         bool        `json:"billable" gorm:"default:true"`
	CreatedAt        time.Time   `json:"created_at"`
}

// TableName specifies the table name
func (Intervention) TableName() string {
	return "interventions"
}

// Repository defines the contract for intervention data access. There
// is deliberately no update method.
type Repository interface {
	Create(ctx context.Context, intervention *Intervention) error
	CreateWithConsumption(ctx context.Context, intervention *Intervention, movements []*invdomain.StockMovement) error
	FindByID(ctx context.Context, id uint) (*Intervention, error)
	FindByTicketID(ctx context.Context, ticketID uint) ([]Intervention, error)
	CountByTicketID(ctx context.Context, ticketID uint) (int64, error)
}
