package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Status is the closed set of ticket lifecycle states.
type Status string

const (
	StatusOpen       Status = "open"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusWaiting    Status = "waiting"
	StatusClosed     Status = "closed"
	StatusCancelled  Status = "cancelled"
)

// Priority is the closed set of ticket priorities.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// InterventionType is the closed set of requested work types.
type InterventionType string

const (
	TypeInstallation InterventionType = "installation"
	TypePreventive   InterventionType = "preventive"
	TypeCorrective   InterventionType = "corrective"
	TypeRepair       InterventionType = "repair"
	TypeOther        InterventionType = "other"
)

// transitions is the lifecycle graph. Cancellation from non-terminal
// states is handled by CanTransition, not listed per state.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusAssigned},
	StatusAssigned:   {StatusInProgress},
	StatusInProgress: {StatusWaiting, StatusClosed},
	StatusWaiting:    {StatusInProgress},
	StatusClosed:     {},
	StatusCancelled:  {},
}

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the lifecycle graph permits moving from
// s to target. Cancellation is reachable from every non-terminal state.
func (s Status) CanTransition(target Status) bool {
	if !s.Valid() || !target.Valid() {
		return false
	}
	if target == StatusCancelled {
		return !s.Terminal()
	}
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ValidInterventionType reports whether t is a known work type.
func ValidInterventionType(t InterventionType) bool {
	switch t {
	case TypeInstallation, TypePreventive, TypeCorrective, TypeRepair, TypeOther:
		return true
	}
	return false
}

// Ticket is one unit of requested field-service work.
type Ticket struct {
	ID               uint             `json:"id" gorm:"primaryKey"`
	Number           string           `json:"number" gorm:"uniqueIndex;not null"`
	Title            string           `json:"title" gorm:"not null"`
	Description      string           `json:"description"`
	Status           Status           `json:"status" gorm:"not null;default:'open';index"`
	Priority         Priority         `json:"priority" gorm:"not null;default:'normal'"`
	Type             InterventionType `json:"type" gorm:"not null;default:'corrective'"`
	ClientID         uint             `json:"client_id" gorm:"not null;index"`
	MachineID        *uint            `json:"machine_id" gorm:"index"`
	AssignedTechID   *uint            `json:"assigned_tech_id" gorm:"index"`
	CreatedByID      uint             `json:"created_by_id" gorm:"not null"`
	AssignedAt       *time.Time       `json:"assigned_at"`
	ScheduledAt      *time.Time       `json:"scheduled_at"`
	StartedAt        *time.Time       `json:"started_at"`
	ClosedAt         *time.Time       `json:"closed_at"`
	EstimatedMinutes int              `json:"estimated_minutes"`
	EstimatedCost    float64          `json:"estimated_cost"`
	WaitReason       string           `json:"wait_reason"`
	CancelReason     string           `json:"cancel_reason"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Ticket) TableName() string {
	return "tickets"
}

// IsAssignedTo reports whether the ticket is assigned to the given
// technician.
func (t *Ticket) IsAssignedTo(technicianID uint) bool {
	return t.AssignedTechID != nil && *t.AssignedTechID == technicianID
}

// Sequence backs the monotonic ticket number allocator.
type Sequence struct {
	ID    uint  `gorm:"primaryKey"`
	Value int64 `gorm:"not null;default:0"`
}

// TableName specifies the table name
func (Sequence) TableName() string {
	return "ticket_sequences"
}

// Filter narrows ticket listings.
type Filter struct {
	Status         *Status
	ClientID       *uint
	AssignedTechID *uint
	Limit          int
	Offset         int
}

// Repository defines the contract for ticket data access. Transition is
// the only path that changes a persisted status.
type Repository interface {
	Create(ctx context.Context, ticket *Ticket) error
	FindByID(ctx context.Context, id uint) (*Ticket, error)
	FindByNumber(ctx context.Context, number string) (*Ticket, error)
	FindAll(ctx context.Context, filter Filter) ([]Ticket, error)
	Transition(ctx context.Context, ticket *Ticket, expected Status) error
	Delete(ctx context.Context, id uint) error
}
