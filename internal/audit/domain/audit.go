package domain

import (
	"context"
	"time"
)

// Entry is an immutable audit record. Entries are append-only: no
// repository exposes an update or delete path.
type Entry struct {
	ID        string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	ActorID   uint           `json:"actor_id" gorm:"index"`
	ActorRole string         `json:"actor_role"`
	Action    string         `json:"action" gorm:"not null;index"`
	TargetRef string         `json:"target_ref" gorm:"index"`
	Success   bool           `json:"success"`
	Details   map[string]any `json:"details,omitempty" gorm:"serializer:json"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName specifies the table name
func (Entry) TableName() string {
	return "audit_entries"
}

// Repository defines the contract for audit data access
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	FindByTarget(ctx context.Context, targetRef string, limit, offset int) ([]Entry, error)
	FindByActor(ctx context.Context, actorID uint, limit, offset int) ([]Entry, error)
}
