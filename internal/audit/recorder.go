// Package audit provides the append-only trail written by every
// mutating engine operation.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/fieldops/fieldservice/internal/audit/domain"
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/pkg/logger"
)

// Recorder appends audit entries. A failed write is logged and swallowed:
// auditing never fails the operation that triggered it.
type Recorder struct {
	repo domain.Repository
}

// NewRecorder creates a new audit recorder
func NewRecorder(repo domain.Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record appends one entry for the given action. It is called
// synchronously before the triggering operation returns its result.
func (r *Recorder) Record(ctx context.Context, actor identity.Actor, action, targetRef string, success bool, details map[string]any) {
	entry := &domain.Entry{
		ID:        uuid.NewString(),
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Action:    action,
		TargetRef: targetRef,
		Success:   success,
		Details:   details,
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		logger.Warn(ctx).
			Err(err).
			Str("action", action).
			Str("target_ref", targetRef).
			Msg("Failed to write audit entry")
	}
}
