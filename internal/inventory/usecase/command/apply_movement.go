package command

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldservice/internal/audit"
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/internal/inventory/domain"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/pkg/apperrors"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// ApplyMovementCommand represents the command to apply a stock movement
type ApplyMovementCommand struct {
	PartID      uint
	Type        domain.MovementType
	Quantity    int
	UnitPrice   float64
	Reason      string
	DocumentRef string
}

// ApplyMovementHandler handles apply movement commands
type ApplyMovementHandler struct {
	parts  domain.PartRepository
	policy *policy.Evaluator
	locks  *locking.Manager
	audit  *audit.Recorder
}

// NewApplyMovementHandler creates a new apply movement handler
func NewApplyMovementHandler(parts domain.PartRepository, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) *ApplyMovementHandler {
	return &ApplyMovementHandler{parts: parts, policy: pol, locks: locks, audit: rec}
}

// Handle applies one manual stock movement and returns the resulting
// stock level.
func (h *ApplyMovementHandler) Handle(ctx context.Context, cmd ApplyMovementCommand, actor identity.Actor) (int, error) {
	targetRef := fmt.Sprintf("part/%d", cmd.PartID)

	if err := h.policy.Authorize(actor, policy.OpStockMovementApply); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpStockMovementApply), targetRef, false,
			map[string]any{"error": err.Error()})
		return 0, err
	}

	if cmd.PartID == 0 {
		return 0, &apperrors.ValidationError{Field: "part_id", Reason: "part_id is required"}
	}

	delta, err := domain.SignedDelta(cmd.Type, cmd.Quantity)
	if err != nil {
		return 0, err
	}

	release, err := h.locks.Acquire(ctx, locking.PartKey(cmd.PartID))
	if err != nil {
		return 0, err
	}
	defer release()

	movement := &domain.StockMovement{
		PartID:      cmd.PartID,
		Type:        cmd.Type,
		Quantity:    delta,
		UnitPrice:   cmd.UnitPrice,
		Reason:      cmd.Reason,
		DocumentRef: cmd.DocumentRef,
		ActorID:     actor.ID,
	}

	newStock, err := h.parts.ApplyMovement(ctx, movement)
	if err != nil {
		h.audit.Record(ctx, actor, string(policy.OpStockMovementApply), targetRef, false, map[string]any{
			"type":     string(cmd.Type),
			"quantity": cmd.Quantity,
			"error":    err.Error(),
		})
		return 0, fmt.Errorf("failed to apply stock movement: %w", err)
	}

	h.audit.Record(ctx, actor, string(policy.OpStockMovementApply), targetRef, true, map[string]any{
		"type":         string(cmd.Type),
		"quantity":     cmd.Quantity,
		"delta":        delta,
		"new_stock":    newStock,
		"reason":       cmd.Reason,
		"document_ref": cmd.DocumentRef,
	})
	return newStock, nil
}
