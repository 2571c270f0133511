package command

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldservice/internal/audit"
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/internal/inventory/domain"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// CreatePartCommand represents the command to create a catalog part
type CreatePartCommand struct {
	Reference     string
	Barcode       string
	Name          string
	Category      string
	MinStock      int
	MaxStock      int
	PurchasePrice float64
	SalePrice     float64
	Supplier      string
	Location      string
}

// CreatePartHandler handles create part commands
type CreatePartHandler struct {
	parts  domain.PartRepository
	policy *policy.Evaluator
	audit  *audit.Recorder
}

// NewCreatePartHandler creates a new create part handler
func NewCreatePartHandler(parts domain.PartRepository, pol *policy.Evaluator, rec *audit.Recorder) *CreatePartHandler {
	return &CreatePartHandler{parts: parts, policy: pol, audit: rec}
}

// Handle creates a part with zero initial stock. Opening stock arrives
// through an inbound movement so the ledger stays complete.
func (h *CreatePartHandler) Handle(ctx context.Context, cmd CreatePartCommand, actor identity.Actor) (*domain.Part, error) {
	if err := h.policy.Authorize(actor, policy.OpPartManage); err != nil {
		return nil, err
	}

	if cmd.Reference == "" {
		return nil, &apperrors.ValidationError{Field: "reference", Reason: "reference is required"}
	}
	if cmd.Name == "" {
		return nil, &apperrors.ValidationError{Field: "name", Reason: "name is required"}
	}
	if cmd.MinStock < 0 || cmd.MaxStock < 0 {
		return nil, &apperrors.ValidationError{Field: "thresholds", Reason: "stock thresholds must not be negative"}
	}
	if cmd.MaxStock > 0 && cmd.MaxStock < cmd.MinStock {
		return nil, &apperrors.ValidationError{Field: "thresholds", Reason: "max stock must not be below min stock"}
	}

	part := &domain.Part{
		Reference:     cmd.Reference,
		Barcode:       cmd.Barcode,
		Name:          cmd.Name,
		Category:      cmd.Category,
		MinStock:      cmd.MinStock,
		MaxStock:      cmd.MaxStock,
		PurchasePrice: cmd.PurchasePrice,
		SalePrice:     cmd.SalePrice,
		Supplier:      cmd.Supplier,
		Location:      cmd.Location,
		Status:        domain.PartStatusOutOfStock,
	}

	if err := h.parts.Create(ctx, part); err != nil {
		return nil, fmt.Errorf("failed to create part: %w", err)
	}

	h.audit.Record(ctx, actor, string(policy.OpPartManage), fmt.Sprintf("part/%d", part.ID), true, map[string]any{
		"action":    "create",
		"reference": part.Reference,
	})
	return part, nil
}

// DeletePartCommand represents the command to remove a catalog part
type DeletePartCommand struct {
	PartID uint
}

// DeletePartHandler handles delete part commands
type DeletePartHandler struct {
	parts  domain.PartRepository
	policy *policy.Evaluator
	audit  *audit.Recorder
}

// NewDeletePartHandler creates a new delete part handler
func NewDeletePartHandler(parts domain.PartRepository, pol *policy.Evaluator, rec *audit.Recorder) *DeletePartHandler {
	return &DeletePartHandler{parts: parts, policy: pol, audit: rec}
}

// Handle removes a part from the catalog. Parts with stock or ledger
// history are refused with an IntegrityError.
func (h *DeletePartHandler) Handle(ctx context.Context, cmd DeletePartCommand, actor identity.Actor) error {
	if err := h.policy.Authorize(actor, policy.OpPartManage); err != nil {
		return err
	}
	if cmd.PartID == 0 {
		return &apperrors.ValidationError{Field: "part_id", Reason: "part_id is required"}
	}

	targetRef := fmt.Sprintf("part/%d", cmd.PartID)
	if err := h.parts.Delete(ctx, cmd.PartID); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpPartManage), targetRef, false, map[string]any{
			"action": "delete",
			"error":  err.Error(),
		})
		return err
	}

	h.audit.Record(ctx, actor, string(policy.OpPartManage), targetRef, true, map[string]any{
		"action": "delete",
	})
	return nil
}
