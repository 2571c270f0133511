package command

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldservice/internal/audit"
	catdomain "github.com/fieldops/fieldservice/internal/catalog/domain"
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// CreateTicketCommand represents the command to create a ticket
type CreateTicketCommand struct {
	Title            string
	Description      string
	Priority         domain.Priority
	Type             domain.InterventionType
	ClientID         uint
	MachineID        *uint
	EstimatedMinutes int
	EstimatedCost    float64
}

// CreateTicketHandler handles create ticket commands
type CreateTicketHandler struct {
	tickets  domain.Repository
	clients  catdomain.ClientRepository
	machines catdomain.MachineRepository
	policy   *policy.Evaluator
	audit    *audit.Recorder
}

// NewCreateTicketHandler creates a new create ticket handler
func NewCreateTicketHandler(tickets domain.Repository, clients catdomain.ClientRepository, machines catdomain.MachineRepository, pol *policy.Evaluator, rec *audit.Recorder) *CreateTicketHandler {
	return &CreateTicketHandler{tickets: tickets, clients: clients, machines: machines, policy: pol, audit: rec}
}

// Handle creates a ticket in status open with a freshly allocated
// number.
func (h *CreateTicketHandler) Handle(ctx context.Context, cmd CreateTicketCommand, actor identity.Actor) (*domain.Ticket, error) {
	if err := h.policy.Authorize(actor, policy.OpTicketCreate); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketCreate), "", false,
			map[string]any{"error": err.Error()})
		return nil, err
	}

	if cmd.Title == "" {
		return nil, &apperrors.ValidationError{Field: "title", Reason: "title is required"}
	}
	if cmd.ClientID == 0 {
		return nil, &apperrors.ValidationError{Field: "client_id", Reason: "client reference is required"}
	}
	if cmd.Priority == "" {
		cmd.Priority = domain.PriorityNormal
	}
	if !domain.ValidPriority(cmd.Priority) {
		return nil, &apperrors.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", cmd.Priority)}
	}
	if cmd.Type == "" {
		cmd.Type = domain.TypeCorrective
	}
	if !domain.ValidInterventionType(cmd.Type) {
		return nil, &apperrors.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown intervention type %q", cmd.Type)}
	}
	if cmd.EstimatedMinutes < 0 {
		return nil, &apperrors.ValidationError{Field: "estimated_minutes", Reason: "estimated time must not be negative"}
	}

	if _, err := h.clients.FindByID(ctx, cmd.ClientID); err != nil {
		return nil, err
	}
	if cmd.MachineID != nil {
		machine, err := h.machines.FindByID(ctx, *cmd.MachineID)
		if err != nil {
			return nil, err
		}
		if machine.ClientID != cmd.ClientID {
			return nil, &apperrors.IntegrityError{
				Reason: fmt.Sprintf("machine %d belongs to client %d, not client %d",
					machine.ID, machine.ClientID, cmd.ClientID),
			}
		}
	}

	ticket := &domain.Ticket{
		Title:            cmd.Title,
		Description:      cmd.Description,
		Status:           domain.StatusOpen,
		Priority:         cmd.Priority,
		Type:             cmd.Type,
		ClientID:         cmd.ClientID,
		MachineID:        cmd.MachineID,
		CreatedByID:      actor.ID,
		EstimatedMinutes: cmd.EstimatedMinutes,
		EstimatedCost:    cmd.EstimatedCost,
	}

	if err := h.tickets.Create(ctx, ticket); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketCreate), "", false,
			map[string]any{"title": cmd.Title, "error": err.Error()})
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	h.audit.Record(ctx, actor, string(policy.OpTicketCreate), fmt.Sprintf("ticket/%d", ticket.ID), true, map[string]any{
		"number":    ticket.Number,
		"client_id": ticket.ClientID,
		"priority":  string(ticket.Priority),
	})
	return ticket, nil
}
