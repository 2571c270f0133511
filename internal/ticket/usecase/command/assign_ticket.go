package command

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/fieldservice/internal/audit"
	catdomain "github.com/fieldops/fieldservice/internal/catalog/domain"
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// AssignTicketCommand represents the command to assign a ticket
type AssignTicketCommand struct {
	TicketID     uint
	TechnicianID uint
}

// AssignTicketHandler handles assign ticket commands
type AssignTicketHandler struct {
	tickets   domain.Repository
	directory catdomain.TechnicianDirectory
	policy    *policy.Evaluator
	locks     *locking.Manager
	audit     *audit.Recorder
}

// NewAssignTicketHandler creates a new assign ticket handler
func NewAssignTicketHandler(tickets domain.Repository, directory catdomain.TechnicianDirectory, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) *AssignTicketHandler {
	return &AssignTicketHandler{tickets: tickets, directory: directory, policy: pol, locks: locks, audit: rec}
}

// Handle assigns a ticket to a technician. Legal only from status open.
func (h *AssignTicketHandler) Handle(ctx context.Context, cmd AssignTicketCommand, actor identity.Actor) (*domain.Ticket, error) {
	if err := h.policy.Authorize(actor, policy.OpTicketAssign); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketAssign), ticketRef(cmd.TicketID), false,
			map[string]any{"error": err.Error()})
		return nil, err
	}

	ticket, release, err := lockAndFetch(ctx, h.locks, h.tickets, cmd.TicketID)
	if err != nil {
		return nil, err
	}
	defer release()

	if ticket.Status != domain.StatusOpen {
		return nil, &apperrors.StateTransitionError{
			Entity:    "ticket",
			Ref:       ticket.Number,
			Current:   string(ticket.Status),
			Operation: "assign",
		}
	}

	tech, err := h.directory.FindTechnician(ctx, cmd.TechnicianID)
	if err != nil {
		return nil, err
	}

	from := ticket.Status
	now := time.Now()
	ticket.Status = domain.StatusAssigned
	ticket.AssignedTechID = &tech.ID
	ticket.AssignedAt = &now

	if err := h.tickets.Transition(ctx, ticket, from); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketAssign), ticketRef(ticket.ID), false,
			map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("failed to assign ticket: %w", err)
	}

	h.audit.Record(ctx, actor, string(policy.OpTicketAssign), ticketRef(ticket.ID), true, map[string]any{
		"number":        ticket.Number,
		"technician_id": tech.ID,
		"from":          string(from),
		"to":            string(ticket.Status),
	})
	return ticket, nil
}
