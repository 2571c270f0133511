package command

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/fieldservice/internal/audit"
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// StartTicketCommand represents the command to start work on a ticket
type StartTicketCommand struct {
	TicketID uint
}

// StartTicketHandler handles start ticket commands
type StartTicketHandler struct {
	tickets domain.Repository
	policy  *policy.Evaluator
	locks   *locking.Manager
	audit   *audit.Recorder
}

// NewStartTicketHandler creates a new start ticket handler
func NewStartTicketHandler(tickets domain.Repository, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) *StartTicketHandler {
	return &StartTicketHandler{tickets: tickets, policy: pol, locks: locks, audit: rec}
}

// Handle moves a ticket into in_progress. Legal from assigned or
// waiting; a technician actor must be the assigned technician.
func (h *StartTicketHandler) Handle(ctx context.Context, cmd StartTicketCommand, actor identity.Actor) (*domain.Ticket, error) {
	if err := h.policy.Authorize(actor, policy.OpTicketStart); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketStart), ticketRef(cmd.TicketID), false,
			map[string]any{"error": err.Error()})
		return nil, err
	}

	ticket, release, err := lockAndFetch(ctx, h.locks, h.tickets, cmd.TicketID)
	if err != nil {
		return nil, err
	}
	defer release()

	if ticket.Status != domain.StatusAssigned && ticket.Status != domain.StatusWaiting {
		return nil, &apperrors.StateTransitionError{
			Entity:    "ticket",
			Ref:       ticket.Number,
			Current:   string(ticket.Status),
			Operation: "start",
		}
	}

	if !actor.IsStaff() && !ticket.IsAssignedTo(actor.ID) {
		err := &apperrors.AuthorizationError{
			Role:      string(actor.Role),
			Operation: string(policy.OpTicketStart),
			Reason:    "ticket is assigned to another technician",
		}
		h.audit.Record(ctx, actor, string(policy.OpTicketStart), ticketRef(ticket.ID), false,
			map[string]any{"error": err.Error()})
		return nil, err
	}

	from := ticket.Status
	ticket.Status = domain.StatusInProgress
	if ticket.StartedAt == nil {
		now := time.Now()
		ticket.StartedAt = &now
	}

	if err := h.tickets.Transition(ctx, ticket, from); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketStart), ticketRef(ticket.ID), false,
			map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("failed to start ticket: %w", err)
	}

	h.audit.Record(ctx, actor, string(policy.OpTicketStart), ticketRef(ticket.ID), true, map[string]any{
		"number": ticket.Number,
		"from":   string(from),
		"to":     string(ticket.Status),
	})
	return ticket, nil
}
