package command

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldservice/internal/audit"
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// CancelTicketCommand represents the command to cancel a ticket
type CancelTicketCommand struct {
	TicketID uint
	Reason   string
}

// CancelTicketHandler handles cancel ticket commands
type CancelTicketHandler struct {
	tickets domain.Repository
	policy  *policy.Evaluator
	locks   *locking.Manager
	audit   *audit.Recorder
}

// NewCancelTicketHandler creates a new cancel ticket handler
func NewCancelTicketHandler(tickets domain.Repository, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) *CancelTicketHandler {
	return &CancelTicketHandler{tickets: tickets, policy: pol, locks: locks, audit: rec}
}

// Handle cancels a ticket. Legal from any non-terminal state;
// cancelling an already-terminal ticket is an error, not a no-op.
func (h *CancelTicketHandler) Handle(ctx context.Context, cmd CancelTicketCommand, actor identity.Actor) (*domain.Ticket, error) {
	if err := h.policy.Authorize(actor, policy.OpTicketCancel); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketCancel), ticketRef(cmd.TicketID), false,
			map[string]any{"error": err.Error()})
		return nil, err
	}

	ticket, release, err := lockAndFetch(ctx, h.locks, h.tickets, cmd.TicketID)
	if err != nil {
		return nil, err
	}
	defer release()

	if ticket.Status.Terminal() {
		return nil, &apperrors.StateTransitionError{
			Entity:    "ticket",
			Ref:       ticket.Number,
			Current:   string(ticket.Status),
			Operation: "cancel",
		}
	}

	from := ticket.Status
	ticket.Status = domain.StatusCancelled
	ticket.CancelReason = cmd.Reason

	if err := h.tickets.Transition(ctx, ticket, from); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketCancel), ticketRef(ticket.ID), false,
			map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("failed to cancel ticket: %w", err)
	}

	h.audit.Record(ctx, actor, string(policy.OpTicketCancel), ticketRef(ticket.ID), true, map[string]any{
		"number": ticket.Number,
		"reason": cmd.Reason,
		"from":   string(from),
		"to":     string(ticket.Status),
	})
	return ticket, nil
}
