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

// WaitTicketCommand represents the command to put a ticket on hold
type WaitTicketCommand struct {
	TicketID uint
	Reason   string
}

// WaitTicketHandler handles wait ticket commands
type WaitTicketHandler struct {
	tickets domain.Repository
	policy  *policy.Evaluator
	locks   *locking.Manager
	audit   *audit.Recorder
}

// NewWaitTicketHandler creates a new wait ticket handler
func NewWaitTicketHandler(tickets domain.Repository, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) *WaitTicketHandler {
	return &WaitTicketHandler{tickets: tickets, policy: pol, locks: locks, audit: rec}
}

// Handle moves a ticket from in_progress into waiting.
func (h *WaitTicketHandler) Handle(ctx context.Context, cmd WaitTicketCommand, actor identity.Actor) (*domain.Ticket, error) {
	if err := h.policy.Authorize(actor, policy.OpTicketWait); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketWait), ticketRef(cmd.TicketID), false,
			map[string]any{"error": err.Error()})
		return nil, err
	}

	ticket, release, err := lockAndFetch(ctx, h.locks, h.tickets, cmd.TicketID)
	if err != nil {
		return nil, err
	}
	defer release()

	if ticket.Status != domain.StatusInProgress {
		return nil, &apperrors.StateTransitionError{
			Entity:    "ticket",
			Ref:       ticket.Number,
			Current:   string(ticket.Status),
			Operation: "wait",
		}
	}

	if !actor.IsStaff() && !ticket.IsAssignedTo(actor.ID) {
		return nil, &apperrors.AuthorizationError{
			Role:      string(actor.Role),
			Operation: string(policy.OpTicketWait),
			Reason:    "ticket is assigned to another technician",
		}
	}

	from := ticket.Status
	ticket.Status = domain.StatusWaiting
	ticket.WaitReason = cmd.Reason

	if err := h.tickets.Transition(ctx, ticket, from); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketWait), ticketRef(ticket.ID), false,
			map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("failed to put ticket on hold: %w", err)
	}

	h.audit.Record(ctx, actor, string(policy.OpTicketWait), ticketRef(ticket.ID), true, map[string]any{
		"number": ticket.Number,
		"reason": cmd.Reason,
		"from":   string(from),
		"to":     string(ticket.Status),
	})
	return ticket, nil
}
