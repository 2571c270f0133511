package command

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/fieldservice/internal/audit"
	"github.com/fieldops/fieldservice/internal/identity"
	ivdomain "github.com/fieldops/fieldservice/internal/intervention/domain"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// CloseTicketCommand represents the command to close a ticket
type CloseTicketCommand struct {
	TicketID              uint
	ClosingInterventionID uint
}

// CloseTicketHandler handles close ticket commands
type CloseTicketHandler struct {
	tickets       domain.Repository
	interventions ivdomain.Repository
	policy        *policy.Evaluator
	locks         *locking.Manager
	audit         *audit.Recorder
}

// NewCloseTicketHandler creates a new close ticket handler
func NewCloseTicketHandler(tickets domain.Repository, interventions ivdomain.Repository, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) *CloseTicketHandler {
	return &CloseTicketHandler{tickets: tickets, interventions: interventions, policy: pol, locks: locks, audit: rec}
}

// Handle closes a ticket. Legal only from in_progress, and only once at
// least one intervention has been recorded: closing without recorded
// work is rejected.
func (h *CloseTicketHandler) Handle(ctx context.Context, cmd CloseTicketCommand, actor identity.Actor) (*domain.Ticket, error) {
	if err := h.policy.Authorize(actor, policy.OpTicketClose); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketClose), ticketRef(cmd.TicketID), false,
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
			Operation: "close",
		}
	}

	if !actor.IsStaff() && !ticket.IsAssignedTo(actor.ID) {
		return nil, &apperrors.AuthorizationError{
			Role:      string(actor.Role),
			Operation: string(policy.OpTicketClose),
			Reason:    "ticket is assigned to another technician",
		}
	}

	count, err := h.interventions.CountByTicketID(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count interventions: %w", err)
	}
	if count == 0 {
		return nil, &apperrors.StateTransitionError{
			Entity:    "ticket",
			Ref:       ticket.Number,
			Current:   string(ticket.Status),
			Operation: "close",
			Reason:    "no intervention has been recorded",
		}
	}

	if cmd.ClosingInterventionID != 0 {
		intervention, err := h.interventions.FindByID(ctx, cmd.ClosingInterventionID)
		if err != nil {
			return nil, err
		}
		if intervention.TicketID != ticket.ID {
			return nil, &apperrors.IntegrityError{
				Reason: fmt.Sprintf("intervention %d belongs to ticket %d, not ticket %d",
					intervention.ID, intervention.TicketID, ticket.ID),
			}
		}
	}

	from := ticket.Status
	now := time.Now()
	ticket.Status = domain.StatusClosed
	ticket.ClosedAt = &now

	if err := h.tickets.Transition(ctx, ticket, from); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpTicketClose), ticketRef(ticket.ID), false,
			map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("failed to close ticket: %w", err)
	}

	h.audit.Record(ctx, actor, string(policy.OpTicketClose), ticketRef(ticket.ID), true, map[string]any{
		"number":                  ticket.Number,
		"closing_intervention_id": cmd.ClosingInterventionID,
		"interventions":           count,
		"from":                    string(from),
		"to":                      string(ticket.Status),
	})
	return ticket, nil
}
