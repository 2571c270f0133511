package query

import (
	"context"

	ivdomain "github.com/fieldops/fieldservice/internal/intervention/domain"
	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// GetTicketQuery represents the query for a single ticket
type GetTicketQuery struct {
	TicketID          uint
	WithInterventions bool
}

// TicketResult carries a ticket with its recorded interventions.
type TicketResult struct {
	Ticket        *domain.Ticket          `json:"ticket"`
	Interventions []ivdomain.Intervention `json:"interventions,omitempty"`
}

// GetTicketHandler handles single ticket queries
type GetTicketHandler struct {
	tickets       domain.Repository
	interventions ivdomain.Repository
}

// NewGetTicketHandler creates a new get ticket handler
func NewGetTicketHandler(tickets domain.Repository, interventions ivdomain.Repository) *GetTicketHandler {
	return &GetTicketHandler{tickets: tickets, interventions: interventions}
}

// Handle returns one ticket, optionally with its interventions.
func (h *GetTicketHandler) Handle(ctx context.Context, q GetTicketQuery) (*TicketResult, error) {
	if q.TicketID == 0 {
		return nil, &apperrors.ValidationError{Field: "ticket_id", Reason: "ticket_id is required"}
	}
	ticket, err := h.tickets.FindByID(ctx, q.TicketID)
	if err != nil {
		return nil, err
	}
	result := &TicketResult{Ticket: ticket}
	if q.WithInterventions {
		interventions, err := h.interventions.FindByTicketID(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		result.Interventions = interventions
	}
	return result, nil
}
