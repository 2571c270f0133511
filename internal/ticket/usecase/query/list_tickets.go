package query

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// ListTicketsQuery represents the ticket listing query
type ListTicketsQuery struct {
	Status         *domain.Status
	ClientID       *uint
	AssignedTechID *uint
	Limit          int
	Offset         int
}

// ListTicketsHandler handles ticket listing queries
type ListTicketsHandler struct {
	tickets domain.Repository
}

// NewListTicketsHandler creates a new list tickets handler
func NewListTicketsHandler(tickets domain.Repository) *ListTicketsHandler {
	return &ListTicketsHandler{tickets: tickets}
}

// Handle lists tickets matching the filter, newest first.
func (h *ListTicketsHandler) Handle(ctx context.Context, q ListTicketsQuery) ([]domain.Ticket, error) {
	if q.Status != nil && !q.Status.Valid() {
		return nil, &apperrors.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *q.Status)}
	}
	return h.tickets.FindAll(ctx, domain.Filter{
		Status:         q.Status,
		ClientID:       q.ClientID,
		AssignedTechID: q.AssignedTechID,
		Limit:          q.Limit,
		Offset:         q.Offset,
	})
}
