package command

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// lockAndFetch acquires the ticket's exclusive lock, then loads it. The
// caller must invoke the returned release function.
func lockAndFetch(ctx context.Context, locks *locking.Manager, tickets domain.Repository, ticketID uint) (*domain.Ticket, func(), error) {
	release, err := locks.Acquire(ctx, locking.TicketKey(ticketID))
	if err != nil {
		return nil, nil, err
	}
	ticket, err := tickets.FindByID(ctx, ticketID)
	if err != nil {
		release()
		return nil, nil, err
	}
	return ticket, release, nil
}

func ticketRef(id uint) string {
	return fmt.Sprintf("ticket/%d", id)
}
