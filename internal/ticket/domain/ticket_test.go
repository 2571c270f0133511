package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransition(t *testing.T) {
	testCases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusOpen, StatusAssigned, true},
		{StatusOpen, StatusInProgress, false},
		{StatusOpen, StatusClosed, false},
		{StatusAssigned, StatusInProgress, true},
		{StatusAssigned, StatusClosed, false},
		{StatusInProgress, StatusWaiting, true},
		{StatusInProgress, StatusClosed, true},
		{StatusWaiting, StatusInProgress, true},
		{StatusWaiting, StatusClosed, false},
		{StatusClosed, StatusOpen, false},
		{StatusClosed, StatusInProgress, false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestStatus_CancellationReachableFromNonTerminalOnly(t *testing.T) {
	for _, from := range []Status{StatusOpen, StatusAssigned, StatusInProgress, StatusWaiting} {
		assert.True(t, from.CanTransition(StatusCancelled), "cancel from %s", from)
	}
	assert.False(t, StatusClosed.CanTransition(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransition(StatusCancelled))
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusClosed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusOpen.Terminal())
	assert.False(t, StatusWaiting.Terminal())
}

func TestStatus_UnknownStatusNeverTransitions(t *testing.T) {
	bogus := Status("archived")
	assert.False(t, bogus.Valid())
	assert.False(t, bogus.CanTransition(StatusClosed))
	assert.False(t, StatusOpen.CanTransition(bogus))
}

func TestTicket_IsAssignedTo(t *testing.T) {
	techID := uint(42)
	ticket := &Ticket{AssignedTechID: &techID}
	assert.True(t, ticket.IsAssignedTo(42))
	assert.False(t, ticket.IsAssignedTo(7))
	assert.False(t, (&Ticket{}).IsAssignedTo(42))
}
