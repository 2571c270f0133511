package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

func TestEvaluator_Allowed(t *testing.T) {
	eval := NewEvaluator()

	testCases := []struct {
		name    string
		role    identity.Role
		op      Operation
		allowed bool
	}{
		{"technician may create tickets", identity.RoleTechnician, OpTicketCreate, true},
		{"referent may not create tickets", identity.RoleReferent, OpTicketCreate, false},
		{"manufacturer may not create tickets", identity.RoleManufacturer, OpTicketCreate, false},
		{"supervisor may assign", identity.RoleSupervisor, OpTicketAssign, true},
		{"technician may not assign", identity.RoleTechnician, OpTicketAssign, false},
		{"technician may not cancel", identity.RoleTechnician, OpTicketCancel, false},
		{"admin may cancel", identity.RoleAdmin, OpTicketCancel, true},
		{"technician may record interventions", identity.RoleTechnician, OpInterventionRecord, true},
		{"technician may not apply manual stock movements", identity.RoleTechnician, OpStockMovementApply, false},
		{"supervisor may apply manual stock movements", identity.RoleSupervisor, OpStockMovementApply, true},
		{"referent may read tickets", identity.RoleReferent, OpTicketRead, true},
		{"manufacturer may read stock", identity.RoleManufacturer, OpStockRead, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, eval.Allowed(tc.role, tc.op))
		})
	}
}

// Admin holds no implicit grant: an operation missing from the table
// denies every role, admin included.
func TestEvaluator_UnknownOperationDeniesAdmin(t *testing.T) {
	eval := NewEvaluator()
	assert.False(t, eval.Allowed(identity.RoleAdmin, Operation("ticket.purge")))
}

func TestEvaluator_Authorize(t *testing.T) {
	eval := NewEvaluator()

	err := eval.Authorize(identity.Actor{ID: 7, Role: identity.RoleTechnician}, OpTicketAssign)
	assert.True(t, apperrors.IsAuthorization(err))

	err = eval.Authorize(identity.Actor{ID: 1, Role: identity.RoleAdmin}, OpTicketAssign)
	assert.NoError(t, err)
}
