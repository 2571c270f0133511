// Package policy centralizes the (role, operation) access table. Every
// mutating operation queries it before touching any state, so role
// checks never spread into individual handlers.
package policy

import (
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// Operation names a gated engine operation.
type Operation string

const (
	OpTicketCreate       Operation = "ticket.create"
	OpTicketAssign       Operation = "ticket.assign"
	OpTicketStart        Operation = "ticket.start"
	OpTicketWait         Operation = "ticket.wait"
	OpTicketClose        Operation = "ticket.close"
	OpTicketCancel       Operation = "ticket.cancel"
	OpTicketRead         Operation = "ticket.read"
	OpInterventionRecord Operation = "intervention.record"
	OpStockMovementApply Operation = "stock.apply_movement"
	OpStockRead          Operation = "stock.read"
	OpPartManage         Operation = "part.manage"
)

// rules enumerates the allowed roles per operation. There is no implicit
// hierarchy: a role absent from an operation's row is denied, admin
// included; an operation absent from the table denies everyone.
var rules = map[Operation][]identity.Role{
	OpTicketCreate:       {identity.RoleAdmin, identity.RoleSupervisor, identity.RoleTechnician},
	OpTicketAssign:       {identity.RoleAdmin, identity.RoleSupervisor},
	OpTicketStart:        {identity.RoleAdmin, identity.RoleSupervisor, identity.RoleTechnician},
	OpTicketWait:         {identity.RoleAdmin, identity.RoleSupervisor, identity.RoleTechnician},
	OpTicketClose:        {identity.RoleAdmin, identity.RoleSupervisor, identity.RoleTechnician},
	OpTicketCancel:       {identity.RoleAdmin, identity.RoleSupervisor},
	OpInterventionRecord: {identity.RoleAdmin, identity.RoleSupervisor, identity.RoleTechnician},
	OpStockMovementApply: {identity.RoleAdmin, identity.RoleSupervisor},
	OpPartManage:         {identity.RoleAdmin, identity.RoleSupervisor},
	OpTicketRead: {identity.RoleAdmin, identity.RoleSupervisor, identity.RoleTechnician,
		identity.RoleReferent, identity.RoleManufacturer},
	OpStockRead: {identity.RoleAdmin, identity.RoleSupervisor, identity.RoleTechnician,
		identity.RoleReferent, identity.RoleManufacturer},
}

// Evaluator answers allow/deny for (role, operation) pairs. It carries
// no state beyond the compiled rule table.
type Evaluator struct {
	allowed map[Operation]map[identity.Role]struct{}
}

// NewEvaluator compiles the rule table into an evaluator.
func NewEvaluator() *Evaluator {
	allowed := make(map[Operation]map[identity.Role]struct{}, len(rules))
	for op, roles := range rules {
		set := make(map[identity.Role]struct{}, len(roles))
		for _, r := range roles {
			set[r] = struct{}{}
		}
		allowed[op] = set
	}
	return &Evaluator{allowed: allowed}
}

// Allowed reports whether role may perform op.
func (e *Evaluator) Allowed(role identity.Role, op Operation) bool {
	set, ok := e.allowed[op]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

// Authorize returns an AuthorizationError when the actor's role may not
// perform op.
func (e *Evaluator) Authorize(actor identity.Actor, op Operation) error {
	if e.Allowed(actor.Role, op) {
		return nil
	}
	return &apperrors.AuthorizationError{Role: string(actor.Role), Operation: string(op)}
}
