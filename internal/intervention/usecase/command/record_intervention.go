package command

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/fieldservice/internal/audit"
	"github.com/fieldops/fieldservice/internal/identity"
	"github.com/fieldops/fieldservice/internal/intervention/domain"
	invdomain "github.com/fieldops/fieldservice/internal/inventory/domain"
	"github.com/fieldops/fieldservice/internal/policy"
	tkdomain "github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// RecordInterventionCommand represents the command to record one work
// session against a ticket.
type RecordInterventionCommand struct {
	TicketID         uint
	StartedAt        time.Time
	EndedAt          *time.Time
	WorkDescription  string
	TimeSpentMinutes int
	DistanceKM       float64
	Photos           []string
	PartsUsed        []domain.PartUsage
	SignatureRef     string
	SignatoryName    string
	Satisfaction     *int
	InternalComment  string
	ExternalComment  string
	FinalCost        float64
	Billable         bool
}

// RecordInterventionHandler handles record intervention commands
type RecordInterventionHandler struct {
	tickets       tkdomain.Repository
	interventions domain.Repository
	policy        *policy.Evaluator
	locks         *locking.Manager
	audit         *audit.Recorder
}

// NewRecordInterventionHandler creates a new record intervention handler
func NewRecordInterventionHandler(tickets tkdomain.Repository, interventions domain.Repository, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) *RecordInterventionHandler {
	return &RecordInterventionHandler{tickets: tickets, interventions: interventions, policy: pol, locks: locks, audit: rec}
}

// Handle records an intervention. Part consumption and the intervention
// record commit together or not at all: an insufficient stock on any
// listed part rejects the whole record.
func (h *RecordInterventionHandler) Handle(ctx context.Context, cmd RecordInterventionCommand, actor identity.Actor) (*domain.Intervention, error) {
	targetRef := fmt.Sprintf("ticket/%d", cmd.TicketID)

	if err := h.policy.Authorize(actor, policy.OpInterventionRecord); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpInterventionRecord), targetRef, false,
			map[string]any{"error": err.Error()})
		return nil, err
	}

	if err := validate(cmd); err != nil {
		return nil, err
	}

	// Ticket lock first, then part locks in ascending part order.
	releaseTicket, err := h.locks.Acquire(ctx, locking.TicketKey(cmd.TicketID))
	if err != nil {
		return nil, err
	}
	defer releaseTicket()

	ticket, err := h.tickets.FindByID(ctx, cmd.TicketID)
	if err != nil {
		return nil, err
	}

	switch ticket.Status {
	case tkdomain.StatusAssigned, tkdomain.StatusInProgress, tkdomain.StatusWaiting:
	default:
		return nil, &apperrors.StateTransitionError{
			Entity:    "ticket",
			Ref:       ticket.Number,
			Current:   string(ticket.Status),
			Operation: "record_intervention",
		}
	}

	if !actor.IsStaff() && !ticket.IsAssignedTo(actor.ID) {
		err := &apperrors.AuthorizationError{
			Role:      string(actor.Role),
			Operation: string(policy.OpInterventionRecord),
			Reason:    "ticket is assigned to another technician",
		}
		h.audit.Record(ctx, actor, string(policy.OpInterventionRecord), targetRef, false,
			map[string]any{"error": err.Error()})
		return nil, err
	}

	if len(cmd.PartsUsed) > 0 {
		partKeys := make([]string, 0, len(cmd.PartsUsed))
		for _, usage := range cmd.PartsUsed {
			partKeys = append(partKeys, locking.PartKey(usage.PartID))
		}
		releaseParts, err := h.locks.AcquireMany(ctx, partKeys)
		if err != nil {
			return nil, err
		}
		defer releaseParts()
	}

	intervention := &domain.Intervention{
		TicketID:         ticket.ID,
		TechnicianID:     actor.ID,
		StartedAt:        cmd.StartedAt,
		EndedAt:          cmd.EndedAt,
		WorkDescription:  cmd.WorkDescription,
		TimeSpentMinutes: cmd.TimeSpentMinutes,
		DistanceKM:       cmd.DistanceKM,
		Photos:           cmd.Photos,
		PartsUsed:        cmd.PartsUsed,
		SignatureRef:     cmd.SignatureRef,
		SignatoryName:    cmd.SignatoryName,
		Satisfaction:     cmd.Satisfaction,
		InternalComment:  cmd.InternalComment,
		ExternalComment:  cmd.ExternalComment,
		FinalCost:        cmd.FinalCost,
		Billable:         cmd.Billable,
	}

	movements := make([]*invdomain.StockMovement, 0, len(cmd.PartsUsed))
	for _, usage := range cmd.PartsUsed {
		movements = append(movements, &invdomain.StockMovement{
			PartID:   usage.PartID,
			Type:     invdomain.MovementOutbound,
			Quantity: -usage.Quantity,
			Reason:   "intervention consumption",
			ActorID:  actor.ID,
		})
	}

	if err := h.interventions.CreateWithConsumption(ctx, intervention, movements); err != nil {
		h.audit.Record(ctx, actor, string(policy.OpInterventionRecord), targetRef, false, map[string]any{
			"parts_used": len(cmd.PartsUsed),
			"error":      err.Error(),
		})
		return nil, err
	}

	h.audit.Record(ctx, actor, string(policy.OpInterventionRecord), targetRef, true, map[string]any{
		"intervention_id": intervention.ID,
		"ticket_number":   ticket.Number,
		"time_spent_min":  cmd.TimeSpentMinutes,
		"parts_used":      len(cmd.PartsUsed),
	})
	return intervention, nil
}

func validate(cmd RecordInterventionCommand) error {
	if cmd.TicketID == 0 {
		return &apperrors.ValidationError{Field: "ticket_id", Reason: "ticket_id is required"}
	}
	if cmd.TimeSpentMinutes < 0 {
		return &apperrors.ValidationError{Field: "time_spent_minutes", Reason: "time spent must not be negative"}
	}
	if cmd.Satisfaction != nil && (*cmd.Satisfaction < 1 || *cmd.Satisfaction > 5) {
		return &apperrors.ValidationError{Field: "satisfaction", Reason: "satisfaction score must be between 1 and 5"}
	}
	if cmd.EndedAt != nil && cmd.EndedAt.Before(cmd.StartedAt) {
		return &apperrors.ValidationError{Field: "ended_at", Reason: "end time precedes start time"}
	}
	for i, usage := range cmd.PartsUsed {
		if usage.PartID == 0 {
			return &apperrors.ValidationError{Field: fmt.Sprintf("parts_used[%d].part_id", i), Reason: "part reference is required"}
		}
		if usage.Quantity <= 0 {
			return &apperrors.ValidationError{Field: fmt.Sprintf("parts_used[%d].quantity", i), Reason: "quantity must be positive"}
		}
	}
	return nil
}
