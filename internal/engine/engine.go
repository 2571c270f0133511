// Package engine is the composition root and operation surface of the
// core. It wires the subsystems together, instruments every operation
// and emits domain events after successful commits.
package engine

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/fieldops/fieldservice/internal/audit"
	auditdomain "github.com/fieldops/fieldservice/internal/audit/domain"
	auditrepo "github.com/fieldops/fieldservice/internal/audit/repository"
	catdomain "github.com/fieldops/fieldservice/internal/catalog/domain"
	catrepo "github.com/fieldops/fieldservice/internal/catalog/repository"
	"github.com/fieldops/fieldservice/internal/identity"
	ivdomain "github.com/fieldops/fieldservice/internal/intervention/domain"
	ivrepo "github.com/fieldops/fieldservice/internal/intervention/repository"
	ivcommand "github.com/fieldops/fieldservice/internal/intervention/usecase/command"
	invdomain "github.com/fieldops/fieldservice/internal/inventory/domain"
	invrepo "github.com/fieldops/fieldservice/internal/inventory/repository"
	invcommand "github.com/fieldops/fieldservice/internal/inventory/usecase/command"
	invquery "github.com/fieldops/fieldservice/internal/inventory/usecase/query"
	"github.com/fieldops/fieldservice/internal/policy"
	tkdomain "github.com/fieldops/fieldservice/internal/ticket/domain"
	tkrepo "github.com/fieldops/fieldservice/internal/ticket/repository"
	tkcommand "github.com/fieldops/fieldservice/internal/ticket/usecase/command"
	tkquery "github.com/fieldops/fieldservice/internal/ticket/usecase/query"
	"github.com/fieldops/fieldservice/kafka"
	"github.com/fieldops/fieldservice/pkg/locking"
	"github.com/fieldops/fieldservice/pkg/logger"
)

// EventPublisher is the after-commit event sink. A nil publisher
// disables emission; publish failures are logged, never propagated.
type EventPublisher interface {
	PublishTicketStatusChanged(ctx context.Context, event kafka.TicketStatusChangedEvent) error
	PublishInterventionRecorded(ctx context.Context, event kafka.InterventionRecordedEvent) error
	PublishPartStockChanged(ctx context.Context, event kafka.PartStockChangedEvent) error
}

// Engine exposes the core operations consumed by the excluded API
// layer. Every call takes an already-authenticated actor.
type Engine struct {
	tickets       tkdomain.Repository
	parts         invdomain.PartRepository
	interventions ivdomain.Repository

	createTicket  *tkcommand.CreateTicketHandler
	assignTicket  *tkcommand.AssignTicketHandler
	startTicket   *tkcommand.StartTicketHandler
	waitTicket    *tkcommand.WaitTicketHandler
	closeTicket   *tkcommand.CloseTicketHandler
	cancelTicket  *tkcommand.CancelTicketHandler
	recordWork    *ivcommand.RecordInterventionHandler
	applyMovement *invcommand.ApplyMovementHandler
	createPart    *invcommand.CreatePartHandler
	deletePart    *invcommand.DeletePartHandler

	getTicket       *tkquery.GetTicketHandler
	listTickets     *tkquery.ListTicketsHandler
	partStock       *invquery.PartStockHandler
	checkThresholds *invquery.CheckThresholdsHandler
	movementHistory *invquery.MovementHistoryHandler
	auditTrail      auditdomain.Repository

	publisher EventPublisher

	registry   *prometheus.Registry
	opsTotal   *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	lowStock   *prometheus.GaugeVec
}

// New wires the engine against the given database handle and lock
// manager. Publisher may be nil.
func New(db *gorm.DB, locks *locking.Manager, publisher EventPublisher) *Engine {
	pol := policy.NewEvaluator()
	recorder := audit.NewRecorder(auditrepo.NewGormAuditRepository(db))

	tickets := tkrepo.NewGormTicketRepository(db)
	parts := invrepo.NewTracingPartRepository(db)
	interventions := ivrepo.NewGormInterventionRepository(db)
	clients := catrepo.NewGormClientRepository(db)
	machines := catrepo.NewGormMachineRepository(db)
	directory := catrepo.NewGormTechnicianRepository(db)

	e := &Engine{
		tickets:       tickets,
		parts:         parts,
		interventions: interventions,

		createTicket:  tkcommand.NewCreateTicketHandler(tickets, clients, machines, pol, recorder),
		assignTicket:  tkcommand.NewAssignTicketHandler(tickets, directory, pol, locks, recorder),
		startTicket:   tkcommand.NewStartTicketHandler(tickets, pol, locks, recorder),
		waitTicket:    tkcommand.NewWaitTicketHandler(tickets, pol, locks, recorder),
		closeTicket:   tkcommand.NewCloseTicketHandler(tickets, interventions, pol, locks, recorder),
		cancelTicket:  tkcommand.NewCancelTicketHandler(tickets, pol, locks, recorder),
		recordWork:    ivcommand.NewRecordInterventionHandler(tickets, interventions, pol, locks, recorder),
		applyMovement: invcommand.NewApplyMovementHandler(parts, pol, locks, recorder),
		createPart:    invcommand.NewCreatePartHandler(parts, pol, recorder),
		deletePart:    invcommand.NewDeletePartHandler(parts, pol, recorder),

		getTicket:       tkquery.NewGetTicketHandler(tickets, interventions),
		listTickets:     tkquery.NewListTicketsHandler(tickets),
		partStock:       invquery.NewPartStockHandler(parts),
		checkThresholds: invquery.NewCheckThresholdsHandler(parts),
		movementHistory: invquery.NewMovementHistoryHandler(parts),
		auditTrail:      auditrepo.NewGormAuditRepository(db),

		publisher: publisher,
	}
	e.registerMetrics()
	return e
}

func (e *Engine) registerMetrics() {
	e.registry = prometheus.NewRegistry()
	e.opsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldservice_operations_total",
			Help: "Total number of engine operations",
		},
		[]string{"operation", "outcome"},
	)
	e.opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldservice_operation_duration_seconds",
			Help:    "Duration of engine operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	e.lowStock = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldservice_part_low_stock",
			Help: "1 when a part's stock is at or below its minimum",
		},
		[]string{"reference"},
	)

	e.registry.MustRegister(e.opsTotal)
	e.registry.MustRegister(e.opDuration)
	e.registry.MustRegister(e.lowStock)
}

// Registry exposes the engine's metric registry for the operational
// metrics endpoint.
func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}

// AutoMigrate creates or updates the schema for every engine entity.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&catdomain.Client{},
		&catdomain.Machine{},
		&catdomain.Technician{},
		&tkdomain.Ticket{},
		&tkdomain.Sequence{},
		&ivdomain.Intervention{},
		&invdomain.Part{},
		&invdomain.StockMovement{},
		&auditdomain.Entry{},
	)
}

func (e *Engine) observe(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	e.opsTotal.WithLabelValues(operation, outcome).Inc()
	e.opDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// CreateTicket creates a ticket in status open.
func (e *Engine) CreateTicket(ctx context.Context, cmd tkcommand.CreateTicketCommand, actor identity.Actor) (*tkdomain.Ticket, error) {
	start := time.Now()
	ticket, err := e.createTicket.Handle(ctx, cmd, actor)
	e.observe("create_ticket", start, err)
	if err != nil {
		return nil, err
	}
	e.publishTicketStatus(ctx, ticket, "", actor)
	return ticket, nil
}

// AssignTicket assigns an open ticket to a technician.
func (e *Engine) AssignTicket(ctx context.Context, cmd tkcommand.AssignTicketCommand, actor identity.Actor) (*tkdomain.Ticket, error) {
	start := time.Now()
	ticket, err := e.assignTicket.Handle(ctx, cmd, actor)
	e.observe("assign_ticket", start, err)
	if err != nil {
		return nil, err
	}
	e.publishTicketStatus(ctx, ticket, tkdomain.StatusOpen, actor)
	return ticket, nil
}

// StartTicket moves a ticket into in_progress.
func (e *Engine) StartTicket(ctx context.Context, cmd tkcommand.StartTicketCommand, actor identity.Actor) (*tkdomain.Ticket, error) {
	start := time.Now()
	from := e.peekStatus(ctx, cmd.TicketID)
	ticket, err := e.startTicket.Handle(ctx, cmd, actor)
	e.observe("start_ticket", start, err)
	if err != nil {
		return nil, err
	}
	e.publishTicketStatus(ctx, ticket, from, actor)
	return ticket, nil
}

// WaitTicket puts an in-progress ticket on hold.
func (e *Engine) WaitTicket(ctx context.Context, cmd tkcommand.WaitTicketCommand, actor identity.Actor) (*tkdomain.Ticket, error) {
	start := time.Now()
	ticket, err := e.waitTicket.Handle(ctx, cmd, actor)
	e.observe("wait_ticket", start, err)
	if err != nil {
		return nil, err
	}
	e.publishTicketStatus(ctx, ticket, tkdomain.StatusInProgress, actor)
	return ticket, nil
}

// CloseTicket closes an in-progress ticket with recorded work.
func (e *Engine) CloseTicket(ctx context.Context, cmd tkcommand.CloseTicketCommand, actor identity.Actor) (*tkdomain.Ticket, error) {
	start := time.Now()
	ticket, err := e.closeTicket.Handle(ctx, cmd, actor)
	e.observe("close_ticket", start, err)
	if err != nil {
		return nil, err
	}
	e.publishTicketStatus(ctx, ticket, tkdomain.StatusInProgress, actor)
	return ticket, nil
}

// CancelTicket cancels a non-terminal ticket.
func (e *Engine) CancelTicket(ctx context.Context, cmd tkcommand.CancelTicketCommand, actor identity.Actor) (*tkdomain.Ticket, error) {
	start := time.Now()
	from := e.peekStatus(ctx, cmd.TicketID)
	ticket, err := e.cancelTicket.Handle(ctx, cmd, actor)
	e.observe("cancel_ticket", start, err)
	if err != nil {
		return nil, err
	}
	e.publishTicketStatus(ctx, ticket, from, actor)
	return ticket, nil
}

// RecordIntervention records one work session, consuming parts
// atomically when listed.
func (e *Engine) RecordIntervention(ctx context.Context, cmd ivcommand.RecordInterventionCommand, actor identity.Actor) (*ivdomain.Intervention, error) {
	start := time.Now()
	intervention, err := e.recordWork.Handle(ctx, cmd, actor)
	e.observe("record_intervention", start, err)
	if err != nil {
		return nil, err
	}

	if e.publisher != nil {
		event := kafka.InterventionRecordedEvent{
			InterventionID: intervention.ID,
			TicketID:       intervention.TicketID,
			TechnicianID:   intervention.TechnicianID,
			PartsUsed:      len(intervention.PartsUsed),
		}
		if err := e.publisher.PublishInterventionRecorded(ctx, event); err != nil {
			logger.Error(ctx).Err(err).Uint("intervention_id", intervention.ID).
				Msg("Failed to publish intervention recorded event")
		}
	}
	for _, usage := range intervention.PartsUsed {
		e.publishStockChanged(ctx, usage.PartID, string(invdomain.MovementOutbound))
	}
	return intervention, nil
}

// ApplyStockMovement applies one manual stock movement and returns the
// resulting stock level.
func (e *Engine) ApplyStockMovement(ctx context.Context, cmd invcommand.ApplyMovementCommand, actor identity.Actor) (int, error) {
	start := time.Now()
	newStock, err := e.applyMovement.Handle(ctx, cmd, actor)
	e.observe("apply_stock_movement", start, err)
	if err != nil {
		return 0, err
	}
	e.publishStockChanged(ctx, cmd.PartID, string(cmd.Type))
	return newStock, nil
}

// CreatePart adds a part to the catalog with zero opening stock.
func (e *Engine) CreatePart(ctx context.Context, cmd invcommand.CreatePartCommand, actor identity.Actor) (*invdomain.Part, error) {
	start := time.Now()
	part, err := e.createPart.Handle(ctx, cmd, actor)
	e.observe("create_part", start, err)
	return part, err
}

// DeletePart removes a part without stock or ledger history.
func (e *Engine) DeletePart(ctx context.Context, cmd invcommand.DeletePartCommand, actor identity.Actor) error {
	start := time.Now()
	err := e.deletePart.Handle(ctx, cmd, actor)
	e.observe("delete_part", start, err)
	return err
}

// QueryPartStock returns a part with its current stock.
func (e *Engine) QueryPartStock(ctx context.Context, q invquery.PartStockQuery) (*invquery.PartStockResult, error) {
	return e.partStock.Handle(ctx, q)
}

// CheckThresholds evaluates low-stock and overstock for a part.
func (e *Engine) CheckThresholds(ctx context.Context, q invquery.CheckThresholdsQuery) (*invdomain.ThresholdReport, error) {
	return e.checkThresholds.Handle(ctx, q)
}

// MovementHistory returns a part's ledger entries, newest first.
func (e *Engine) MovementHistory(ctx context.Context, q invquery.MovementHistoryQuery) ([]invdomain.StockMovement, error) {
	return e.movementHistory.Handle(ctx, q)
}

// GetTicket returns one ticket, optionally with interventions.
func (e *Engine) GetTicket(ctx context.Context, q tkquery.GetTicketQuery) (*tkquery.TicketResult, error) {
	return e.getTicket.Handle(ctx, q)
}

// ListTickets lists tickets matching the filter.
func (e *Engine) ListTickets(ctx context.Context, q tkquery.ListTicketsQuery) ([]tkdomain.Ticket, error) {
	return e.listTickets.Handle(ctx, q)
}

// AuditTrail returns the audit entries for a target reference.
func (e *Engine) AuditTrail(ctx context.Context, targetRef string, limit, offset int) ([]auditdomain.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.auditTrail.FindByTarget(ctx, targetRef, limit, offset)
}

// peekStatus reads a ticket's status for event metadata. Best effort:
// the authoritative from/to pair lives in the audit trail.
func (e *Engine) peekStatus(ctx context.Context, ticketID uint) tkdomain.Status {
	ticket, err := e.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return ""
	}
	return ticket.Status
}

func (e *Engine) publishTicketStatus(ctx context.Context, ticket *tkdomain.Ticket, from tkdomain.Status, actor identity.Actor) {
	if e.publisher == nil {
		return
	}
	event := kafka.TicketStatusChangedEvent{
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		FromStatus:   string(from),
		ToStatus:     string(ticket.Status),
		ActorID:      actor.ID,
	}
	if err := e.publisher.PublishTicketStatusChanged(ctx, event); err != nil {
		logger.Error(ctx).Err(err).Str("ticket_number", ticket.Number).
			Msg("Failed to publish ticket status event")
	}
}

func (e *Engine) publishStockChanged(ctx context.Context, partID uint, movementType string) {
	part, err := e.parts.FindByID(ctx, partID)
	if err != nil {
		logger.Error(ctx).Err(err).Uint("part_id", partID).
			Msg("Failed to load part for stock event")
		return
	}
	report := part.Check()
	gaugeValue := 0.0
	if report.LowStock {
		gaugeValue = 1.0
	}
	e.lowStock.WithLabelValues(part.Reference).Set(gaugeValue)

	if e.publisher == nil {
		return
	}
	event := kafka.PartStockChangedEvent{
		PartID:       part.ID,
		Reference:    part.Reference,
		MovementType: movementType,
		NewStock:     part.CurrentStock,
		LowStock:     report.LowStock,
	}
	if err := e.publisher.PublishPartStockChanged(ctx, event); err != nil {
		logger.Error(ctx).Err(err).Str("part_reference", part.Reference).
			Msg("Failed to publish stock changed event")
	}
}
