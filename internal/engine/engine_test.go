package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	catdomain "github.com/fieldops/fieldservice/internal/catalog/domain"
	"github.com/fieldops/fieldservice/internal/identity"
	ivdomain "github.com/fieldops/fieldservice/internal/intervention/domain"
	ivcommand "github.com/fieldops/fieldservice/internal/intervention/usecase/command"
	invdomain "github.com/fieldops/fieldservice/internal/inventory/domain"
	invcommand "github.com/fieldops/fieldservice/internal/inventory/usecase/command"
	invquery "github.com/fieldops/fieldservice/internal/inventory/usecase/query"
	tkdomain "github.com/fieldops/fieldservice/internal/ticket/domain"
	tkcommand "github.com/fieldops/fieldservice/internal/ticket/usecase/command"
	tkquery "github.com/fieldops/fieldservice/internal/ticket/usecase/query"
	"github.com/fieldops/fieldservice/kafka"
	"github.com/fieldops/fieldservice/pkg/apperrors"
	"github.com/fieldops/fieldservice/pkg/locking"
)

var (
	admin      = identity.Actor{ID: 1, Name: "ana", Role: identity.RoleAdmin}
	supervisor = identity.Actor{ID: 2, Name: "sofia", Role: identity.RoleSupervisor}
	technician = identity.Actor{ID: 10, Name: "marco", Role: identity.RoleTechnician}
	otherTech  = identity.Actor{ID: 11, Name: "lena", Role: identity.RoleTechnician}
)

// capturingPublisher records every emitted event for assertions.
type capturingPublisher struct {
	mu           sync.Mutex
	ticketEvents []kafka.TicketStatusChangedEvent
	workEvents   []kafka.InterventionRecordedEvent
	stockEvents  []kafka.PartStockChangedEvent
}

func (p *capturingPublisher) PublishTicketStatusChanged(ctx context.Context, event kafka.TicketStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticketEvents = append(p.ticketEvents, event)
	return nil
}

func (p *capturingPublisher) PublishInterventionRecorded(ctx context.Context, event kafka.InterventionRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workEvents = append(p.workEvents, event)
	return nil
}

func (p *capturingPublisher) PublishPartStockChanged(ctx context.Context, event kafka.PartStockChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stockEvents = append(p.stockEvents, event)
	return nil
}

// newTestEngine opens an isolated in-memory database per test and wires
// a full engine against it.
func newTestEngine(t *testing.T, name string, publisher EventPublisher) (*Engine, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	require.NoError(t, AutoMigrate(db))

	locks := locking.NewManager(2 * time.Second)
	return New(db, locks, publisher), db
}

func seedCatalog(t *testing.T, db *gorm.DB) (clientID, machineID uint) {
	t.Helper()

	client := catdomain.Client{Name: "Acme Vending", Status: "active"}
	require.NoError(t, db.Create(&client).Error)

	machine := catdomain.Machine{ClientID: client.ID, Model: "VX-200", SerialNumber: fmt.Sprintf("SN-%s-%d", t.Name(), client.ID)}
	require.NoError(t, db.Create(&machine).Error)

	for _, tech := range []identity.Actor{technician, otherTech} {
		require.NoError(t, db.Create(&catdomain.Technician{
			ID: tech.ID, Name: tech.Name, Email: fmt.Sprintf("%s@%s.test", tech.Name, t.Name()), Active: true,
		}).Error)
	}
	return client.ID, machine.ID
}

// seedPart creates a part and, when opening is non-zero, an inbound
// opening movement through the regular ledger path.
func seedPart(t *testing.T, eng *Engine, reference string, minStock, opening int) *invdomain.Part {
	t.Helper()

	part, err := eng.CreatePart(context.Background(), invcommand.CreatePartCommand{
		Reference: reference,
		Name:      reference + " part",
		MinStock:  minStock,
	}, admin)
	require.NoError(t, err)
	require.Equal(t, invdomain.PartStatusOutOfStock, part.Status)
	require.Zero(t, part.CurrentStock)

	if opening > 0 {
		stock, err := eng.ApplyStockMovement(context.Background(), invcommand.ApplyMovementCommand{
			PartID:   part.ID,
			Type:     invdomain.MovementInbound,
			Quantity: opening,
			Reason:   "opening stock",
		}, admin)
		require.NoError(t, err)
		require.Equal(t, opening, stock)
	}
	return part
}

func openTicket(t *testing.T, eng *Engine, clientID uint, machineID *uint) *tkdomain.Ticket {
	t.Helper()

	ticket, err := eng.CreateTicket(context.Background(), tkcommand.CreateTicketCommand{
		Title:     "machine down",
		Priority:  tkdomain.PriorityHigh,
		Type:      tkdomain.TypeCorrective,
		ClientID:  clientID,
		MachineID: machineID,
	}, supervisor)
	require.NoError(t, err)
	return ticket
}

func TestEngine_TicketLifecycle(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, "lifecycle", nil)
	clientID, machineID := seedCatalog(t, db)

	ticket := openTicket(t, eng, clientID, &machineID)
	assert.Equal(t, "TK-000001", ticket.Number)
	assert.Equal(t, tkdomain.StatusOpen, ticket.Status)

	// Closing an open ticket is an illegal transition, not a permission
	// failure.
	_, err := eng.CloseTicket(ctx, tkcommand.CloseTicketCommand{TicketID: ticket.ID}, technician)
	assert.True(t, apperrors.IsStateTransition(err))

	// Technicians may never assign.
	_, err = eng.AssignTicket(ctx, tkcommand.AssignTicketCommand{TicketID: ticket.ID, TechnicianID: technician.ID}, technician)
	assert.True(t, apperrors.IsAuthorization(err))

	ticket, err = eng.AssignTicket(ctx, tkcommand.AssignTicketCommand{TicketID: ticket.ID, TechnicianID: technician.ID}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, tkdomain.StatusAssigned, ticket.Status)
	require.NotNil(t, ticket.AssignedTechID)
	assert.Equal(t, technician.ID, *ticket.AssignedTechID)
	assert.NotNil(t, ticket.AssignedAt)

	// A different technician cannot act on someone else's ticket.
	_, err = eng.StartTicket(ctx, tkcommand.StartTicketCommand{TicketID: ticket.ID}, otherTech)
	assert.True(t, apperrors.IsAuthorization(err))

	ticket, err = eng.StartTicket(ctx, tkcommand.StartTicketCommand{TicketID: ticket.ID}, technician)
	require.NoError(t, err)
	assert.Equal(t, tkdomain.StatusInProgress, ticket.Status)
	assert.NotNil(t, ticket.StartedAt)

	// Waiting and resuming round-trips.
	ticket, err = eng.WaitTicket(ctx, tkcommand.WaitTicketCommand{TicketID: ticket.ID, Reason: "awaiting spare part"}, technician)
	require.NoError(t, err)
	assert.Equal(t, tkdomain.StatusWaiting, ticket.Status)
	assert.Equal(t, "awaiting spare part", ticket.WaitReason)

	ticket, err = eng.StartTicket(ctx, tkcommand.StartTicketCommand{TicketID: ticket.ID}, technician)
	require.NoError(t, err)
	assert.Equal(t, tkdomain.StatusInProgress, ticket.Status)

	// Closing without recorded work is rejected.
	_, err = eng.CloseTicket(ctx, tkcommand.CloseTicketCommand{TicketID: ticket.ID}, technician)
	require.True(t, apperrors.IsStateTransition(err))
	var transitionErr *apperrors.StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Contains(t, transitionErr.Reason, "no intervention")

	intervention, err := eng.RecordIntervention(ctx, ivcommand.RecordInterventionCommand{
		TicketID:         ticket.ID,
		StartedAt:        time.Now().Add(-45 * time.Minute),
		WorkDescription:  "replaced the belt",
		TimeSpentMinutes: 45,
	}, technician)
	require.NoError(t, err)
	assert.Equal(t, technician.ID, intervention.TechnicianID)

	ticket, err = eng.CloseTicket(ctx, tkcommand.CloseTicketCommand{
		TicketID:              ticket.ID,
		ClosingInterventionID: intervention.ID,
	}, technician)
	require.NoError(t, err)
	assert.Equal(t, tkdomain.StatusClosed, ticket.Status)
	assert.NotNil(t, ticket.ClosedAt)

	// Every decision along the way left an audit entry, denials included.
	entries, err := eng.AuditTrail(ctx, fmt.Sprintf("ticket/%d", ticket.ID), 50, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	var denials int
	for _, entry := range entries {
		if !entry.Success {
			denials++
		}
	}
	assert.NotZero(t, denials)
}

func TestEngine_TicketNumbersAreMonotonic(t *testing.T) {
	eng, db := newTestEngine(t, "numbering", nil)
	clientID, _ := seedCatalog(t, db)

	for i := 1; i <= 3; i++ {
		ticket := openTicket(t, eng, clientID, nil)
		assert.Equal(t, fmt.Sprintf("TK-%06d", i), ticket.Number)
	}
}

func TestEngine_CancelLegality(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, "cancel", nil)
	clientID, _ := seedCatalog(t, db)

	// Cancel from open.
	ticket := openTicket(t, eng, clientID, nil)
	cancelled, err := eng.CancelTicket(ctx, tkcommand.CancelTicketCommand{TicketID: ticket.ID, Reason: "duplicate"}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, tkdomain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "duplicate", cancelled.CancelReason)

	// Cancelling a cancelled ticket is an error, not a no-op.
	_, err = eng.CancelTicket(ctx, tkcommand.CancelTicketCommand{TicketID: ticket.ID, Reason: "again"}, supervisor)
	assert.True(t, apperrors.IsStateTransition(err))

	// Cancel from in_progress.
	ticket = openTicket(t, eng, clientID, nil)
	_, err = eng.AssignTicket(ctx, tkcommand.AssignTicketCommand{TicketID: ticket.ID, TechnicianID: technician.ID}, supervisor)
	require.NoError(t, err)
	_, err = eng.StartTicket(ctx, tkcommand.StartTicketCommand{TicketID: ticket.ID}, technician)
	require.NoError(t, err)
	_, err = eng.CancelTicket(ctx, tkcommand.CancelTicketCommand{TicketID: ticket.ID, Reason: "client withdrew"}, supervisor)
	require.NoError(t, err)

	// Cancel after close is rejected.
	ticket = openTicket(t, eng, clientID, nil)
	_, err = eng.AssignTicket(ctx, tkcommand.AssignTicketCommand{TicketID: ticket.ID, TechnicianID: technician.ID}, supervisor)
	require.NoError(t, err)
	_, err = eng.StartTicket(ctx, tkcommand.StartTicketCommand{TicketID: ticket.ID}, technician)
	require.NoError(t, err)
	_, err = eng.RecordIntervention(ctx, ivcommand.RecordInterventionCommand{
		TicketID:  ticket.ID,
		StartedAt: time.Now(),
	}, technician)
	require.NoError(t, err)
	_, err = eng.CloseTicket(ctx, tkcommand.CloseTicketCommand{TicketID: ticket.ID}, technician)
	require.NoError(t, err)
	_, err = eng.CancelTicket(ctx, tkcommand.CancelTicketCommand{TicketID: ticket.ID, Reason: "too late"}, supervisor)
	assert.True(t, apperrors.IsStateTransition(err))
}

func TestEngine_StockLedger(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, "ledger", nil)

	part := seedPart(t, eng, "BAT-001", 5, 15)

	// Technicians may read stock but not move it.
	_, err := eng.ApplyStockMovement(ctx, invcommand.ApplyMovementCommand{
		PartID: part.ID, Type: invdomain.MovementOutbound, Quantity: 1,
	}, technician)
	assert.True(t, apperrors.IsAuthorization(err))

	stock, err := eng.ApplyStockMovement(ctx, invcommand.ApplyMovementCommand{
		PartID: part.ID, Type: invdomain.MovementOutbound, Quantity: 12, Reason: "site delivery",
	}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, 3, stock)

	report, err := eng.CheckThresholds(ctx, invquery.CheckThresholdsQuery{PartID: part.ID})
	require.NoError(t, err)
	assert.True(t, report.LowStock)
	assert.False(t, report.Overstock)

	// Draining below zero fails and leaves the level untouched.
	_, err = eng.ApplyStockMovement(ctx, invcommand.ApplyMovementCommand{
		PartID: part.ID, Type: invdomain.MovementOutbound, Quantity: 5,
	}, supervisor)
	require.True(t, apperrors.IsInsufficientStock(err))
	var stockErr *apperrors.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	result, err := eng.QueryPartStock(ctx, invquery.PartStockQuery{PartID: part.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stock)

	// The ledger is the source of truth: its sum equals the counter.
	movements, err := eng.MovementHistory(ctx, invquery.MovementHistoryQuery{PartID: part.ID})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	var sum int
	for _, m := range movements {
		sum += m.Quantity
	}
	assert.Equal(t, result.Stock, sum)

	// Newest first.
	assert.Equal(t, invdomain.MovementOutbound, movements[0].Type)
	assert.Equal(t, -12, movements[0].Quantity)

	// Zero-quantity adjustments are rejected before touching the ledger.
	_, err = eng.ApplyStockMovement(ctx, invcommand.ApplyMovementCommand{
		PartID: part.ID, Type: invdomain.MovementAdjustment, Quantity: 0,
	}, admin)
	assert.True(t, apperrors.IsValidation(err))

	// A negative adjustment is legal as long as stock stays non-negative.
	stock, err = eng.ApplyStockMovement(ctx, invcommand.ApplyMovementCommand{
		PartID: part.ID, Type: invdomain.MovementAdjustment, Quantity: -3, Reason: "inventory count",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)

	// Draining to zero flips the part out of stock.
	drained, err := eng.QueryPartStock(ctx, invquery.PartStockQuery{PartID: part.ID})
	require.NoError(t, err)
	assert.Equal(t, invdomain.PartStatusOutOfStock, drained.Part.Status)
}

func TestEngine_InterventionConsumptionIsAtomic(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, "atomic", nil)
	clientID, _ := seedCatalog(t, db)

	part := seedPart(t, eng, "FIL-010", 1, 2)

	ticket := openTicket(t, eng, clientID, nil)
	_, err := eng.AssignTicket(ctx, tkcommand.AssignTicketCommand{TicketID: ticket.ID, TechnicianID: technician.ID}, supervisor)
	require.NoError(t, err)
	_, err = eng.StartTicket(ctx, tkcommand.StartTicketCommand{TicketID: ticket.ID}, technician)
	require.NoError(t, err)

	// Consuming more than available rejects the whole record.
	_, err = eng.RecordIntervention(ctx, ivcommand.RecordInterventionCommand{
		TicketID:  ticket.ID,
		StartedAt: time.Now(),
		PartsUsed: []ivdomain.PartUsage{{PartID: part.ID, Quantity: 5}},
	}, technician)
	require.True(t, apperrors.IsInsufficientStock(err))

	// Nothing committed: no intervention, no ledger entry, stock intact.
	detail, err := eng.GetTicket(ctx, tkquery.GetTicketQuery{TicketID: ticket.ID, WithInterventions: true})
	require.NoError(t, err)
	assert.Empty(t, detail.Interventions)

	movements, err := eng.MovementHistory(ctx, invquery.MovementHistoryQuery{PartID: part.ID})
	require.NoError(t, err)
	assert.Len(t, movements, 1) // opening stock only

	result, err := eng.QueryPartStock(ctx, invquery.PartStockQuery{PartID: part.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stock)

	// A feasible consumption commits both sides together.
	intervention, err := eng.RecordIntervention(ctx, ivcommand.RecordInterventionCommand{
		TicketID:  ticket.ID,
		StartedAt: time.Now(),
		PartsUsed: []ivdomain.PartUsage{{PartID: part.ID, Quantity: 2}},
	}, technician)
	require.NoError(t, err)

	result, err = eng.QueryPartStock(ctx, invquery.PartStockQuery{PartID: part.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stock)

	movements, err = eng.MovementHistory(ctx, invquery.MovementHistoryQuery{PartID: part.ID})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, fmt.Sprintf("intervention/%d", intervention.ID), movements[0].DocumentRef)
}

func TestEngine_ConcurrentOutboundMovements(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, "contention", nil)

	part := seedPart(t, eng, "PMP-020", 2, 10)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.ApplyStockMovement(ctx, invcommand.ApplyMovementCommand{
				PartID: part.ID, Type: invdomain.MovementOutbound, Quantity: 7,
			}, supervisor)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures, successes int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, apperrors.IsInsufficientStock(err))
		failures++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)

	result, err := eng.QueryPartStock(ctx, invquery.PartStockQuery{PartID: part.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stock)

	movements, err := eng.MovementHistory(ctx, invquery.MovementHistoryQuery{PartID: part.ID})
	require.NoError(t, err)
	var sum int
	for _, m := range movements {
		sum += m.Quantity
	}
	assert.Equal(t, result.Stock, sum)
}

func TestEngine_PartDeletionGuards(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, "partdelete", nil)

	// A part with ledger history stays, even at zero stock.
	used := seedPart(t, eng, "GSK-030", 0, 4)
	_, err := eng.ApplyStockMovement(ctx, invcommand.ApplyMovementCommand{
		PartID: used.ID, Type: invdomain.MovementOutbound, Quantity: 4,
	}, supervisor)
	require.NoError(t, err)

	err = eng.DeletePart(ctx, invcommand.DeletePartCommand{PartID: used.ID}, admin)
	assert.True(t, apperrors.IsIntegrity(err))

	// An untouched part can go.
	fresh := seedPart(t, eng, "CHN-031", 0, 0)
	require.NoError(t, eng.DeletePart(ctx, invcommand.DeletePartCommand{PartID: fresh.ID}, admin))
	_, err = eng.QueryPartStock(ctx, invquery.PartStockQuery{PartID: fresh.ID})
	assert.True(t, apperrors.IsNotFound(err))

	// Technicians may not manage the catalog.
	err = eng.DeletePart(ctx, invcommand.DeletePartCommand{PartID: used.ID}, technician)
	assert.True(t, apperrors.IsAuthorization(err))
}

func TestEngine_EventsFollowCommits(t *testing.T) {
	ctx := context.Background()
	publisher := &capturingPublisher{}
	eng, db := newTestEngine(t, "events", publisher)
	clientID, _ := seedCatalog(t, db)

	part := seedPart(t, eng, "BEL-040", 5, 6)

	ticket := openTicket(t, eng, clientID, nil)
	_, err := eng.AssignTicket(ctx, tkcommand.AssignTicketCommand{TicketID: ticket.ID, TechnicianID: technician.ID}, supervisor)
	require.NoError(t, err)
	_, err = eng.StartTicket(ctx, tkcommand.StartTicketCommand{TicketID: ticket.ID}, technician)
	require.NoError(t, err)

	// A rejected operation emits nothing.
	before := len(publisher.ticketEvents)
	_, err = eng.StartTicket(ctx, tkcommand.StartTicketCommand{TicketID: ticket.ID}, technician)
	require.Error(t, err)
	assert.Len(t, publisher.ticketEvents, before)

	require.GreaterOrEqual(t, len(publisher.ticketEvents), 3)
	assigned := publisher.ticketEvents[1]
	assert.Equal(t, ticket.Number, assigned.TicketNumber)
	assert.Equal(t, string(tkdomain.StatusOpen), assigned.FromStatus)
	assert.Equal(t, string(tkdomain.StatusAssigned), assigned.ToStatus)
	assert.Equal(t, supervisor.ID, assigned.ActorID)

	started := publisher.ticketEvents[2]
	assert.Equal(t, string(tkdomain.StatusAssigned), started.FromStatus)
	assert.Equal(t, string(tkdomain.StatusInProgress), started.ToStatus)

	// An outbound movement crossing the minimum flags low stock.
	_, err = eng.ApplyStockMovement(ctx, invcommand.ApplyMovementCommand{
		PartID: part.ID, Type: invdomain.MovementOutbound, Quantity: 2,
	}, supervisor)
	require.NoError(t, err)

	require.NotEmpty(t, publisher.stockEvents)
	last := publisher.stockEvents[len(publisher.stockEvents)-1]
	assert.Equal(t, part.Reference, last.Reference)
	assert.Equal(t, 4, last.NewStock)
	assert.True(t, last.LowStock)

	// Intervention consumption emits both the work and the stock event.
	_, err = eng.RecordIntervention(ctx, ivcommand.RecordInterventionCommand{
		TicketID:  ticket.ID,
		StartedAt: time.Now(),
		PartsUsed: []ivdomain.PartUsage{{PartID: part.ID, Quantity: 1}},
	}, technician)
	require.NoError(t, err)
	require.NotEmpty(t, publisher.workEvents)
	assert.Equal(t, 1, publisher.workEvents[0].PartsUsed)
	assert.Equal(t, 3, publisher.stockEvents[len(publisher.stockEvents)-1].NewStock)
}

func TestEngine_ListTicketsFilters(t *testing.T) {
	ctx := context.Background()
	eng, db := newTestEngine(t, "listing", nil)
	clientID, _ := seedCatalog(t, db)

	first := openTicket(t, eng, clientID, nil)
	second := openTicket(t, eng, clientID, nil)
	_, err := eng.AssignTicket(ctx, tkcommand.AssignTicketCommand{TicketID: second.ID, TechnicianID: technician.ID}, supervisor)
	require.NoError(t, err)

	open := tkdomain.StatusOpen
	tickets, err := eng.ListTickets(ctx, tkquery.ListTicketsQuery{Status: &open})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, first.ID, tickets[0].ID)

	tickets, err = eng.ListTickets(ctx, tkquery.ListTicketsQuery{AssignedTechID: &technician.ID})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, second.ID, tickets[0].ID)
}
