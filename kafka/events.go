package kafka

import "time"

// TicketStatusChangedEvent is emitted after a ticket transition commits.
type TicketStatusChangedEvent struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	TicketID     uint      `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	FromStatus   string    `json:"from_status"`
	ToStatus     string    `json:"to_status"`
	ActorID      uint      `json:"actor_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// InterventionRecordedEvent is emitted after an intervention commits.
type InterventionRecordedEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	InterventionID uint      `json:"intervention_id"`
	TicketID       uint      `json:"ticket_id"`
	TechnicianID   uint      `json:"technician_id"`
	PartsUsed      int       `json:"parts_used"`
	Timestamp      time.Time `json:"timestamp"`
}

// PartStockChangedEvent is emitted after a stock movement commits. A
// low-stock notifier would subscribe here; delivery is out of scope.
type PartStockChangedEvent struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	PartID       uint      `json:"part_id"`
	Reference    string    `json:"reference"`
	MovementType string    `json:"movement_type"`
	NewStock     int       `json:"new_stock"`
	LowStock     bool      `json:"low_stock"`
	Timestamp    time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypeTicketStatusChanged  = "ticket.status_changed"
	EventTypeInterventionRecorded = "intervention.recorded"
	EventTypePartStockChanged     = "part.stock_changed"
)

// Kafka topics
const (
	TopicTicketStatusChanged  = "ticket-status-changed"
	TopicInterventionRecorded = "intervention-recorded"
	TopicPartStockChanged     = "part-stock-changed"
)
