package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldops/fieldservice/pkg/logger"
)

// Publisher wraps a Kafka sync producer for domain events.
type Publisher struct {
	producer sarama.SyncProducer
	brokers  []string
}

// NewPublisher creates a new Kafka publisher
func NewPublisher(brokers []string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Msg("Kafka publisher initialized")

	return &Publisher{
		producer: producer,
		brokers:  brokers,
	}, nil
}

// PublishTicketStatusChanged publishes a ticket transition event.
func (p *Publisher) PublishTicketStatusChanged(ctx context.Context, event TicketStatusChangedEvent) error {
	event.EventType = EventTypeTicketStatusChanged
	key := fmt.Sprintf("ticket_%d", event.TicketID)
	return p.publish(ctx, TopicTicketStatusChanged, key, event.EventType, &event.EventID, &event.Timestamp, &event,
		attribute.Int64("ticket.id", int64(event.TicketID)),
		attribute.String("ticket.from_status", event.FromStatus),
		attribute.String("ticket.to_status", event.ToStatus),
	)
}

// PublishInterventionRecorded publishes an intervention event.
func (p *Publisher) PublishInterventionRecorded(ctx context.Context, event InterventionRecordedEvent) error {
	event.EventType = EventTypeInterventionRecorded
	key := fmt.Sprintf("ticket_%d", event.TicketID)
	return p.publish(ctx, TopicInterventionRecorded, key, event.EventType, &event.EventID, &event.Timestamp, &event,
		attribute.Int64("intervention.id", int64(event.InterventionID)),
		attribute.Int64("ticket.id", int64(event.TicketID)),
	)
}

// PublishPartStockChanged publishes a stock movement event.
func (p *Publisher) PublishPartStockChanged(ctx context.Context, event PartStockChangedEvent) error {
	event.EventType = EventTypePartStockChanged
	key := fmt.Sprintf("part_%d", event.PartID)
	return p.publish(ctx, TopicPartStockChanged, key, event.EventType, &event.EventID, &event.Timestamp, &event,
		attribute.Int64("part.id", int64(event.PartID)),
		attribute.Int("part.new_stock", event.NewStock),
		attribute.Bool("part.low_stock", event.LowStock),
	)
}

func (p *Publisher) publish(ctx context.Context, topic, key, eventType string, eventID *string, timestamp *time.Time, payload any, attrs ...attribute.KeyValue) error {
	tracer := otel.Tracer("kafka-publisher")
	ctx, span := tracer.Start(ctx, "kafka.publish."+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", topic),
			attribute.String("event.type", eventType),
		}, attrs...)...),
	)
	defer span.End()

	if *eventID == "" {
		*eventID = uuid.NewString()
	}
	*timestamp = time.Now()
	span.SetAttributes(attribute.String("event.id", *eventID))

	eventBytes, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Propagate trace context through Kafka headers.
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(eventType)},
		{Key: []byte("event_id"), Value: []byte(*eventID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(eventBytes),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		logger.Logger.Error().
			Err(err).
			Str("topic", topic).
			Str("event_type", eventType).
			Msg("Failed to publish event")
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	span.SetStatus(codes.Ok, "Event published successfully")

	logger.Logger.Info().
		Str("event_id", *eventID).
		Str("event_type", eventType).
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Event published")
	return nil
}

// Close shuts down the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
