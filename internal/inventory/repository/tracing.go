package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/fieldops/fieldservice/internal/inventory/domain"
)

var tracer = otel.Tracer("inventory-repository")

// TracingPartRepository wraps GormPartRepository with tracing.
type TracingPartRepository struct {
	*GormPartRepository
}

// NewTracingPartRepository creates a part repository with tracing.
func NewTracingPartRepository(db *gorm.DB) *TracingPartRepository {
	return &TracingPartRepository{
		GormPartRepository: NewGormPartRepository(db),
	}
}

func (r *TracingPartRepository) FindByID(ctx context.Context, id uint) (*domain.Part, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByID",
		trace.WithAttributes(attribute.Int("part.id", int(id))),
	)
	defer span.End()

	part, err := r.GormPartRepository.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("part.reference", part.Reference),
		attribute.Int("part.current_stock", part.CurrentStock),
	)
	return part, nil
}

func (r *TracingPartRepository) ApplyMovement(ctx context.Context, movement *domain.StockMovement) (int, error) {
	ctx, span := tracer.Start(ctx, "repository.ApplyMovement",
		trace.WithAttributes(
			attribute.Int("part.id", int(movement.PartID)),
			attribute.String("movement.type", string(movement.Type)),
			attribute.Int("movement.quantity", movement.Quantity),
		),
	)
	defer span.End()

	newStock, err := r.GormPartRepository.ApplyMovement(ctx, movement)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int("part.new_stock", newStock))
	return newStock, nil
}

func (r *TracingPartRepository) Movements(ctx context.Context, partID uint, limit, offset int) ([]domain.StockMovement, error) {
	ctx, span := tracer.Start(ctx, "repository.Movements",
		trace.WithAttributes(
			attribute.Int("part.id", int(partID)),
			attribute.Int("query.limit", limit),
			attribute.Int("query.offset", offset),
		),
	)
	defer span.End()

	movements, err := r.GormPartRepository.Movements(ctx, partID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(movements)))
	return movements, nil
}
