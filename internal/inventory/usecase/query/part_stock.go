package query

import (
	"context"

	"github.com/fieldops/fieldservice/internal/inventory/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// PartStockQuery represents the query for a part's current stock
type PartStockQuery struct {
	PartID uint
}

// PartStockResult carries a part with its current stock level.
type PartStockResult struct {
	Part  *domain.Part `json:"part"`
	Stock int          `json:"stock"`
}

// PartStockHandler handles part stock queries
type PartStockHandler struct {
	parts domain.PartRepository
}

// NewPartStockHandler creates a new part stock handler
func NewPartStockHandler(parts domain.PartRepository) *PartStockHandler {
	return &PartStockHandler{parts: parts}
}

// Handle returns the part and its stock as of the latest committed
// movement. Reads go straight to the repository; nothing is cached.
func (h *PartStockHandler) Handle(ctx context.Context, q PartStockQuery) (*PartStockResult, error) {
	if q.PartID == 0 {
		return nil, &apperrors.ValidationError{Field: "part_id", Reason: "part_id is required"}
	}
	part, err := h.parts.FindByID(ctx, q.PartID)
	if err != nil {
		return nil, err
	}
	return &PartStockResult{Part: part, Stock: part.CurrentStock}, nil
}

// CheckThresholdsQuery represents the threshold check query
type CheckThresholdsQuery struct {
	PartID uint
}

// CheckThresholdsHandler handles threshold check queries
type CheckThresholdsHandler struct {
	parts domain.PartRepository
}

// NewCheckThresholdsHandler creates a new threshold check handler
func NewCheckThresholdsHandler(parts domain.PartRepository) *CheckThresholdsHandler {
	return &CheckThresholdsHandler{parts: parts}
}

// Handle evaluates low-stock and overstock for the part. Pure read.
func (h *CheckThresholdsHandler) Handle(ctx context.Context, q CheckThresholdsQuery) (*domain.ThresholdReport, error) {
	if q.PartID == 0 {
		return nil, &apperrors.ValidationError{Field: "part_id", Reason: "part_id is required"}
	}
	part, err := h.parts.FindByID(ctx, q.PartID)
	if err != nil {
		return nil, err
	}
	report := part.Check()
	return &report, nil
}

// MovementHistoryQuery represents the ledger history query for a part
type MovementHistoryQuery struct {
	PartID uint
	Limit  int
	Offset int
}

// MovementHistoryHandler handles ledger history queries
type MovementHistoryHandler struct {
	parts domain.PartRepository
}

// NewMovementHistoryHandler creates a new movement history handler
func NewMovementHistoryHandler(parts domain.PartRepository) *MovementHistoryHandler {
	return &MovementHistoryHandler{parts: parts}
}

// Handle returns the part's movements, newest first.
func (h *MovementHistoryHandler) Handle(ctx context.Context, q MovementHistoryQuery) ([]domain.StockMovement, error) {
	if q.PartID == 0 {
		return nil, &apperrors.ValidationError{Field: "part_id", Reason: "part_id is required"}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	return h.parts.Movements(ctx, q.PartID, limit, q.Offset)
}
