package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fieldops/fieldservice/internal/inventory/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

type GormPartRepository struct {
	db *gorm.DB
}

func NewGormPartRepository(db *gorm.DB) *GormPartRepository {
	return &GormPartRepository{db: db}
}

func (r *GormPartRepository) Create(ctx context.Context, part *domain.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

func (r *GormPartRepository) FindByID(ctx context.Context, id uint) (*domain.Part, error) {
	var part domain.Part
	err := r.db.WithContext(ctx).First(&part, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "part", Ref: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &part, nil
}

func (r *GormPartRepository) FindByReference(ctx context.Context, reference string) (*domain.Part, error) {
	var part domain.Part
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "part", Ref: reference}
		}
		return nil, err
	}
	return &part, nil
}

func (r *GormPartRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.Part, error) {
	var parts []domain.Part
	err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Find(&parts).Error
	return parts, err
}

func (r *GormPartRepository) Update(ctx context.Context, part *domain.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

// Delete soft-deletes a part. A part still holding stock, or one with
// recorded ledger history, must stay: its movements are immutable and
// would dangle.
func (r *GormPartRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var part domain.Part
		if err := tx.First(&part, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &apperrors.NotFoundError{Entity: "part", Ref: fmt.Sprint(id)}
			}
			return err
		}
		if part.CurrentStock != 0 {
			return &apperrors.IntegrityError{
				Reason: fmt.Sprintf("part %d still holds %d units of stock", id, part.CurrentStock),
			}
		}
		var movements int64
		if err := tx.Model(&domain.StockMovement{}).Where("part_id = ?", id).Count(&movements).Error; err != nil {
			return err
		}
		if movements > 0 {
			return &apperrors.IntegrityError{
				Reason: fmt.Sprintf("part %d has %d recorded stock movements", id, movements),
			}
		}
		return tx.Delete(&domain.Part{}, id).Error
	})
}

// ApplyMovement applies one signed stock movement atomically: the
// guarded counter update, the ledger insert and the status refresh
// commit as a single transaction. Returns the resulting stock level.
func (r *GormPartRepository) ApplyMovement(ctx context.Context, movement *domain.StockMovement) (int, error) {
	var newStock int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newStock, err = ApplyMovementTx(tx, movement)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newStock, nil
}

// ApplyMovementTx applies a movement inside an existing transaction.
// The caller owns commit/rollback; the intervention recorder uses this
// to couple part consumption with the intervention insert.
func ApplyMovementTx(tx *gorm.DB, movement *domain.StockMovement) (int, error) {
	// Conditional update: the WHERE clause keeps the counter from ever
	// going negative, even for writers that bypass the lock manager.
	res := tx.Model(&domain.Part{}).
		Where("id = ? AND current_stock + ? >= 0", movement.PartID, movement.Quantity).
		UpdateColumn("current_stock", gorm.Expr("current_stock + ?", movement.Quantity))
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		var part domain.Part
		if err := tx.First(&part, movement.PartID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, &apperrors.NotFoundError{Entity: "part", Ref: fmt.Sprint(movement.PartID)}
			}
			return 0, err
		}
		return 0, &apperrors.InsufficientStockError{
			PartID:    movement.PartID,
			Requested: -movement.Quantity,
			Available: part.CurrentStock,
		}
	}

	if err := tx.Create(movement).Error; err != nil {
		return 0, err
	}

	var part domain.Part
	if err := tx.First(&part, movement.PartID).Error; err != nil {
		return 0, err
	}

	if err := refreshStatus(tx, &part); err != nil {
		return 0, err
	}
	return part.CurrentStock, nil
}

// refreshStatus keeps the part status in step with its stock level.
// Obsolete parts keep their status; it is only ever set manually.
func refreshStatus(tx *gorm.DB, part *domain.Part) error {
	var status domain.PartStatus
	switch {
	case part.Status == domain.PartStatusActive && part.CurrentStock == 0:
		status = domain.PartStatusOutOfStock
	case part.Status == domain.PartStatusOutOfStock && part.CurrentStock > 0:
		status = domain.PartStatusActive
	default:
		return nil
	}
	part.Status = status
	return tx.Model(&domain.Part{}).
		Where("id = ?", part.ID).
		UpdateColumn("status", status).Error
}

func (r *GormPartRepository) Movements(ctx context.Context, partID uint, limit, offset int) ([]domain.StockMovement, error) {
	var movements []domain.StockMovement
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&movements).Error
	return movements, err
}
