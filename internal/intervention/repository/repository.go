package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fieldops/fieldservice/internal/intervention/domain"
	invdomain "github.com/fieldops/fieldservice/internal/inventory/domain"
	invrepo "github.com/fieldops/fieldservice/internal/inventory/repository"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

type GormInterventionRepository struct {
	db *gorm.DB
}

func NewGormInterventionRepository(db *gorm.DB) *GormInterventionRepository {
	return &GormInterventionRepository{db: db}
}

func (r *GormInterventionRepository) Create(ctx context.Context, intervention *domain.Intervention) error {
	return r.db.WithContext(ctx).Create(intervention).Error
}

// CreateWithConsumption persists the intervention and applies its part
// consumption as one transaction. If any movement fails the whole
// record rolls back: neither the intervention nor any partial movement
// survives.
func (r *GormInterventionRepository) CreateWithConsumption(ctx context.Context, intervention *domain.Intervention, movements []*invdomain.StockMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(intervention).Error; err != nil {
			return err
		}
		for _, movement := range movements {
			movement.DocumentRef = fmt.Sprintf("intervention/%d", intervention.ID)
			if _, err := invrepo.ApplyMovementTx(tx, movement); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormInterventionRepository) FindByID(ctx context.Context, id uint) (*domain.Intervention, error) {
	var intervention domain.Intervention
	err := r.db.WithContext(ctx).First(&intervention, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "intervention", Ref: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &intervention, nil
}

func (r *GormInterventionRepository) FindByTicketID(ctx context.Context, ticketID uint) ([]domain.Intervention, error) {
	var interventions []domain.Intervention
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&interventions).Error
	return interventions, err
}

func (r *GormInterventionRepository) CountByTicketID(ctx context.Context, ticketID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Intervention{}).
		Where("ticket_id = ?", ticketID).
		Count(&count).Error
	return count, err
}
