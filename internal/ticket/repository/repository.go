package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	ivdomain "github.com/fieldops/fieldservice/internal/intervention/domain"
	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

type GormTicketRepository struct {
	db *gorm.DB
}

func NewGormTicketRepository(db *gorm.DB) *GormTicketRepository {
	return &GormTicketRepository{db: db}
}

// Create persists the ticket and allocates its number from the sequence
// row inside the same transaction, so numbers stay monotonic and
// collision-free under concurrent creation.
func (r *GormTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextNumber(tx)
		if err != nil {
			return err
		}
		ticket.Number = number
		return tx.Create(ticket).Error
	})
}

// nextNumber increments the single sequence row. The UPDATE takes the
// row lock, so concurrent transactions serialize and each reads its own
// increment.
func nextNumber(tx *gorm.DB) (string, error) {
	res := tx.Model(&domain.Sequence{}).
		Where("id = ?", 1).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		if err := tx.Create(&domain.Sequence{ID: 1, Value: 1}).Error; err != nil {
			return "", err
		}
	}
	var seq domain.Sequence
	if err := tx.First(&seq, 1).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("TK-%06d", seq.Value), nil
}

func (r *GormTicketRepository) FindByID(ctx context.Context, id uint) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.WithContext(ctx).First(&ticket, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "ticket", Ref: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *GormTicketRepository) FindByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.WithContext(ctx).Where("number = ?", number).First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "ticket", Ref: number}
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *GormTicketRepository) FindAll(ctx context.Context, filter domain.Filter) ([]domain.Ticket, error) {
	q := r.db.WithContext(ctx).Model(&domain.Ticket{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.AssignedTechID != nil {
		q = q.Where("assigned_tech_id = ?", *filter.AssignedTechID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var tickets []domain.Ticket
	err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&tickets).Error
	return tickets, err
}

// Transition saves the ticket guarded on its expected current status.
// With the per-ticket lock held this never races, but the guard keeps a
// writer that bypassed the lock manager from clobbering a transition.
func (r *GormTicketRepository) Transition(ctx context.Context, ticket *domain.Ticket, expected domain.Status) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("id = ? AND status = ?", ticket.ID, expected).
		Updates(map[string]any{
			"status":           ticket.Status,
			"assigned_tech_id": ticket.AssignedTechID,
			"assigned_at":      ticket.AssignedAt,
			"started_at":       ticket.StartedAt,
			"closed_at":        ticket.ClosedAt,
			"wait_reason":      ticket.WaitReason,
			"cancel_reason":    ticket.CancelReason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &apperrors.ConcurrencyConflictError{Resource: fmt.Sprintf("ticket/%d", ticket.ID)}
	}
	return nil
}

// Delete removes a ticket and cascades to its interventions. The ticket
// exclusively owns them.
func (r *GormTicketRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", id).Delete(&ivdomain.Intervention{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Ticket{}, id).Error
	})
}
