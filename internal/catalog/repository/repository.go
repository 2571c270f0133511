package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fieldops/fieldservice/internal/catalog/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

type GormClientRepository struct {
	db *gorm.DB
}

func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

func (r *GormClientRepository) Create(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *GormClientRepository) FindByID(ctx context.Context, id uint) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).First(&client, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "client", Ref: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &client, nil
}

func (r *GormClientRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.Client, error) {
	var clients []domain.Client
	err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Find(&clients).Error
	return clients, err
}

type GormMachineRepository struct {
	db *gorm.DB
}

func NewGormMachineRepository(db *gorm.DB) *GormMachineRepository {
	return &GormMachineRepository{db: db}
}

func (r *GormMachineRepository) Create(ctx context.Context, machine *domain.Machine) error {
	return r.db.WithContext(ctx).Create(machine).Error
}

func (r *GormMachineRepository) FindByID(ctx context.Context, id uint) (*domain.Machine, error) {
	var machine domain.Machine
	err := r.db.WithContext(ctx).First(&machine, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "machine", Ref: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &machine, nil
}

func (r *GormMachineRepository) FindBySerialNumber(ctx context.Context, serial string) (*domain.Machine, error) {
	var machine domain.Machine
	err := r.db.WithContext(ctx).Where("serial_number = ?", serial).First(&machine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "machine", Ref: serial}
		}
		return nil, err
	}
	return &machine, nil
}

func (r *GormMachineRepository) FindByClientID(ctx context.Context, clientID uint, limit, offset int) ([]domain.Machine, error) {
	var machines []domain.Machine
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Limit(limit).Offset(offset).
		Find(&machines).Error
	return machines, err
}

type GormTechnicianRepository struct {
	db *gorm.DB
}

func NewGormTechnicianRepository(db *gorm.DB) *GormTechnicianRepository {
	return &GormTechnicianRepository{db: db}
}

func (r *GormTechnicianRepository) FindTechnician(ctx context.Context, id uint) (*domain.Technician, error) {
	var tech domain.Technician
	err := r.db.WithContext(ctx).First(&tech, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "technician", Ref: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &tech, nil
}

func (r *GormTechnicianRepository) Create(ctx context.Context, tech *domain.Technician) error {
	return r.db.WithContext(ctx).Create(tech).Error
}
