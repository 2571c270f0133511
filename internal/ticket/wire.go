//go:build wireinject
// +build wireinject

package ticket

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/fieldops/fieldservice/internal/audit"
	catdomain "github.com/fieldops/fieldservice/internal/catalog/domain"
	catrepo "github.com/fieldops/fieldservice/internal/catalog/repository"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/internal/ticket/domain"
	"github.com/fieldops/fieldservice/internal/ticket/repository"
	"github.com/fieldops/fieldservice/internal/ticket/usecase/command"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// ProvideTicketRepository provides the ticket repository
func ProvideTicketRepository(db *gorm.DB) domain.Repository {
	return repository.NewGormTicketRepository(db)
}

// ProvideTechnicianDirectory provides the technician directory
func ProvideTechnicianDirectory(db *gorm.DB) catdomain.TechnicianDirectory {
	return catrepo.NewGormTechnicianRepository(db)
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideTicketRepository,
	ProvideTechnicianDirectory,
)

// InitializeAssignTicketHandler initializes the assign command handler
// with all dependencies
func InitializeAssignTicketHandler(db *gorm.DB, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) (*command.AssignTicketHandler, error) {
	wire.Build(
		RepositorySet,
		command.NewAssignTicketHandler,
	)
	return nil, nil
}
