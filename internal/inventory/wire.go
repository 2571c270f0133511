//go:build wireinject
// +build wireinject

package inventory

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/fieldops/fieldservice/internal/audit"
	"github.com/fieldops/fieldservice/internal/inventory/domain"
	"github.com/fieldops/fieldservice/internal/inventory/repository"
	"github.com/fieldops/fieldservice/internal/inventory/usecase/command"
	"github.com/fieldops/fieldservice/internal/inventory/usecase/query"
	"github.com/fieldops/fieldservice/internal/policy"
	"github.com/fieldops/fieldservice/pkg/locking"
)

// ProvidePartRepository provides the traced part repository
func ProvidePartRepository(db *gorm.DB) domain.PartRepository {
	return repository.NewTracingPartRepository(db)
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvidePartRepository,
)

// InitializeApplyMovementHandler initializes the ledger command handler
// with all dependencies
func InitializeApplyMovementHandler(db *gorm.DB, pol *policy.Evaluator, locks *locking.Manager, rec *audit.Recorder) (*command.ApplyMovementHandler, error) {
	wire.Build(
		RepositorySet,
		command.NewApplyMovementHandler,
	)
	return nil, nil
}

// InitializePartStockHandler initializes the stock query handler
func InitializePartStockHandler(db *gorm.DB) (*query.PartStockHandler, error) {
	wire.Build(
		RepositorySet,
		query.NewPartStockHandler,
	)
	return nil, nil
}
