package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fieldops/fieldservice/internal/inventory/domain"
	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormPartRepository_ApplyMovement(t *testing.T) {
	partCols := []string{"id", "reference", "current_stock", "min_stock", "status"}

	testCases := []struct {
		name             string
		movement         domain.StockMovement
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedStock    int
		checkErr         func(t *testing.T, err error)
	}{
		{
			name:     "Inbound movement updates the counter and appends to the ledger",
			movement: domain.StockMovement{PartID: 1, Type: domain.MovementInbound, Quantity: 10, ActorID: 4},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "parts" SET "current_stock"=current_stock + `)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "stock_movements"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "parts"`)).
					WillReturnRows(sqlmock.NewRows(partCols).
						AddRow(1, "BAT-001", 25, 5, "active"))
				mock.ExpectCommit()
			},
			expectedStock: 25,
		},
		{
			name:     "Inbound movement on an out_of_stock part reactivates it",
			movement: domain.StockMovement{PartID: 2, Type: domain.MovementInbound, Quantity: 5, ActorID: 4},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "parts" SET "current_stock"=current_stock + `)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "stock_movements"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "parts"`)).
					WillReturnRows(sqlmock.NewRows(partCols).
						AddRow(2, "FIL-002", 5, 5, "out_of_stock"))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "parts" SET "status"=`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedStock: 5,
		},
		{
			name:     "Outbound draining a part marks it out_of_stock",
			movement: domain.StockMovement{PartID: 3, Type: domain.MovementOutbound, Quantity: -4, ActorID: 4},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "parts" SET "current_stock"=current_stock + `)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "stock_movements"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "parts"`)).
					WillReturnRows(sqlmock.NewRows(partCols).
						AddRow(3, "BEL-003", 0, 2, "active"))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "parts" SET "status"=`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedStock: 0,
		},
		{
			name:     "Guarded update matching no row on an existing part means insufficient stock",
			movement: domain.StockMovement{PartID: 5, Type: domain.MovementOutbound, Quantity: -12, ActorID: 4},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "parts" SET "current_stock"=current_stock + `)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "parts"`)).
					WillReturnRows(sqlmock.NewRows(partCols).
						AddRow(5, "PMP-005", 3, 1, "active"))
				mock.ExpectRollback()
			},
			checkErr: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsInsufficientStock(err))
				var stockErr *apperrors.InsufficientStockError
				require.ErrorAs(t, err, &stockErr)
				assert.Equal(t, 12, stockErr.Requested)
				assert.Equal(t, 3, stockErr.Available)
			},
		},
		{
			name:     "Guarded update matching no row on a missing part means not found",
			movement: domain.StockMovement{PartID: 99, Type: domain.MovementOutbound, Quantity: -1, ActorID: 4},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "parts" SET "current_stock"=current_stock + `)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "parts"`)).
					WillReturnRows(sqlmock.NewRows(partCols))
				mock.ExpectRollback()
			},
			checkErr: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsNotFound(err))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			repo := NewGormPartRepository(gormDB)

			tc.mockExpectations(mock)

			movement := tc.movement
			stock, err := repo.ApplyMovement(context.Background(), &movement)

			if tc.checkErr != nil {
				tc.checkErr(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedStock, stock)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormPartRepository_DeleteRefusesRemainingStock(t *testing.T) {
	gormDB, mock := newTestDB(t)
	repo := NewGormPartRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "parts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference", "current_stock", "status"}).
			AddRow(7, "CHN-007", 4, "active"))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 7)
	assert.True(t, apperrors.IsIntegrity(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormPartRepository_DeleteRefusesLedgerHistory(t *testing.T) {
	gormDB, mock := newTestDB(t)
	repo := NewGormPartRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "parts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference", "current_stock", "status"}).
			AddRow(8, "GSK-008", 0, "out_of_stock"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "stock_movements"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 8)
	assert.True(t, apperrors.IsIntegrity(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormPartRepository_FindByIDNotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	repo := NewGormPartRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "parts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), 42)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
