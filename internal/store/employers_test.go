package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEmployerRepoGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "ea_balance", "config", "status", "created_at", "updated_at"}).
		AddRow("emp-1", "Acme Co", "1000.00", []byte(`{}`), "ACTIVE", time.Now(), time.Now())

	mock.ExpectQuery(`SELECT id, name, ea_balance, config, status, created_at, updated_at`).
		WithArgs("emp-1").
		WillReturnRows(rows)

	repo := NewEmployerRepo(db)
	e, err := repo.Get(context.Background(), "emp-1")
	require.NoError(t, err)
	require.Equal(t, "emp-1", e.ID)
	require.True(t, decimal.NewFromInt(1000).Equal(e.EABalance))
}

func TestEmployerRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, name, ea_balance, config, status, created_at, updated_at`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "ea_balance", "config", "status", "created_at", "updated_at"}))

	repo := NewEmployerRepo(db)
	_, err = repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEmployerRepoLockForUpdateAndUpdateBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()

	rows := sqlmock.NewRows([]string{"id", "name", "ea_balance", "config", "status", "created_at", "updated_at"}).
		AddRow("emp-1", "Acme Co", "500.00", []byte(`{}`), "ACTIVE", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT id, name, ea_balance, config, status, created_at, updated_at\s+FROM employers WHERE id = \$1 FOR UPDATE`).
		WithArgs("emp-1").
		WillReturnRows(rows)

	mock.ExpectExec(`UPDATE employers SET ea_balance`).
		WithArgs(decimal.NewFromInt(700), "emp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectCommit()

	repo := NewEmployerRepo(db)
	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	e, err := repo.LockForUpdate(context.Background(), tx, "emp-1")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(500).Equal(e.EABalance))

	require.NoError(t, repo.UpdateBalance(context.Background(), tx, "emp-1", decimal.NewFromInt(700)))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployerRepoLockForUpdateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, name, ea_balance, config, status, created_at, updated_at\s+FROM employers WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "ea_balance", "config", "status", "created_at", "updated_at"}))
	mock.ExpectRollback()

	repo := NewEmployerRepo(db)
	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	_, err = repo.LockForUpdate(context.Background(), tx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, tx.Rollback())
}
