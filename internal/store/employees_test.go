package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestEmployeeRepoGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "employer_id", "employee_code", "demographics", "created_at", "updated_at"}).
		AddRow("emp-emp-1", "emp-1", "E001", []byte(`{}`), time.Now(), time.Now())

	mock.ExpectQuery(`SELECT id, employer_id, employee_code, demographics, created_at, updated_at`).
		WithArgs("emp-emp-1").
		WillReturnRows(rows)

	repo := NewEmployeeRepo(db)
	e, err := repo.Get(context.Background(), "emp-emp-1")
	require.NoError(t, err)
	require.Equal(t, "E001", e.EmployeeCode)
}

func TestEmployeeRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, employer_id, employee_code, demographics, created_at, updated_at`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "employer_id", "employee_code", "demographics", "created_at", "updated_at"}))

	repo := NewEmployeeRepo(db)
	_, err = repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEmployeeRepoListByEmployer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "employer_id", "employee_code", "demographics", "created_at", "updated_at"}).
		AddRow("e1", "emp-1", "E001", []byte(`{}`), time.Now(), time.Now()).
		AddRow("e2", "emp-1", "E002", []byte(`{}`), time.Now(), time.Now())

	mock.ExpectQuery(`SELECT id, employer_id, employee_code, demographics, created_at, updated_at\s+FROM employees WHERE employer_id = \$1`).
		WithArgs("emp-1").
		WillReturnRows(rows)

	repo := NewEmployeeRepo(db)
	employees, err := repo.ListByEmployer(context.Background(), "emp-1")
	require.NoError(t, err)
	require.Len(t, employees, 2)
}
