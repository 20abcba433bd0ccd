package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/pmundhra/plum-ems/internal/domain"
)

func TestCoverageRepoGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "employee_id", "insurer_id", "status", "start_date", "end_date", "plan_details", "created_at", "updated_at"}).
		AddRow("cov-1", "e1", "INS1", "ACTIVE", time.Now(), nil, []byte(`{}`), time.Now(), time.Now())

	mock.ExpectQuery(`SELECT id, employee_id, insurer_id, status, start_date, end_date, plan_details, created_at, updated_at`).
		WithArgs("cov-1").
		WillReturnRows(rows)

	repo := NewCoverageRepo(db)
	c, err := repo.Get(context.Background(), "cov-1")
	require.NoError(t, err)
	require.Equal(t, domain.CoverageActive, c.Status)
}

func TestCoverageRepoListActiveByEmployeeOnlyReturnsActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "employee_id", "insurer_id", "status", "start_date", "end_date", "plan_details", "created_at", "updated_at"}).
		AddRow("cov-1", "e1", "INS1", "ACTIVE", time.Now(), nil, []byte(`{}`), time.Now(), time.Now())

	mock.ExpectQuery(`SELECT id, employee_id, insurer_id, status, start_date, end_date, plan_details, created_at, updated_at\s+FROM policy_coverages WHERE employee_id = \$1 AND status = 'ACTIVE'`).
		WithArgs("e1").
		WillReturnRows(rows)

	repo := NewCoverageRepo(db)
	coverages, err := repo.ListActiveByEmployee(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, coverages, 1)
	require.Equal(t, domain.CoverageActive, coverages[0].Status)
}
