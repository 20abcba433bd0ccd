package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
)

// CoverageRepo provides read access to policy coverages.
type CoverageRepo struct {
	db *sqlx.DB
}

// NewCoverageRepo wraps a *sql.DB.
func NewCoverageRepo(db *sql.DB) *CoverageRepo {
	return &CoverageRepo{db: sqlx.NewDb(db, "postgres")}
}

// Get fetches a coverage by id.
func (r *CoverageRepo) Get(ctx context.Context, id string) (domain.PolicyCoverage, error) {
	var c domain.PolicyCoverage
	err := r.db.GetContext(ctx, &c, `
		SELECT id, employee_id, insurer_id, status, start_date, end_date, plan_details, created_at, updated_at
		FROM policy_coverages WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PolicyCoverage{}, ErrNotFound
	}
	if err != nil {
		return domain.PolicyCoverage{}, errs.Database("get coverage", err)
	}
	return c, nil
}

// ListActiveByEmployee lists every ACTIVE coverage for an employee, used to
// enforce the "at most one ACTIVE coverage per day" invariant at the
// ingress boundary.
func (r *CoverageRepo) ListActiveByEmployee(ctx context.Context, employeeID string) ([]domain.PolicyCoverage, error) {
	var coverages []domain.PolicyCoverage
	err := r.db.SelectContext(ctx, &coverages, `
		SELECT id, employee_id, insurer_id, status, start_date, end_date, plan_details, created_at, updated_at
		FROM policy_coverages WHERE employee_id = $1 AND status = 'ACTIVE' ORDER BY start_date
	`, employeeID)
	if err != nil {
		return nil, errs.Database("list active coverages", err)
	}
	return coverages, nil
}
