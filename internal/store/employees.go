package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
)

// EmployeeRepo provides read access to the employee census.
type EmployeeRepo struct {
	db *sqlx.DB
}

// NewEmployeeRepo wraps a *sql.DB.
func NewEmployeeRepo(db *sql.DB) *EmployeeRepo {
	return &EmployeeRepo{db: sqlx.NewDb(db, "postgres")}
}

// Get fetches an employee by id.
func (r *EmployeeRepo) Get(ctx context.Context, id string) (domain.Employee, error) {
	var e domain.Employee
	err := r.db.GetContext(ctx, &e, `
		SELECT id, employer_id, employee_code, demographics, created_at, updated_at
		FROM employees WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Employee{}, ErrNotFound
	}
	if err != nil {
		return domain.Employee{}, errs.Database("get employee", err)
	}
	return e, nil
}

// ListByEmployer lists every employee belonging to an employer, scanned
// into structs via sqlx where plain database/sql would need manual
// column-by-column Scan calls.
func (r *EmployeeRepo) ListByEmployer(ctx context.Context, employerID string) ([]domain.Employee, error) {
	var employees []domain.Employee
	err := r.db.SelectContext(ctx, &employees, `
		SELECT id, employer_id, employee_code, demographics, created_at, updated_at
		FROM employees WHERE employer_id = $1 ORDER BY created_at
	`, employerID)
	if err != nil {
		return nil, errs.Database("list employees", err)
	}
	return employees, nil
}
