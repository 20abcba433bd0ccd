package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
)

// ErrNotFound is returned by repository reads that find no matching row.
var ErrNotFound = errors.New("store: not found")

// EmployerRepo provides the Employer read path and the locking write path
// the Ledger Engine serializes balance mutations through.
type EmployerRepo struct {
	db *sqlx.DB
}

// NewEmployerRepo wraps a *sql.DB for sqlx-based reads.
func NewEmployerRepo(db *sql.DB) *EmployerRepo {
	return &EmployerRepo{db: sqlx.NewDb(db, "postgres")}
}

// Get fetches an employer by id.
func (r *EmployerRepo) Get(ctx context.Context, id string) (domain.Employer, error) {
	var e domain.Employer
	err := r.db.GetContext(ctx, &e, `
		SELECT id, name, ea_balance, config, status, created_at, updated_at
		FROM employers WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Employer{}, ErrNotFound
	}
	if err != nil {
		return domain.Employer{}, errs.Database("get employer", err)
	}
	return e, nil
}

// LockForUpdate acquires an exclusive row lock on the employer inside an
// open transaction, the Ledger Engine's per-employer serialization point
// (grounded on internal/app/jam/store_pg.go's FOR UPDATE SKIP LOCKED
// pattern — here without SKIP LOCKED, since the ledger must wait for a
// concurrent writer on the same employer rather than skip it).
func (r *EmployerRepo) LockForUpdate(ctx context.Context, tx *sql.Tx, id string) (domain.Employer, error) {
	var e domain.Employer
	row := tx.QueryRowContext(ctx, `
		SELECT id, name, ea_balance, config, status, created_at, updated_at
		FROM employers WHERE id = $1 FOR UPDATE
	`, id)
	if err := row.Scan(&e.ID, &e.Name, &e.EABalance, &e.Config, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Employer{}, ErrNotFound
		}
		return domain.Employer{}, errs.Database("lock employer", err)
	}
	return e, nil
}

// UpdateBalance writes a new ea_balance inside the caller's transaction.
func (r *EmployerRepo) UpdateBalance(ctx context.Context, tx *sql.Tx, id string, newBalance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE employers SET ea_balance = $1, updated_at = now() WHERE id = $2
	`, newBalance, id)
	if err != nil {
		return errs.Database("update employer balance", err)
	}
	return nil
}

// BeginTx starts a transaction on the underlying connection pool.
func (r *EmployerRepo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Database("begin tx", err)
	}
	return tx, nil
}
