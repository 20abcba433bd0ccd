package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
)

// LedgerTxRepo is the append-only ledger_transactions repository. Rows are
// never mutated after insert except for a single LOCKED → CLEARED|FAILED
// transition.
type LedgerTxRepo struct {
	db *sqlx.DB
}

// NewLedgerTxRepo wraps a *sql.DB.
func NewLedgerTxRepo(db *sql.DB) *LedgerTxRepo {
	return &LedgerTxRepo{db: sqlx.NewDb(db, "postgres")}
}

// Insert writes a ledger transaction inside the caller's transaction (the
// same transaction that locks and updates the employer row, the invariant
// that makes the balance reconcilable against the ledger).
func (r *LedgerTxRepo) Insert(ctx context.Context, tx *sql.Tx, t domain.LedgerTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions
			(id, employer_id, endorsement_id, type, amount, status, external_ref)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, t.ID, t.EmployerID, t.EndorsementID, t.Type, t.Amount, t.Status, t.ExternalRef)
	if err != nil {
		return errs.Database("insert ledger transaction", err)
	}
	return nil
}

// ClearOrFail performs the single legal post-insert transition
// (LOCKED → CLEARED or LOCKED → FAILED) for one ledger row.
func (r *LedgerTxRepo) ClearOrFail(ctx context.Context, id string, toStatus domain.TransactionStatus) error {
	if toStatus != domain.TransactionCleared && toStatus != domain.TransactionFailed {
		return errs.New(errs.ErrCodeLedgerTxFailed, errs.KindValidation, "ledger transaction may only clear or fail")
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE ledger_transactions SET status = $1 WHERE id = $2 AND status = $3
	`, toStatus, id, domain.TransactionLocked)
	if err != nil {
		return errs.Database("clear or fail ledger transaction", err)
	}
	return nil
}

// Get fetches a ledger transaction by id.
func (r *LedgerTxRepo) Get(ctx context.Context, id string) (domain.LedgerTransaction, error) {
	var t domain.LedgerTransaction
	err := r.db.GetContext(ctx, &t, `
		SELECT id, employer_id, endorsement_id, type, amount, status, external_ref, created_at
		FROM ledger_transactions WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerTransaction{}, ErrNotFound
	}
	if err != nil {
		return domain.LedgerTransaction{}, errs.Database("get ledger transaction", err)
	}
	return t, nil
}

// SumBalance recomputes an employer's balance from the ledger: the
// reconciliation invariant ea_balance == Σcredit − Σdebit over
// LOCKED+CLEARED rows. Exposed for tests and operational reconciliation
// jobs, not on the hot path.
func (r *LedgerTxRepo) SumBalance(ctx context.Context, employerID string) (string, error) {
	var sum sql.NullString
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN type = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM ledger_transactions
		WHERE employer_id = $1 AND status IN ('LOCKED', 'CLEARED')
	`, employerID)
	if err != nil {
		return "", errs.Database("sum ledger balance", err)
	}
	return sum.String, nil
}
