package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
)

// EndorsementRepo is the repository for the central state-bearing entity.
// TransitionStatus takes the set of statuses it is legal to transition
// FROM and is a no-op, reported as false rather than an error, if the row
// has already moved past that point; callers decide whether to log it.
// IncrementRetryAndSetStatus writes its status without a from-status check.
type EndorsementRepo struct {
	db *sqlx.DB
}

// NewEndorsementRepo wraps a *sql.DB.
func NewEndorsementRepo(db *sql.DB) *EndorsementRepo {
	return &EndorsementRepo{db: sqlx.NewDb(db, "postgres")}
}

// Create inserts a new endorsement request in RECEIVED status.
func (r *EndorsementRepo) Create(ctx context.Context, req domain.EndorsementRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO endorsement_requests
			(id, employer_id, type, status, payload, retry_count, effective_date, trace_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, req.ID, req.EmployerID, req.Type, req.Status, req.Payload, req.RetryCount, req.EffectiveDate, req.TraceID)
	if err != nil {
		return errs.Database("create endorsement request", err)
	}
	return nil
}

// Get fetches a request by id.
func (r *EndorsementRepo) Get(ctx context.Context, id string) (domain.EndorsementRequest, error) {
	var e domain.EndorsementRequest
	err := r.db.GetContext(ctx, &e, `
		SELECT id, employer_id, type, status, payload, retry_count, effective_date, trace_id, created_at, updated_at
		FROM endorsement_requests WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EndorsementRequest{}, ErrNotFound
	}
	if err != nil {
		return domain.EndorsementRequest{}, errs.Database("get endorsement request", err)
	}
	return e, nil
}

// TransitionStatus moves a request from one of fromStatuses to toStatus.
// It returns (false, nil) — not an error — if the row's current status is
// not in fromStatuses, the no-op case for a stale or already-advanced
// write.
func (r *EndorsementRepo) TransitionStatus(ctx context.Context, id string, fromStatuses []domain.RequestStatus, toStatus domain.RequestStatus) (bool, error) {
	from := make([]string, len(fromStatuses))
	for i, s := range fromStatuses {
		from[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE endorsement_requests
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)
	`, toStatus, id, pq.Array(from))
	if err != nil {
		return false, errs.Database("transition endorsement status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.Database("rows affected", err)
	}
	return n > 0, nil
}

// IncrementRetryAndSetStatus increments retry_count and sets status in one
// statement, used by the orchestrator's technical-retry path.
func (r *EndorsementRepo) IncrementRetryAndSetStatus(ctx context.Context, id string, toStatus domain.RequestStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE endorsement_requests
		SET status = $1, retry_count = retry_count + 1, updated_at = now()
		WHERE id = $2
	`, toStatus, id)
	if err != nil {
		return errs.Database("increment retry count", err)
	}
	return nil
}

// ListByEmployerAndStatus lists requests for an employer in a given
// status, ordered by original arrival (created_at) — the order
// Hold-Release must release parked requests in.
func (r *EndorsementRepo) ListByEmployerAndStatus(ctx context.Context, employerID string, status domain.RequestStatus) ([]domain.EndorsementRequest, error) {
	var requests []domain.EndorsementRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT id, employer_id, type, status, payload, retry_count, effective_date, trace_id, created_at, updated_at
		FROM endorsement_requests
		WHERE employer_id = $1 AND status = $2
		ORDER BY created_at
	`, employerID, status)
	if err != nil {
		return nil, errs.Database("list endorsements by status", err)
	}
	return requests, nil
}
