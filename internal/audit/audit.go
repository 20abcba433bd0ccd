// Package audit implements the append-only audit document store: one
// document per outbound insurer interaction, sanitised before it ever
// reaches storage.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
	"github.com/pmundhra/plum-ems/internal/ids"
)

// Store is the audit_log_documents repository. Documents are append-only:
// there is no Update method.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a *sql.DB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

type auditRow struct {
	ID              string          `db:"id"`
	EndorsementID   string          `db:"endorsement_id"`
	TraceID         string          `db:"trace_id"`
	InsurerID       string          `db:"insurer_id"`
	InteractionType string          `db:"interaction_type"`
	Timestamp       time.Time       `db:"timestamp"`
	LatencyMS       int64           `db:"latency_ms"`
	Status          string          `db:"status"`
	Request         json.RawMessage `db:"request"`
	Response        json.RawMessage `db:"response"`
	Error           json.RawMessage `db:"error"`
}

// Append writes one audit document. The document's ID is assigned here if
// unset, so callers never need their own id generation scheme.
func (s *Store) Append(ctx context.Context, doc domain.AuditLogDocument) error {
	if doc.ID == "" {
		doc.ID = ids.New()
	}

	var errJSON json.RawMessage
	if doc.Error != nil {
		b, err := json.Marshal(doc.Error)
		if err != nil {
			return errs.Wrap(errs.ErrCodeGatewayBusinessRejection, errs.KindValidation, "marshal audit error", err)
		}
		errJSON = b
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log_documents
			(id, endorsement_id, trace_id, insurer_id, interaction_type, "timestamp", latency_ms, status, request, response, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, doc.ID, doc.EndorsementID, doc.TraceID, doc.InsurerID, doc.InteractionType,
		doc.Timestamp, doc.LatencyMS, doc.Status, doc.Request, doc.Response, errJSON)
	if err != nil {
		return errs.Database("append audit document", err)
	}
	return nil
}

// ListByEndorsement returns every audit document for one endorsement, in
// write order.
func (s *Store) ListByEndorsement(ctx context.Context, endorsementID string) ([]domain.AuditLogDocument, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, endorsement_id, trace_id, insurer_id, interaction_type, "timestamp", latency_ms, status, request, response, error
		FROM audit_log_documents
		WHERE endorsement_id = $1
		ORDER BY "timestamp" ASC
	`, endorsementID)
	if err != nil {
		return nil, errs.Database("list audit documents", err)
	}

	docs := make([]domain.AuditLogDocument, 0, len(rows))
	for _, r := range rows {
		doc := domain.AuditLogDocument{
			ID:              r.ID,
			EndorsementID:   r.EndorsementID,
			TraceID:         r.TraceID,
			InsurerID:       r.InsurerID,
			InteractionType: r.InteractionType,
			Timestamp:       r.Timestamp,
			LatencyMS:       r.LatencyMS,
			Status:          domain.AuditStatus(r.Status),
			Request:         r.Request,
			Response:        r.Response,
		}
		if len(r.Error) > 0 {
			var auditErr domain.AuditError
			if err := json.Unmarshal(r.Error, &auditErr); err == nil {
				doc.Error = &auditErr
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
