package audit

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/pmundhra/plum-ems/internal/domain"
)

func TestStoreAppend_AssignsIDWhenUnset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO audit_log_documents`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewStore(db)
	doc := domain.AuditLogDocument{
		EndorsementID:   "end-1",
		TraceID:         "trace-1",
		InsurerID:       "INS1",
		InteractionType: "INSURER_REQUEST",
		Timestamp:       time.Now().UTC(),
		Status:          domain.AuditSuccess,
		Request:         []byte(`{}`),
		Response:        []byte(`{}`),
	}

	require.NoError(t, store.Append(context.Background(), doc))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAppend_WithError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO audit_log_documents`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewStore(db)
	doc := domain.AuditLogDocument{
		ID:              "aud-1",
		EndorsementID:   "end-1",
		TraceID:         "trace-1",
		InsurerID:       "INS1",
		InteractionType: "INSURER_REQUEST",
		Timestamp:       time.Now().UTC(),
		Status:          domain.AuditFailure,
		Request:         []byte(`{}`),
		Response:        []byte(`{}`),
		Error:           &domain.AuditError{Code: "HTTP_500", Message: "server error"},
	}

	require.NoError(t, store.Append(context.Background(), doc))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListByEndorsement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "endorsement_id", "trace_id", "insurer_id", "interaction_type",
		"timestamp", "latency_ms", "status", "request", "response", "error",
	}).AddRow("aud-1", "end-1", "trace-1", "INS1", "INSURER_REQUEST",
		time.Now().UTC(), int64(120), "SUCCESS", []byte(`{}`), []byte(`{}`), nil)

	mock.ExpectQuery(`SELECT id, endorsement_id, trace_id, insurer_id, interaction_type`).
		WithArgs("end-1").
		WillReturnRows(rows)

	store := NewStore(db)
	docs, err := store.ListByEndorsement(context.Background(), "end-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, domain.AuditSuccess, docs[0].Status)
}
