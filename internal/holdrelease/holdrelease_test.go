package holdrelease

import (
	"context"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/logging"
	"github.com/pmundhra/plum-ems/internal/store"
)

type publishedMessage struct {
	topic string
	value interface{}
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	failFor   map[string]bool
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, headers map[string]string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event, ok := value.(domain.CheckFundsEvent); ok && f.failFor[event.EndorsementID] {
		return context.DeadlineExceeded
	}
	f.published = append(f.published, publishedMessage{topic: topic, value: value})
	return nil
}

func (f *fakePublisher) endorsementIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, m := range f.published {
		if event, ok := m.value.(domain.CheckFundsEvent); ok {
			ids = append(ids, event.EndorsementID)
		}
	}
	return ids
}

func onHoldRows() *sqlmock.Rows {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	return sqlmock.NewRows([]string{
		"id", "employer_id", "type", "status", "payload", "retry_count", "effective_date", "trace_id", "created_at", "updated_at",
	}).
		AddRow("end-1", "emp-1", "ADDITION", "ON_HOLD", []byte(`{}`), 0, time.Now(), "t1", older, older).
		AddRow("end-2", "emp-1", "MODIFICATION", "ON_HOLD", []byte(`{}`), 0, time.Now(), "t2", newer, newer)
}

func TestReleaseMovesParkedRequestsToValidatedInFIFOOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, employer_id, type, status, payload, retry_count, effective_date, trace_id, created_at, updated_at\s+FROM endorsement_requests\s+WHERE employer_id = \$1 AND status = \$2`).
		WithArgs("emp-1", domain.StatusOnHold).
		WillReturnRows(onHoldRows())
	mock.ExpectExec(`UPDATE endorsement_requests`).
		WithArgs(domain.StatusValidated, "end-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE endorsement_requests`).
		WithArgs(domain.StatusValidated, "end-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pub := &fakePublisher{}
	releaser := New(store.NewEndorsementRepo(db), pub, logging.NewDefault())

	err = releaser.Release(context.Background(), "emp-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Equal(t, []string{"end-1", "end-2"}, pub.endorsementIDs(), "older parked requests must be released and re-dispatched before newer ones")
}

func TestReleaseSkipsRequestAlreadyMovedByAConcurrentRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, employer_id, type, status, payload, retry_count, effective_date, trace_id, created_at, updated_at\s+FROM endorsement_requests\s+WHERE employer_id = \$1 AND status = \$2`).
		WithArgs("emp-1", domain.StatusOnHold).
		WillReturnRows(onHoldRows())
	mock.ExpectExec(`UPDATE endorsement_requests`).
		WithArgs(domain.StatusValidated, "end-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE endorsement_requests`).
		WithArgs(domain.StatusValidated, "end-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pub := &fakePublisher{}
	releaser := New(store.NewEndorsementRepo(db), pub, logging.NewDefault())

	err = releaser.Release(context.Background(), "emp-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, []string{"end-2"}, pub.endorsementIDs(), "a no-op transition must not re-publish check_funds for that request")
}

func TestReleaseContinuesPastAPublishFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, employer_id, type, status, payload, retry_count, effective_date, trace_id, created_at, updated_at\s+FROM endorsement_requests\s+WHERE employer_id = \$1 AND status = \$2`).
		WithArgs("emp-1", domain.StatusOnHold).
		WillReturnRows(onHoldRows())
	mock.ExpectExec(`UPDATE endorsement_requests`).
		WithArgs(domain.StatusValidated, "end-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE endorsement_requests`).
		WithArgs(domain.StatusValidated, "end-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pub := &fakePublisher{failFor: map[string]bool{"end-1": true}}
	releaser := New(store.NewEndorsementRepo(db), pub, logging.NewDefault())

	err = releaser.Release(context.Background(), "emp-1")
	require.NoError(t, err, "a publish failure for one request must not abort the release of the rest")
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, []string{"end-2"}, pub.endorsementIDs())
}

func TestReleaseNoOpWhenNoneParked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, employer_id, type, status, payload, retry_count, effective_date, trace_id, created_at, updated_at\s+FROM endorsement_requests\s+WHERE employer_id = \$1 AND status = \$2`).
		WithArgs("emp-1", domain.StatusOnHold).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "employer_id", "type", "status", "payload", "retry_count", "effective_date", "trace_id", "created_at", "updated_at",
		}))

	pub := &fakePublisher{}
	releaser := New(store.NewEndorsementRepo(db), pub, logging.NewDefault())

	err = releaser.Release(context.Background(), "emp-1")
	require.NoError(t, err)
	require.Empty(t, pub.published)
}
