// Package holdrelease implements Hold-Release: on a ledger.balance_increased
// event, parked (ON_HOLD) requests for that employer are lifted back to
// VALIDATED, in original arrival order, and a fresh ledger.check_funds is
// re-published for each.
package holdrelease

import (
	"context"
	"encoding/json"

	"github.com/pmundhra/plum-ems/internal/bus"
	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
	"github.com/pmundhra/plum-ems/internal/logging"
	"github.com/pmundhra/plum-ems/internal/store"
)

// Releaser holds the dependencies for the handler.
type Releaser struct {
	requests  *store.EndorsementRepo
	publisher bus.Publisher
	log       *logging.Logger
}

// New builds a Releaser.
func New(requests *store.EndorsementRepo, publisher bus.Publisher, log *logging.Logger) *Releaser {
	return &Releaser{requests: requests, publisher: publisher, log: log}
}

// Name identifies this handler in the bus registry.
func (r *Releaser) Name() string { return "holdrelease.balance_increased" }

// Handle implements bus.Handler for the ledger.balance_increased topic.
func (r *Releaser) Handle(ctx context.Context, msg bus.Message, interim bus.InterimOutput) (bus.InterimOutput, error) {
	var event domain.BalanceIncreasedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return interim, errs.Wrap(errs.ErrCodeValidationMalformed, errs.KindValidation, "decode balance_increased event", err)
	}
	return interim, r.Release(ctx, event.EmployerID)
}

// Release moves every ON_HOLD request for employerID back to VALIDATED and
// fire-and-forget re-publishes ledger.check_funds for each. A publish
// failure is logged but the status change persists, so the next balance
// increase retries it.
func (r *Releaser) Release(ctx context.Context, employerID string) error {
	parked, err := r.requests.ListByEmployerAndStatus(ctx, employerID, domain.StatusOnHold)
	if err != nil {
		return err
	}

	for _, req := range parked {
		moved, err := r.requests.TransitionStatus(ctx, req.ID, []domain.RequestStatus{domain.StatusOnHold}, domain.StatusValidated)
		if err != nil {
			r.log.WithComponent("holdrelease").WithError(err).WithField("endorsement_id", req.ID).Error("transition to VALIDATED failed")
			continue
		}
		if !moved {
			continue
		}

		publishErr := r.publisher.Publish(ctx, domain.TopicLedgerCheckFunds, map[string]string{
			bus.HeaderTraceID:    req.TraceID,
			bus.HeaderEmployerID: req.EmployerID,
			bus.HeaderSource:     "holdrelease",
		}, domain.CheckFundsEvent{
			EndorsementID: req.ID,
			EmployerID:    req.EmployerID,
			RequestType:   req.Type,
			Payload:       req.Payload,
			TraceID:       req.TraceID,
		})
		if publishErr != nil {
			r.log.WithComponent("holdrelease").WithError(publishErr).WithField("endorsement_id", req.ID).Error("re-publish check_funds failed")
		}
	}
	return nil
}
