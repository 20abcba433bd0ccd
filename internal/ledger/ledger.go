// Package ledger implements the Ledger Engine: it resolves the amount for
// an endorsement, atomically adjusts ea_balance under a row lock, and
// emits ledger.funds_locked (and, on a positive credit, ledger.balance_increased).
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pmundhra/plum-ems/internal/bus"
	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
	"github.com/pmundhra/plum-ems/internal/ids"
	"github.com/pmundhra/plum-ems/internal/logging"
	"github.com/pmundhra/plum-ems/internal/metrics"
	"github.com/pmundhra/plum-ems/internal/pricing"
	"github.com/pmundhra/plum-ems/internal/store"
)

// Engine implements the CheckFunds algorithm from the ledger engine design.
type Engine struct {
	employers *store.EmployerRepo
	ledgerTx  *store.LedgerTxRepo
	pricing   pricing.Resolver
	publisher bus.Publisher
	log       *logging.Logger
}

// New builds a ledger Engine.
func New(employers *store.EmployerRepo, ledgerTx *store.LedgerTxRepo, pricer pricing.Resolver, publisher bus.Publisher, log *logging.Logger) *Engine {
	return &Engine{employers: employers, ledgerTx: ledgerTx, pricing: pricer, publisher: publisher, log: log}
}

// Name identifies this handler in the bus registry.
func (e *Engine) Name() string { return "ledger.check_funds" }

// Handle implements bus.Handler for the ledger.check_funds topic.
func (e *Engine) Handle(ctx context.Context, msg bus.Message, interim bus.InterimOutput) (bus.InterimOutput, error) {
	var event domain.CheckFundsEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return interim, errs.Wrap(errs.ErrCodeValidationMalformed, errs.KindValidation, "decode check_funds event", err)
	}
	if err := e.CheckFunds(ctx, event); err != nil {
		return interim, err
	}
	return interim, nil
}

// CheckFunds runs the amount resolution, row-lock, balance mutation and
// funds_locked emission described in the Ledger Engine component design.
func (e *Engine) CheckFunds(ctx context.Context, event domain.CheckFundsEvent) error {
	var payload domain.RequestPayload
	_ = json.Unmarshal(event.Payload, &payload)

	fallback, err := e.pricing.Resolve(ctx, event.RequestType, event.Payload)
	if err != nil {
		return errs.Wrap(errs.ErrCodeLedgerTxFailed, errs.KindTransientInfra, "resolve pricing fallback", err)
	}
	amount := payload.ResolveAmount(fallback)

	isCredit := event.RequestType == domain.RequestDeletion
	txType := domain.TransactionDebit
	if isCredit {
		txType = domain.TransactionCredit
	}

	tx, err := e.employers.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	employer, err := e.employers.LockForUpdate(ctx, tx, event.EmployerID)
	if err != nil {
		return err
	}

	reservationID := uuid.New().String()
	txID := ids.New()

	if !isCredit && employer.EABalance.LessThan(amount) {
		endorsementID := event.EndorsementID
		if err := e.ledgerTx.Insert(ctx, tx, domain.LedgerTransaction{
			ID:            txID,
			EmployerID:    event.EmployerID,
			EndorsementID: &endorsementID,
			Type:          txType,
			Amount:        amount,
			Status:        domain.TransactionOnHoldFunds,
		}); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return errs.Database("commit on_hold ledger tx", err)
		}

		metrics.LedgerTransactionsTotal.WithLabelValues(string(txType), "on_hold").Inc()
		return e.publisher.Publish(ctx, domain.TopicLedgerFundsLocked, headersFor(event.TraceID, event.EmployerID), domain.FundsLockedEvent{
			EndorsementID: event.EndorsementID,
			EmployerID:    event.EmployerID,
			LockedAmount:  amount,
			ReservationID: reservationID,
			Status:        domain.FundsOnHold,
			Message:       "Insufficient funds",
			TraceID:       event.TraceID,
		})
	}

	newBalance := employer.EABalance.Sub(amount)
	if isCredit {
		newBalance = employer.EABalance.Add(amount)
	}

	endorsementID := event.EndorsementID
	if err := e.ledgerTx.Insert(ctx, tx, domain.LedgerTransaction{
		ID:            txID,
		EmployerID:    event.EmployerID,
		EndorsementID: &endorsementID,
		Type:          txType,
		Amount:        amount,
		Status:        domain.TransactionLocked,
	}); err != nil {
		return err
	}
	if err := e.employers.UpdateBalance(ctx, tx, event.EmployerID, newBalance); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Database("commit ledger tx", err)
	}

	metrics.LedgerTransactionsTotal.WithLabelValues(string(txType), "locked").Inc()

	if isCredit && amount.IsPositive() {
		if err := e.publisher.Publish(ctx, domain.TopicLedgerBalanceIncreased, headersFor(event.TraceID, event.EmployerID), domain.BalanceIncreasedEvent{
			EmployerID:   event.EmployerID,
			ChangeAmount: amount,
			NewBalance:   newBalance,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Source:       "ledger.check_funds",
		}); err != nil {
			e.log.WithComponent("ledger").WithError(err).Error("publish balance_increased failed")
		}
	}

	return e.publisher.Publish(ctx, domain.TopicLedgerFundsLocked, headersFor(event.TraceID, event.EmployerID), domain.FundsLockedEvent{
		EndorsementID: event.EndorsementID,
		EmployerID:    event.EmployerID,
		LockedAmount:  amount,
		ReservationID: reservationID,
		Status:        domain.FundsLocked,
		NewBalance:    &newBalance,
		RequestType:   event.RequestType,
		TraceID:       event.TraceID,
	})
}

func headersFor(traceID, employerID string) map[string]string {
	return map[string]string{
		bus.HeaderTraceID:    traceID,
		bus.HeaderEmployerID: employerID,
		bus.HeaderSource:     "ledger",
	}
}
