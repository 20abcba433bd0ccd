// Package orchestrator implements the Endorsement Orchestrator: the state
// machine coordinating each request across ledger, insurer and completion
// stages, driven entirely by bus events.
package orchestrator

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/pmundhra/plum-ems/internal/bus"
	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
	"github.com/pmundhra/plum-ems/internal/logging"
	"github.com/pmundhra/plum-ems/internal/metrics"
	"github.com/pmundhra/plum-ems/internal/store"
)

// Config controls retry policy.
type Config struct {
	MaxRetryCount int
	BackoffBase   float64
}

// Orchestrator holds the three event handlers; each is registered against
// its own topic in the bus registry, but they share state and config.
type Orchestrator struct {
	requests  *store.EndorsementRepo
	publisher bus.Publisher
	cfg       Config
	log       *logging.Logger
}

// New builds an Orchestrator.
func New(requests *store.EndorsementRepo, publisher bus.Publisher, cfg Config, log *logging.Logger) *Orchestrator {
	return &Orchestrator{requests: requests, publisher: publisher, cfg: cfg, log: log}
}

// PrioritizedHandler adapts Orchestrator.HandlePrioritized to bus.Handler.
type PrioritizedHandler struct{ *Orchestrator }

func (h PrioritizedHandler) Name() string { return "orchestrator.prioritized" }

func (h PrioritizedHandler) Handle(ctx context.Context, msg bus.Message, interim bus.InterimOutput) (bus.InterimOutput, error) {
	var event domain.PrioritizedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return interim, errs.Wrap(errs.ErrCodeValidationMalformed, errs.KindValidation, "decode prioritized event", err)
	}
	return interim, h.HandlePrioritized(ctx, event)
}

// HandlePrioritized requires endorsement_id+employer_id, atomically moves
// RECEIVED→VALIDATED, and emits ledger.check_funds.
func (o *Orchestrator) HandlePrioritized(ctx context.Context, event domain.PrioritizedEvent) error {
	if event.EndorsementID == "" || event.EmployerID == "" {
		return errs.OrchestratorMissingIDs()
	}

	moved, err := o.requests.TransitionStatus(ctx, event.EndorsementID, []domain.RequestStatus{domain.StatusReceived}, domain.StatusValidated)
	if err != nil {
		return err
	}
	if !moved {
		o.log.WithComponent("orchestrator").WithField("endorsement_id", event.EndorsementID).Warn("prioritized event is stale, request already past RECEIVED")
		return nil
	}

	return o.publisher.Publish(ctx, domain.TopicLedgerCheckFunds, headersFor(event.TraceID, event.EmployerID), domain.CheckFundsEvent{
		EndorsementID: event.EndorsementID,
		EmployerID:    event.EmployerID,
		RequestType:   event.Type,
		EffectiveDate: event.EffectiveDate,
		Payload:       event.Payload,
		TraceID:       event.TraceID,
	})
}

// FundsLockedHandler adapts Orchestrator.HandleFundsLocked to bus.Handler.
type FundsLockedHandler struct{ *Orchestrator }

func (h FundsLockedHandler) Name() string { return "orchestrator.funds_locked" }

func (h FundsLockedHandler) Handle(ctx context.Context, msg bus.Message, interim bus.InterimOutput) (bus.InterimOutput, error) {
	var event domain.FundsLockedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return interim, errs.Wrap(errs.ErrCodeValidationMalformed, errs.KindValidation, "decode funds_locked event", err)
	}
	return interim, h.HandleFundsLocked(ctx, event)
}

// HandleFundsLocked branches on the funds_locked status field.
func (o *Orchestrator) HandleFundsLocked(ctx context.Context, event domain.FundsLockedEvent) error {
	switch event.Status {
	case domain.FundsLocked:
		return o.handleFundsLockedLocked(ctx, event)
	case domain.FundsOnHold:
		_, err := o.requests.TransitionStatus(ctx, event.EndorsementID, []domain.RequestStatus{domain.StatusValidated}, domain.StatusOnHold)
		return err
	default:
		_, err := o.requests.TransitionStatus(ctx, event.EndorsementID, []domain.RequestStatus{domain.StatusValidated}, domain.StatusFailed)
		metrics.EndorsementsProcessedTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
		return err
	}
}

func (o *Orchestrator) handleFundsLockedLocked(ctx context.Context, event domain.FundsLockedEvent) error {
	if moved, err := o.requests.TransitionStatus(ctx, event.EndorsementID, []domain.RequestStatus{domain.StatusValidated, domain.StatusOnHold}, domain.StatusFundsLocked); err != nil {
		return err
	} else if !moved {
		return nil
	}

	req, err := o.requests.Get(ctx, event.EndorsementID)
	if err != nil {
		return err
	}

	if _, err := o.requests.TransitionStatus(ctx, event.EndorsementID, []domain.RequestStatus{domain.StatusFundsLocked}, domain.StatusSent); err != nil {
		return err
	}

	var payload domain.RequestPayload
	_ = json.Unmarshal(req.Payload, &payload)
	insurerID := payload.ResolveInsurerID()

	locked := domain.LedgerContext{
		LockedAmount:  event.LockedAmount,
		ReservationID: event.ReservationID,
	}
	if event.NewBalance != nil {
		locked.NewBalance = *event.NewBalance
	}

	return o.publisher.Publish(ctx, domain.TopicInsurerRequest, headersFor(event.TraceID, req.EmployerID), domain.InsurerRequestEvent{
		EndorsementID: event.EndorsementID,
		EmployerID:    req.EmployerID,
		RequestType:   req.Type,
		TraceID:       event.TraceID,
		Payload:       req.Payload,
		LedgerContext: locked,
		InsurerID:     insurerID,
		RetryCount:    req.RetryCount,
	})
}

// InsurerOutcomeHandler adapts Orchestrator.HandleInsurerOutcome to bus.Handler.
type InsurerOutcomeHandler struct{ *Orchestrator }

func (h InsurerOutcomeHandler) Name() string { return "orchestrator.insurer_success" }

func (h InsurerOutcomeHandler) Handle(ctx context.Context, msg bus.Message, interim bus.InterimOutput) (bus.InterimOutput, error) {
	var event domain.InsurerOutcomeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return interim, errs.Wrap(errs.ErrCodeValidationMalformed, errs.KindValidation, "decode insurer outcome event", err)
	}
	return interim, h.HandleInsurerOutcome(ctx, event)
}

// HandleInsurerOutcome finalises, retries, or dead-letters a request based
// on the gateway's outcome classification.
func (o *Orchestrator) HandleInsurerOutcome(ctx context.Context, event domain.InsurerOutcomeEvent) error {
	if event.Status == domain.OutcomeSuccess {
		if _, err := o.requests.TransitionStatus(ctx, event.EndorsementID, []domain.RequestStatus{domain.StatusSent}, domain.StatusConfirmed); err != nil {
			return err
		}
		if err := o.publisher.Publish(ctx, domain.TopicEndorsementCompleted, headersFor(event.TraceID, event.EmployerID), domain.CompletedEvent{
			EndorsementID: event.EndorsementID,
			EmployerID:    event.EmployerID,
			TraceID:       event.TraceID,
			RetryCount:    event.RetryCount,
			Status:        domain.StatusActive,
			InsurerResponse: &event.Response,
		}); err != nil {
			o.log.WithComponent("orchestrator").WithError(err).Error("publish endorsement.completed failed")
		}
		_, err := o.requests.TransitionStatus(ctx, event.EndorsementID, []domain.RequestStatus{domain.StatusConfirmed}, domain.StatusActive)
		metrics.EndorsementsProcessedTotal.WithLabelValues(string(domain.StatusActive)).Inc()
		return err
	}

	errorType := event.ErrorType
	if errorType == "" {
		errorType = domain.ErrorTypeTechnical
	}

	if errorType == domain.ErrorTypeBusiness {
		return o.deadLetter(ctx, event)
	}

	nextRetry := event.RetryCount + 1
	if nextRetry > o.cfg.MaxRetryCount {
		return o.deadLetter(ctx, event)
	}

	delaySeconds := int(math.Pow(o.cfg.BackoffBase, float64(nextRetry)) * 60)
	if err := o.requests.IncrementRetryAndSetStatus(ctx, event.EndorsementID, domain.StatusSent); err != nil {
		return err
	}

	req, err := o.requests.Get(ctx, event.EndorsementID)
	if err != nil {
		return err
	}
	var payload domain.RequestPayload
	_ = json.Unmarshal(req.Payload, &payload)

	headers := headersFor(event.TraceID, event.EmployerID)
	headers[bus.HeaderRetryAfterSeconds] = strconv.Itoa(delaySeconds)

	return o.publisher.Publish(ctx, domain.TopicInsurerRequestRetry, headers, domain.InsurerRequestEvent{
		EndorsementID:     event.EndorsementID,
		EmployerID:        event.EmployerID,
		RequestType:       req.Type,
		TraceID:           event.TraceID,
		Payload:           req.Payload,
		InsurerID:         payload.ResolveInsurerID(),
		RetryCount:        req.RetryCount,
		RetryDelaySeconds: delaySeconds,
		LastError:         event.ErrorMessage,
	})
}

func (o *Orchestrator) deadLetter(ctx context.Context, event domain.InsurerOutcomeEvent) error {
	if _, err := o.requests.TransitionStatus(ctx, event.EndorsementID, []domain.RequestStatus{domain.StatusSent}, domain.StatusFailed); err != nil {
		return err
	}
	metrics.EndorsementsProcessedTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	return bus.PublishDLQ(ctx, o.publisher, domain.TopicInsurerRequestDLQ, domain.TopicInsurerSuccess, headersFor(event.TraceID, event.EmployerID), event)
}

func headersFor(traceID, employerID string) map[string]string {
	return map[string]string{
		bus.HeaderTraceID:    traceID,
		bus.HeaderEmployerID: employerID,
		bus.HeaderSource:     "orchestrator",
	}
}
