// Package errs provides the error taxonomy shared by every core component.
//
// Every error raised inside the pipeline carries one of the five kinds from
// the error handling design: validation, transient-infra, ledger-parked,
// business, or technical-exhausted. Callers branch on Kind, not on Code, to
// decide whether to retry, park, or dead-letter.
package errs

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique, stable error code.
type ErrorCode string

// Kind classifies an error for pipeline-level handling, per spec §7.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindTransientInfra     Kind = "transient_infra"
	KindLedgerParked       Kind = "ledger_parked"
	KindBusiness           Kind = "business"
	KindTechnicalExhausted Kind = "technical_exhausted"
)

const (
	// Scheduler
	ErrCodeSchedulerDecodeFailed ErrorCode = "SCHED_1001"
	ErrCodeSchedulerPublishFailed ErrorCode = "SCHED_1002"
	ErrCodeSchedulerQueueMissing ErrorCode = "SCHED_1003"

	// Ledger
	ErrCodeLedgerEmployerNotFound ErrorCode = "LEDGER_2001"
	ErrCodeLedgerInsufficientFunds ErrorCode = "LEDGER_2002"
	ErrCodeLedgerTxFailed          ErrorCode = "LEDGER_2003"

	// Orchestrator
	ErrCodeOrchestratorMissingIDs    ErrorCode = "ORCH_3001"
	ErrCodeOrchestratorStaleStatus   ErrorCode = "ORCH_3002"
	ErrCodeOrchestratorInvalidEvent  ErrorCode = "ORCH_3003"

	// Insurer gateway
	ErrCodeGatewayInsurerIDMissing  ErrorCode = "GW_4001"
	ErrCodeGatewayConfigMissing     ErrorCode = "GW_4002"
	ErrCodeGatewayTransport         ErrorCode = "GW_4003"
	ErrCodeGatewayBusinessRejection ErrorCode = "GW_4004"
	ErrCodeGatewayCircuitOpen       ErrorCode = "GW_4005"

	// Validation (ingress-level, never enters the pipeline)
	ErrCodeValidationDuplicate ErrorCode = "VAL_5001"
	ErrCodeValidationMalformed ErrorCode = "VAL_5002"

	// Generic infra
	ErrCodeDatabase ErrorCode = "INFRA_6001"
	ErrCodeBus      ErrorCode = "INFRA_6002"
	ErrCodeKV       ErrorCode = "INFRA_6003"
)

// PipelineError is a structured error carrying a stable code and a Kind the
// caller can branch on to decide retry/park/dead-letter behaviour.
type PipelineError struct {
	Code    ErrorCode              `json:"code"`
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WithDetails attaches additional structured context to the error.
func (e *PipelineError) WithDetails(key string, value interface{}) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a PipelineError with no wrapped cause.
func New(code ErrorCode, kind Kind, message string) *PipelineError {
	return &PipelineError{Code: code, Kind: kind, Message: message}
}

// Wrap creates a PipelineError wrapping an underlying cause.
func Wrap(code ErrorCode, kind Kind, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Kind: kind, Message: message, Err: err}
}

// Scheduler

func SchedulerDecodeFailed(err error) *PipelineError {
	return Wrap(ErrCodeSchedulerDecodeFailed, KindValidation, "failed to decode buffered request", err)
}

func SchedulerQueueMissing(employerID string) *PipelineError {
	return New(ErrCodeSchedulerQueueMissing, KindTransientInfra, "scheduler queue missing").
		WithDetails("employer_id", employerID)
}

// Ledger

func LedgerEmployerNotFound(employerID string) *PipelineError {
	return New(ErrCodeLedgerEmployerNotFound, KindTechnicalExhausted, "employer not found").
		WithDetails("employer_id", employerID)
}

func LedgerInsufficientFunds(employerID, required, available string) *PipelineError {
	return New(ErrCodeLedgerInsufficientFunds, KindLedgerParked, "insufficient funds").
		WithDetails("employer_id", employerID).
		WithDetails("required", required).
		WithDetails("available", available)
}

// Orchestrator

func OrchestratorMissingIDs() *PipelineError {
	return New(ErrCodeOrchestratorMissingIDs, KindValidation, "event missing endorsement_id or employer_id")
}

// Gateway

func GatewayInsurerIDMissing() *PipelineError {
	return New(ErrCodeGatewayInsurerIDMissing, KindTechnicalExhausted, "insurer identifier could not be resolved from payload")
}

func GatewayConfigMissing(insurerID string) *PipelineError {
	return New(ErrCodeGatewayConfigMissing, KindTechnicalExhausted, "no gateway configuration for insurer").
		WithDetails("insurer_id", insurerID)
}

func GatewayBusinessRejection(code, message string) *PipelineError {
	return New(ErrCodeGatewayBusinessRejection, KindBusiness, message).
		WithDetails("insurer_code", code)
}

func GatewayCircuitOpen(insurerID string) *PipelineError {
	return New(ErrCodeGatewayCircuitOpen, KindTechnicalExhausted, "circuit breaker open for insurer").
		WithDetails("insurer_id", insurerID)
}

// Validation (ingress)

func ValidationDuplicate(employerID string) *PipelineError {
	return New(ErrCodeValidationDuplicate, KindValidation, "duplicate request within dedup window").
		WithDetails("employer_id", employerID)
}

// Infra

func Database(operation string, err error) *PipelineError {
	return Wrap(ErrCodeDatabase, KindTransientInfra, "database operation failed", err).
		WithDetails("operation", operation)
}

func Bus(operation string, err error) *PipelineError {
	return Wrap(ErrCodeBus, KindTransientInfra, "bus operation failed", err).
		WithDetails("operation", operation)
}

func KV(operation string, err error) *PipelineError {
	return Wrap(ErrCodeKV, KindTransientInfra, "kv operation failed", err).
		WithDetails("operation", operation)
}

// Helpers

// As extracts a *PipelineError from an error chain.
func As(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// PipelineError, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	if pe := As(err); pe != nil {
		return pe.Kind, true
	}
	return "", false
}
