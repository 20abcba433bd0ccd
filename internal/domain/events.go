package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Topic names, exactly as specified for the bus's external interface.
const (
	TopicEndorsementIngested   = "endorsement.ingested"
	TopicEndorsementPrioritized = "endorsement.prioritized"
	TopicLedgerCheckFunds      = "ledger.check_funds"
	TopicLedgerFundsLocked     = "ledger.funds_locked"
	TopicLedgerBalanceIncreased = "ledger.balance_increased"
	TopicInsurerRequest        = "insurer.request"
	TopicInsurerRequestRetry   = "insurer.request.retry"
	TopicInsurerRequestDLQ     = "insurer.request.dlq"
	TopicInsurerSuccess        = "insurer.success"
	TopicEndorsementCompleted  = "endorsement.completed"
)

// FundsLockStatus enumerates the status field of a ledger.funds_locked
// event.
type FundsLockStatus string

const (
	FundsLocked  FundsLockStatus = "LOCKED"
	FundsOnHold  FundsLockStatus = "ON_HOLD"
	FundsFailed  FundsLockStatus = "FAILED"
)

// GatewayOutcomeStatus enumerates the status field of an insurer.success
// event.
type GatewayOutcomeStatus string

const (
	OutcomeSuccess GatewayOutcomeStatus = "SUCCESS"
	OutcomeFailure GatewayOutcomeStatus = "FAILURE"
)

// GatewayErrorType classifies a gateway failure for orchestrator routing.
type GatewayErrorType string

const (
	ErrorTypeNone      GatewayErrorType = "NONE"
	ErrorTypeBusiness  GatewayErrorType = "BUSINESS"
	ErrorTypeTechnical GatewayErrorType = "TECHNICAL"
)

// PrioritizedEvent is the payload of endorsement.ingested/prioritized.
type PrioritizedEvent struct {
	EndorsementID string          `json:"endorsement_id"`
	EmployerID    string          `json:"employer_id"`
	Type          RequestType     `json:"type"`
	EffectiveDate string          `json:"effective_date"`
	Payload       json.RawMessage `json:"payload"`
	TraceID       string          `json:"trace_id"`
}

// CheckFundsEvent is the payload of ledger.check_funds.
type CheckFundsEvent struct {
	EndorsementID string          `json:"endorsement_id"`
	EmployerID    string          `json:"employer_id"`
	RequestType   RequestType     `json:"request_type"`
	EffectiveDate string          `json:"effective_date"`
	Payload       json.RawMessage `json:"payload"`
	TraceID       string          `json:"trace_id"`
}

// FundsLockedEvent is the payload of ledger.funds_locked.
type FundsLockedEvent struct {
	EndorsementID string           `json:"endorsement_id"`
	EmployerID    string           `json:"employer_id"`
	LockedAmount  decimal.Decimal  `json:"locked_amount"`
	ReservationID string           `json:"reservation_id"`
	Status        FundsLockStatus  `json:"status"`
	NewBalance    *decimal.Decimal `json:"new_balance,omitempty"`
	RequestType   RequestType      `json:"request_type,omitempty"`
	Message       string           `json:"message,omitempty"`
	TraceID       string           `json:"trace_id,omitempty"`
}

// BalanceIncreasedEvent is the payload of ledger.balance_increased.
type BalanceIncreasedEvent struct {
	EmployerID   string          `json:"employer_id"`
	ChangeAmount decimal.Decimal `json:"change_amount"`
	NewBalance   decimal.Decimal `json:"new_balance"`
	Timestamp    string          `json:"timestamp"`
	Source       string          `json:"source,omitempty"`
}

// LedgerContext carries the funds-locked outcome into an insurer.request
// event.
type LedgerContext struct {
	LockedAmount  decimal.Decimal `json:"locked_amount"`
	ReservationID string          `json:"reservation_id"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// InsurerRequestEvent is the payload of insurer.request and
// insurer.request.retry (with RetryDelaySeconds/LastError populated).
type InsurerRequestEvent struct {
	EndorsementID     string          `json:"endorsement_id"`
	EmployerID        string          `json:"employer_id"`
	RequestType       RequestType     `json:"request_type"`
	TraceID           string          `json:"trace_id"`
	Payload           json.RawMessage `json:"payload"`
	LedgerContext     LedgerContext   `json:"ledger_context"`
	InsurerID         string          `json:"insurer_id"`
	RetryCount        int             `json:"retry_count"`
	RetryDelaySeconds int             `json:"retry_delay_seconds,omitempty"`
	LastError         string          `json:"last_error,omitempty"`
}

// InsurerResponseSnapshot is the compact insurer response embedded in
// insurer.success.
type InsurerResponseSnapshot struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       json.RawMessage   `json:"body"`
}

// InsurerOutcomeEvent is the payload of insurer.success.
type InsurerOutcomeEvent struct {
	EndorsementID string                  `json:"endorsement_id"`
	EmployerID    string                  `json:"employer_id"`
	TraceID       string                  `json:"trace_id"`
	Status        GatewayOutcomeStatus    `json:"status"`
	ErrorType     GatewayErrorType        `json:"error_type"`
	ErrorCode     string                  `json:"error_code,omitempty"`
	ErrorMessage  string                  `json:"error_message,omitempty"`
	RetryCount    int                     `json:"retry_count"`
	Response      InsurerResponseSnapshot `json:"response"`
}

// CompletedEvent is the payload of endorsement.completed.
type CompletedEvent struct {
	EndorsementID string                  `json:"endorsement_id"`
	EmployerID    string                  `json:"employer_id"`
	TraceID       string                  `json:"trace_id"`
	RetryCount    int                     `json:"retry_count"`
	Status        RequestStatus           `json:"status"`
	InsurerResponse *InsurerResponseSnapshot `json:"insurer_response,omitempty"`
}
