// Package domain holds the tagged-record types shared across the
// endorsement pipeline's components. Open-ended attribute bags from the
// originating system (payload, demographics, config, plan_details) are
// carried as json.RawMessage at the boundary and decoded into narrow
// purpose-built structs only where a component needs specific fields.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EmployerStatus enumerates Employer.Status values.
type EmployerStatus string

const (
	EmployerActive EmployerStatus = "ACTIVE"
)

// Employer is the master record for a policyholder and the owner of the
// prepaid Endorsement Account (EA) balance.
type Employer struct {
	ID         string          `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	EABalance  decimal.Decimal `db:"ea_balance" json:"ea_balance"`
	Config     json.RawMessage `db:"config" json:"config"`
	Status     EmployerStatus  `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// EmployerConfig is the narrow view of Employer.Config that the ledger and
// hold-release components consume.
type EmployerConfig struct {
	LowBalanceThreshold decimal.Decimal `json:"low_balance_threshold"`
	AllowedOverdraft    bool            `json:"allowed_overdraft"`
	NotificationEmail   string          `json:"notification_email"`
	DefaultPolicy       json.RawMessage `json:"default_policy,omitempty"`
}

// Employee is a census row owned by an Employer.
type Employee struct {
	ID           string          `db:"id" json:"id"`
	EmployerID   string          `db:"employer_id" json:"employer_id"`
	EmployeeCode string          `db:"employee_code" json:"employee_code"`
	Demographics json.RawMessage `db:"demographics" json:"demographics"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// CoverageStatus enumerates PolicyCoverage.Status values.
type CoverageStatus string

const (
	CoverageActive          CoverageStatus = "ACTIVE"
	CoverageInactive        CoverageStatus = "INACTIVE"
	CoveragePendingIssuance CoverageStatus = "PENDING_ISSUANCE"
)

// PolicyCoverage is an insurance coverage span owned by an Employee.
type PolicyCoverage struct {
	ID          string          `db:"id" json:"id"`
	EmployeeID  string          `db:"employee_id" json:"employee_id"`
	InsurerID   string          `db:"insurer_id" json:"insurer_id"`
	Status      CoverageStatus  `db:"status" json:"status"`
	StartDate   time.Time       `db:"start_date" json:"start_date"`
	EndDate     *time.Time      `db:"end_date" json:"end_date,omitempty"`
	PlanDetails json.RawMessage `db:"plan_details" json:"plan_details"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// RequestType enumerates EndorsementRequest.Type values.
type RequestType string

const (
	RequestAddition     RequestType = "ADDITION"
	RequestDeletion     RequestType = "DELETION"
	RequestModification RequestType = "MODIFICATION"
)

// Priority returns the scheduler's sort priority for a request type:
// lower sorts first. Unknown types sort after every known type.
func (t RequestType) Priority() int {
	switch t {
	case RequestDeletion:
		return 1
	case RequestModification:
		return 2
	case RequestAddition:
		return 3
	default:
		return 4
	}
}

// RequestStatus enumerates EndorsementRequest.Status values, the states of
// the orchestrator's lifecycle state machine.
type RequestStatus string

const (
	StatusReceived     RequestStatus = "RECEIVED"
	StatusValidated    RequestStatus = "VALIDATED"
	StatusFundsLocked  RequestStatus = "FUNDS_LOCKED"
	StatusSent         RequestStatus = "SENT"
	StatusConfirmed    RequestStatus = "CONFIRMED"
	StatusActive       RequestStatus = "ACTIVE"
	StatusOnHold       RequestStatus = "ON_HOLD"
	StatusFailed       RequestStatus = "FAILED"
)

// IsTerminal reports whether status is a terminal lifecycle state.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusActive || s == StatusFailed
}

// EndorsementRequest is the central state-bearing entity of the pipeline.
type EndorsementRequest struct {
	ID            string          `db:"id" json:"id"`
	EmployerID    string          `db:"employer_id" json:"employer_id"`
	Type          RequestType     `db:"type" json:"type"`
	Status        RequestStatus   `db:"status" json:"status"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	RetryCount    int             `db:"retry_count" json:"retry_count"`
	EffectiveDate time.Time       `db:"effective_date" json:"effective_date"`
	TraceID       string          `db:"trace_id" json:"trace_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// RequestPayload is the narrow decode of EndorsementRequest.Payload used to
// resolve the ledger amount and the insurer id, per the precedence rules in
// the ledger engine and gateway designs.
type RequestPayload struct {
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Payload *struct {
		Amount   *decimal.Decimal `json:"amount,omitempty"`
		Coverage *struct {
			Amount    *decimal.Decimal `json:"amount,omitempty"`
			InsurerID string           `json:"insurer_id,omitempty"`
		} `json:"coverage,omitempty"`
	} `json:"payload,omitempty"`
	Coverage *struct {
		InsurerID string `json:"insurer_id,omitempty"`
	} `json:"coverage,omitempty"`
	InsurerID string `json:"insurer_id,omitempty"`
}

// ResolveAmount implements the ledger's amount-resolution precedence:
// payload.amount > payload.payload.amount > payload.payload.coverage.amount.
// The caller supplies the pricing-stub fallback; negative results clamp to
// zero.
func (p RequestPayload) ResolveAmount(fallback decimal.Decimal) decimal.Decimal {
	amount := fallback
	switch {
	case p.Amount != nil:
		amount = *p.Amount
	case p.Payload != nil && p.Payload.Amount != nil:
		amount = *p.Payload.Amount
	case p.Payload != nil && p.Payload.Coverage != nil && p.Payload.Coverage.Amount != nil:
		amount = *p.Payload.Coverage.Amount
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// ResolveInsurerID implements the insurer-id resolution precedence over
// the decoded request document: payload.coverage.insurer_id >
// coverage.insurer_id > top-level insurer_id.
func (p RequestPayload) ResolveInsurerID() string {
	if p.Payload != nil && p.Payload.Coverage != nil && p.Payload.Coverage.InsurerID != "" {
		return p.Payload.Coverage.InsurerID
	}
	if p.Coverage != nil && p.Coverage.InsurerID != "" {
		return p.Coverage.InsurerID
	}
	return p.InsurerID
}

// TransactionType enumerates LedgerTransaction.Type values.
type TransactionType string

const (
	TransactionDebit  TransactionType = "DEBIT"
	TransactionCredit TransactionType = "CREDIT"
)

// TransactionStatus enumerates LedgerTransaction.Status values.
type TransactionStatus string

const (
	TransactionLocked        TransactionStatus = "LOCKED"
	TransactionCleared       TransactionStatus = "CLEARED"
	TransactionOnHoldFunds   TransactionStatus = "ON_HOLD_FUNDS"
	TransactionFailed        TransactionStatus = "FAILED"
)

// LedgerTransaction is an append-only financial record.
type LedgerTransaction struct {
	ID            string            `db:"id" json:"id"`
	EmployerID    string            `db:"employer_id" json:"employer_id"`
	EndorsementID *string           `db:"endorsement_id" json:"endorsement_id,omitempty"`
	Type          TransactionType   `db:"type" json:"type"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	Status        TransactionStatus `db:"status" json:"status"`
	ExternalRef   *string           `db:"external_ref" json:"external_ref,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// AuditStatus enumerates AuditLogDocument.Status values.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailure AuditStatus = "FAILURE"
	AuditTimeout AuditStatus = "TIMEOUT"
)

// AuditLogDocument is an append-only record of one outbound insurer
// interaction, written exactly once per attempt.
type AuditLogDocument struct {
	ID              string          `json:"id"`
	EndorsementID   string          `json:"endorsement_id"`
	TraceID         string          `json:"trace_id"`
	InsurerID       string          `json:"insurer_id"`
	InteractionType string          `json:"interaction_type"`
	Timestamp       time.Time       `json:"timestamp"`
	LatencyMS       int64           `json:"latency_ms"`
	Status          AuditStatus     `json:"status"`
	Request         json.RawMessage `json:"request"`
	Response        json.RawMessage `json:"response"`
	Error           *AuditError     `json:"error,omitempty"`
}

// AuditError captures a classified failure for an audit document.
type AuditError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace,omitempty"`
}
