package gateway

import (
	"context"
	"encoding/json"

	"github.com/pmundhra/plum-ems/internal/domain"
)

// Request is a strategy's input, built by the gateway from an
// insurer.request event plus resolved config.
type Request struct {
	EndorsementID  string
	EmployerID     string
	TraceID        string
	RetryCount     int
	RequestBody    json.RawMessage
	RequestHeaders map[string]string
	RequestURL     string
	TimeoutSeconds int
	Config         InsurerConfig
}

// Response is a strategy's output.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       json.RawMessage
	Status     domain.GatewayOutcomeStatus
	ErrorCode  string
	ErrorMsg   string
	ErrorType  domain.GatewayErrorType
}

// Strategy is the outbound protocol contract. REST_API is the only
// implemented variant; SOAP and SFTP are anticipated by InsurerConfig.Protocol
// but not implemented, per the protocol-strategies-as-sum-type guidance.
type Strategy interface {
	ProtocolName() string
	Execute(ctx context.Context, req Request) Response
}

// InsurerConfig is the per-insurer gateway configuration resolved by
// insurer id.
type InsurerConfig struct {
	InsurerID string
	Protocol  string
	URL       string
	Method    string
}
