package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pmundhra/plum-ems/internal/domain"
)

// HTTPStrategy is the REST_API protocol variant: 2xx → SUCCESS, 4xx →
// FAILURE/BUSINESS, 5xx or transport/timeout → FAILURE/TECHNICAL.
type HTTPStrategy struct {
	client *http.Client
}

// NewHTTPStrategy builds an HTTPStrategy. The per-request timeout comes
// from Request.TimeoutSeconds, or 30 seconds when that is not positive.
func NewHTTPStrategy() *HTTPStrategy {
	return &HTTPStrategy{client: &http.Client{}}
}

// ProtocolName identifies this strategy.
func (s *HTTPStrategy) ProtocolName() string { return "REST_API" }

// Execute performs the outbound HTTP call and classifies the outcome.
func (s *HTTPStrategy) Execute(ctx context.Context, req Request) Response {
	method := req.Config.Method
	if method == "" {
		method = http.MethodPost
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, req.Config.URL, bytes.NewReader(req.RequestBody))
	if err != nil {
		return s.transportError(err)
	}
	for k, v := range req.RequestHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return s.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return s.transportError(err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Response{
			StatusCode: resp.StatusCode,
			Headers:    headers,
			Body:       body,
			Status:     domain.OutcomeSuccess,
			ErrorType:  domain.ErrorTypeNone,
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Response{
			StatusCode: resp.StatusCode,
			Headers:    headers,
			Body:       body,
			Status:     domain.OutcomeFailure,
			ErrorType:  domain.ErrorTypeBusiness,
			ErrorCode:  fmt.Sprintf("HTTP_%d", resp.StatusCode),
			ErrorMsg:   string(body),
		}
	default:
		return Response{
			StatusCode: resp.StatusCode,
			Headers:    headers,
			Body:       body,
			Status:     domain.OutcomeFailure,
			ErrorType:  domain.ErrorTypeTechnical,
			ErrorCode:  fmt.Sprintf("HTTP_%d", resp.StatusCode),
			ErrorMsg:   string(body),
		}
	}
}

func (s *HTTPStrategy) transportError(err error) Response {
	return Response{
		Status:    domain.OutcomeFailure,
		ErrorType: domain.ErrorTypeTechnical,
		ErrorCode: "TRANSPORT_ERROR",
		ErrorMsg:  err.Error(),
	}
}
