// Package gateway implements the Insurer Gateway: it resolves a protocol
// strategy per insurer, executes the outbound call behind a per-insurer
// circuit breaker, writes a sanitised audit document, and emits
// insurer.success.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pmundhra/plum-ems/internal/bus"
	"github.com/pmundhra/plum-ems/internal/config"
	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
	"github.com/pmundhra/plum-ems/internal/logging"
	"github.com/pmundhra/plum-ems/internal/metrics"
	"github.com/pmundhra/plum-ems/internal/redaction"
)

// AuditWriter is the subset of audit.Store the gateway depends on, kept as
// an interface so tests can substitute an in-memory fake.
type AuditWriter interface {
	Append(ctx context.Context, doc domain.AuditLogDocument) error
}

// Gateway is the bus.Handler for insurer.request and insurer.request.retry.
type Gateway struct {
	strategies map[string]Strategy
	resolver   ConfigResolver
	audit      AuditWriter
	publisher  bus.Publisher
	cfg        config.GatewayConfig
	log        *logging.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a Gateway with the REST_API strategy registered. Additional
// protocol strategies can be added with RegisterStrategy.
func New(resolver ConfigResolver, store AuditWriter, publisher bus.Publisher, cfg config.GatewayConfig, log *logging.Logger) *Gateway {
	g := &Gateway{
		strategies: map[string]Strategy{},
		resolver:   resolver,
		audit:      store,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
		breakers:   map[string]*gobreaker.CircuitBreaker{},
	}
	g.RegisterStrategy(NewHTTPStrategy())
	return g
}

// RegisterStrategy adds (or replaces) the strategy for its ProtocolName.
func (g *Gateway) RegisterStrategy(s Strategy) {
	g.strategies[s.ProtocolName()] = s
}

// Name identifies this handler in the bus registry.
func (g *Gateway) Name() string { return "gateway.insurer_request" }

// Handle implements bus.Handler for insurer.request / insurer.request.retry.
func (g *Gateway) Handle(ctx context.Context, msg bus.Message, interim bus.InterimOutput) (bus.InterimOutput, error) {
	var event domain.InsurerRequestEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return interim, errs.Wrap(errs.ErrCodeValidationMalformed, errs.KindValidation, "decode insurer request event", err)
	}

	if delay := msg.Headers[bus.HeaderRetryAfterSeconds]; delay != "" {
		if seconds := parseSeconds(delay); seconds > 0 {
			select {
			case <-time.After(time.Duration(seconds) * time.Second):
			case <-ctx.Done():
				return interim, ctx.Err()
			}
		}
	}

	return interim, g.Process(ctx, event)
}

// Process resolves config, executes the outbound call through the
// insurer's circuit breaker, writes the audit document, and emits
// insurer.success.
func (g *Gateway) Process(ctx context.Context, event domain.InsurerRequestEvent) error {
	start := time.Now()

	if event.InsurerID == "" {
		return g.finish(ctx, event, start, Response{
			Status:    domain.OutcomeFailure,
			ErrorType: domain.ErrorTypeTechnical,
			ErrorCode: "INSURER_ID_MISSING",
			ErrorMsg:  "insurer_id could not be resolved from payload",
		}, InsurerConfig{})
	}

	insurerCfg, ok := g.resolver.Resolve(event.InsurerID)
	if !ok {
		return g.finish(ctx, event, start, Response{
			Status:    domain.OutcomeFailure,
			ErrorType: domain.ErrorTypeTechnical,
			ErrorCode: "GATEWAY_CONFIG_MISSING",
			ErrorMsg:  fmt.Sprintf("no gateway configuration for insurer %q", event.InsurerID),
		}, insurerCfg)
	}

	strategy, ok := g.strategies[insurerCfg.Protocol]
	if !ok {
		return g.finish(ctx, event, start, Response{
			Status:    domain.OutcomeFailure,
			ErrorType: domain.ErrorTypeTechnical,
			ErrorCode: "GATEWAY_CONFIG_MISSING",
			ErrorMsg:  fmt.Sprintf("no strategy registered for protocol %q", insurerCfg.Protocol),
		}, insurerCfg)
	}

	req := Request{
		EndorsementID:  event.EndorsementID,
		EmployerID:     event.EmployerID,
		TraceID:        event.TraceID,
		RetryCount:     event.RetryCount,
		RequestBody:    event.Payload,
		RequestHeaders: requestHeadersFor(event, insurerCfg),
		RequestURL:     insurerCfg.URL,
		TimeoutSeconds: g.cfg.RequestTimeoutSeconds,
		Config:         insurerCfg,
	}

	resp, err := g.execute(ctx, insurerCfg.InsurerID, strategy, req)
	if err != nil {
		resp = Response{
			Status:    domain.OutcomeFailure,
			ErrorType: domain.ErrorTypeTechnical,
			ErrorCode: "GW_4005",
			ErrorMsg:  err.Error(),
		}
	}

	metrics.InsurerRequestDuration.WithLabelValues(event.InsurerID).Observe(time.Since(start).Seconds())

	return g.finish(ctx, event, start, resp, insurerCfg)
}

// execute runs strategy.Execute behind a per-insurer circuit breaker so a
// persistently failing insurer stops consuming retry budget across the
// whole system.
func (g *Gateway) execute(ctx context.Context, insurerID string, strategy Strategy, req Request) (Response, error) {
	breaker := g.breakerFor(insurerID)

	result, err := breaker.Execute(func() (interface{}, error) {
		resp := strategy.Execute(ctx, req)
		if resp.ErrorType == domain.ErrorTypeTechnical {
			return resp, fmt.Errorf("%s: %s", resp.ErrorCode, resp.ErrorMsg)
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return Response{}, errs.GatewayCircuitOpen(insurerID)
		}
		if resp, ok := result.(Response); ok {
			return resp, nil
		}
		return Response{}, err
	}
	return result.(Response), nil
}

func (g *Gateway) breakerFor(insurerID string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[insurerID]; ok {
		return b
	}

	maxFailures := uint32(g.cfg.CircuitMaxFailures)
	if maxFailures == 0 {
		maxFailures = 5
	}
	openSeconds := g.cfg.CircuitOpenSeconds
	if openSeconds == 0 {
		openSeconds = 60
	}

	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: insurerID,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		Timeout: time.Duration(openSeconds) * time.Second,
	})
	g.breakers[insurerID] = b
	return b
}

// finish writes the sanitised audit document and publishes insurer.success.
func (g *Gateway) finish(ctx context.Context, event domain.InsurerRequestEvent, start time.Time, resp Response, insurerCfg InsurerConfig) error {
	auditStatus := domain.AuditSuccess
	var auditErr *domain.AuditError
	if resp.Status != domain.OutcomeSuccess {
		auditStatus = domain.AuditFailure
		auditErr = &domain.AuditError{Code: resp.ErrorCode, Message: resp.ErrorMsg}
	}

	sanitizedReqHeaders := redaction.Headers(requestHeadersFor(event, insurerCfg))
	sanitizedReqBody := sanitizeJSON(event.Payload)
	sanitizedRespHeaders := redaction.Headers(resp.Headers)
	sanitizedRespBody := sanitizeJSON(resp.Body)

	reqSnapshot, _ := json.Marshal(map[string]interface{}{
		"url":     insurerCfg.URL,
		"method":  insurerCfg.Method,
		"headers": sanitizedReqHeaders,
		"body":    sanitizedReqBody,
	})
	respSnapshot, _ := json.Marshal(map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     sanitizedRespHeaders,
		"body":        sanitizedRespBody,
	})

	doc := domain.AuditLogDocument{
		EndorsementID:   event.EndorsementID,
		TraceID:         event.TraceID,
		InsurerID:       event.InsurerID,
		InteractionType: "INSURER_REQUEST",
		Timestamp:       start.UTC(),
		LatencyMS:       time.Since(start).Milliseconds(),
		Status:          auditStatus,
		Request:         reqSnapshot,
		Response:        respSnapshot,
		Error:           auditErr,
	}
	if err := g.audit.Append(ctx, doc); err != nil {
		g.log.WithComponent("gateway").WithError(err).Error("audit append failed")
	}

	outcome := "success"
	if resp.Status != domain.OutcomeSuccess {
		outcome = "failure"
	}
	metrics.InsurerRequestsTotal.WithLabelValues(event.InsurerID, outcome).Inc()

	respBody := resp.Body
	if respBody == nil {
		respBody = json.RawMessage("null")
	}

	return g.publisher.Publish(ctx, domain.TopicInsurerSuccess, map[string]string{
		bus.HeaderTraceID:    event.TraceID,
		bus.HeaderEmployerID: event.EmployerID,
		bus.HeaderSource:     "gateway",
	}, domain.InsurerOutcomeEvent{
		EndorsementID: event.EndorsementID,
		EmployerID:    event.EmployerID,
		TraceID:       event.TraceID,
		Status:        resp.Status,
		ErrorType:     resp.ErrorType,
		ErrorCode:     resp.ErrorCode,
		ErrorMessage:  resp.ErrorMsg,
		RetryCount:    event.RetryCount,
		Response: domain.InsurerResponseSnapshot{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       respBody,
		},
	})
}

func requestHeadersFor(event domain.InsurerRequestEvent, insurerCfg InsurerConfig) map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"X-Idempotency-Key": idempotencyKey(event.EndorsementID, event.InsurerID, event.RetryCount),
		"X-Trace-Id":        event.TraceID,
		"X-Employer-Id":     event.EmployerID,
	}
}

func idempotencyKey(endorsementID, insurerID string, retryCount int) string {
	return fmt.Sprintf("%s-%s-%d", endorsementID, insurerID, retryCount)
}

func sanitizeJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	return redaction.Body(decoded)
}

func parseSeconds(s string) int {
	var n int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
