// Package pricing is the stub amount-lookup the Ledger Engine falls back
// to when a request payload carries no explicit amount. Real plan pricing
// is out of scope for the core pipeline.
package pricing

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/pmundhra/plum-ems/internal/domain"
)

// Resolver maps (request_type, context) to a Decimal amount.
type Resolver interface {
	Resolve(ctx context.Context, requestType domain.RequestType, payload json.RawMessage) (decimal.Decimal, error)
}

// ZeroResolver is the default stub: every request prices at zero unless its
// payload carries an explicit amount, which the caller resolves before
// falling back here.
type ZeroResolver struct{}

// Resolve always returns zero.
func (ZeroResolver) Resolve(context.Context, domain.RequestType, json.RawMessage) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
