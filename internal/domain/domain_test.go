package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTypePriority(t *testing.T) {
	assert.Equal(t, 1, RequestDeletion.Priority())
	assert.Equal(t, 2, RequestModification.Priority())
	assert.Equal(t, 3, RequestAddition.Priority())
	assert.Equal(t, 4, RequestType("UNKNOWN").Priority())

	assert.Less(t, RequestDeletion.Priority(), RequestModification.Priority())
	assert.Less(t, RequestModification.Priority(), RequestAddition.Priority())
}

func TestRequestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusActive.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusReceived.IsTerminal())
	assert.False(t, StatusOnHold.IsTerminal())
	assert.False(t, StatusSent.IsTerminal())
}

func decodePayload(t *testing.T, raw string) RequestPayload {
	t.Helper()
	var p RequestPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestResolveAmountPrecedence(t *testing.T) {
	fallback := decimal.NewFromInt(0)

	t.Run("top-level amount wins", func(t *testing.T) {
		p := decodePayload(t, `{"amount":"150.00","payload":{"amount":"50.00"}}`)
		got := p.ResolveAmount(fallback)
		assert.True(t, decimal.NewFromFloat(150).Equal(got))
	})

	t.Run("falls back to payload.amount", func(t *testing.T) {
		p := decodePayload(t, `{"payload":{"amount":"75.25"}}`)
		got := p.ResolveAmount(fallback)
		assert.True(t, decimal.NewFromFloat(75.25).Equal(got))
	})

	t.Run("falls back to payload.coverage.amount", func(t *testing.T) {
		p := decodePayload(t, `{"payload":{"coverage":{"amount":"20.00"}}}`)
		got := p.ResolveAmount(fallback)
		assert.True(t, decimal.NewFromFloat(20).Equal(got))
	})

	t.Run("no amount anywhere falls back to pricing stub", func(t *testing.T) {
		p := decodePayload(t, `{"employee_id":"e1"}`)
		got := p.ResolveAmount(decimal.NewFromInt(42))
		assert.True(t, decimal.NewFromInt(42).Equal(got))
	})

	t.Run("negative amount clamps to zero", func(t *testing.T) {
		p := decodePayload(t, `{"amount":"-10.00"}`)
		got := p.ResolveAmount(fallback)
		assert.True(t, decimal.Zero.Equal(got))
	})
}

func TestResolveInsurerIDPrecedence(t *testing.T) {
	t.Run("payload.coverage.insurer_id wins", func(t *testing.T) {
		p := decodePayload(t, `{"insurer_id":"INS-C","coverage":{"insurer_id":"INS-B"},"payload":{"coverage":{"insurer_id":"INS-A"}}}`)
		assert.Equal(t, "INS-A", p.ResolveInsurerID())
	})

	t.Run("falls back to coverage.insurer_id", func(t *testing.T) {
		p := decodePayload(t, `{"insurer_id":"INS-C","coverage":{"insurer_id":"INS-B"}}`)
		assert.Equal(t, "INS-B", p.ResolveInsurerID())
	})

	t.Run("falls back to top-level insurer_id", func(t *testing.T) {
		p := decodePayload(t, `{"insurer_id":"INS-C"}`)
		assert.Equal(t, "INS-C", p.ResolveInsurerID())
	})

	t.Run("no insurer id anywhere resolves empty", func(t *testing.T) {
		p := decodePayload(t, `{}`)
		assert.Equal(t, "", p.ResolveInsurerID())
	})
}
