package scheduler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalFingerprintIgnoresKeyOrder(t *testing.T) {
	a, err := canonicalFingerprint("2026-08-01", json.RawMessage(`{"employee_id":"e1","amount":"100.00"}`))
	require.NoError(t, err)

	b, err := canonicalFingerprint("2026-08-01", json.RawMessage(`{"amount":"100.00","employee_id":"e1"}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCanonicalFingerprintDistinguishesEffectiveDate(t *testing.T) {
	payload := json.RawMessage(`{"employee_id":"e1","amount":"100.00"}`)

	a, err := canonicalFingerprint("2026-08-01", payload)
	require.NoError(t, err)

	b, err := canonicalFingerprint("2026-09-01", payload)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCanonicalFingerprintDistinguishesDifferentPayloads(t *testing.T) {
	a, err := canonicalFingerprint("2026-08-01", json.RawMessage(`{"employee_id":"e1"}`))
	require.NoError(t, err)

	b, err := canonicalFingerprint("2026-08-01", json.RawMessage(`{"employee_id":"e2"}`))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
