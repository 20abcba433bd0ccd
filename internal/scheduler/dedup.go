package scheduler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pmundhra/plum-ems/internal/errs"
	"github.com/pmundhra/plum-ems/internal/kv"
)

// DedupGuard rejects duplicate ingestions of the same logical request
// within a TTL window, per spec.md §5/§6's 24h fingerprint dedup.
type DedupGuard struct {
	store *kv.Store
	ttl   time.Duration
}

// NewDedupGuard builds a DedupGuard with the given TTL (spec default 24h).
func NewDedupGuard(store *kv.Store, ttl time.Duration) *DedupGuard {
	return &DedupGuard{store: store, ttl: ttl}
}

// Seen atomically records a (employer_id, payload, effective_date)
// fingerprint and reports whether it was already seen within the TTL
// window. effectiveDate is folded into the fingerprint because a
// same-payload request with a different no-gap date is a distinct
// endorsement, not a duplicate resubmission.
func (d *DedupGuard) Seen(ctx context.Context, employerID, effectiveDate string, payload json.RawMessage) (bool, error) {
	fingerprint, err := canonicalFingerprint(effectiveDate, payload)
	if err != nil {
		return false, err
	}
	key := fmt.Sprintf("dedup:%s:%s", employerID, fingerprint)

	setNow, err := d.store.SetIfAbsent(ctx, key, "1", d.ttl)
	if err != nil {
		return false, errs.Bus("dedup set-if-absent", err)
	}
	return !setNow, nil
}

// canonicalFingerprint hashes the canonical (sorted-key) JSON re-encoding
// of effectiveDate+payload so semantically identical submissions collide
// regardless of incoming key order.
func canonicalFingerprint(effectiveDate string, payload json.RawMessage) (string, error) {
	var decoded interface{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return "", errs.SchedulerDecodeFailed(err)
		}
	}

	canonical, err := json.Marshal(sortKeys(map[string]interface{}{
		"effective_date": effectiveDate,
		"payload":        decoded,
	}))
	if err != nil {
		return "", errs.SchedulerDecodeFailed(err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// orderedMap is a JSON object whose keys marshal in a fixed, sorted order
// regardless of Go's randomized map iteration.
type orderedMap []orderedPair

type orderedPair struct {
	Key   string
	Value interface{}
}

// MarshalJSON writes {"k1":v1,"k2":v2,...} in the pair order given, which
// sortKeys always populates in sorted-key order.
func (m orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// sortKeys re-marshals a decoded JSON value (map[string]interface{},
// []interface{}, or scalar) so every nested object's keys are sorted,
// making the resulting JSON encoding deterministic regardless of source
// key order.
func sortKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		ordered := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, orderedPair{Key: k, Value: sortKeys(val[k])})
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sortKeys(item)
		}
		return out
	default:
		return val
	}
}
