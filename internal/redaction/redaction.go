// Package redaction sanitises insurer request/response data before it is
// written to the audit log: auth headers and sensitive body fields never
// reach audit_log_documents in the clear.
package redaction

import "strings"

const masked = "***"

var headerSecretSubstrings = []string{"authorization", "token", "secret"}

// sensitiveBodyKeys are the exact (case-insensitive) body field names that
// get masked, distinct from the header credential check above.
var sensitiveBodyKeys = map[string]struct{}{
	"ssn": {},
	"dob": {},
}

func isSecretHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, substr := range headerSecretSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

// Headers returns a copy of hdrs with any header whose name contains
// "authorization", "token" or "secret" replaced by a fixed marker.
func Headers(hdrs map[string]string) map[string]string {
	if hdrs == nil {
		return nil
	}
	out := make(map[string]string, len(hdrs))
	for k, v := range hdrs {
		if isSecretHeader(k) {
			out[k] = masked
			continue
		}
		out[k] = v
	}
	return out
}

// Body walks a decoded JSON value (map[string]interface{}, []interface{},
// or scalar) and replaces any ssn/dob key's value with a fixed marker,
// recursively, returning a sanitised copy safe to persist in the audit log.
func Body(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, fv := range val {
			if _, sensitive := sensitiveBodyKeys[strings.ToLower(k)]; sensitive {
				out[k] = masked
				continue
			}
			out[k] = Body(fv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, fv := range val {
			out[i] = Body(fv)
		}
		return out
	default:
		return v
	}
}
