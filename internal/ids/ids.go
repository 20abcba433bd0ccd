// Package ids generates sortable-by-creation entity identifiers.
package ids

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/mr-tron/base58"
)

const (
	timestampWidth = 13
	randomDigits   = 4
)

// New generates a 17-character identifier: a base58-encoded nanosecond
// timestamp padded/truncated to 13 characters, followed by 4 random
// digits. Lexicographic order on the result tracks creation order because
// the timestamp occupies the leading bytes.
func New() string {
	return newAt(time.Now())
}

func newAt(t time.Time) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixNano()))

	encoded := base58.Encode(buf[:])
	if len(encoded) < timestampWidth {
		encoded += pad(timestampWidth - len(encoded))
	} else {
		encoded = encoded[:timestampWidth]
	}

	return encoded + randomSuffix()
}

func pad(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func randomSuffix() string {
	b := make([]byte, randomDigits)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand failure is effectively unrecoverable; fall back to a
			// fixed digit rather than panic mid-pipeline.
			b[i] = '0'
			continue
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b)
}
