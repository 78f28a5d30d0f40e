// Package keys computes stable cache fingerprints for outbound requests.
package keys

import (
	"github.com/cespare/xxhash/v2"
)

// fingerprintHasher implements a key hash using Hash64 for computing cache
// keys in a stable way.
type fingerprintHasher struct {
	hasher *xxhash.Digest
}

// NewFingerprintHasher returns a hasher for string values.
func NewFingerprintHasher(xhash *xxhash.Digest) *fingerprintHasher {
	return &fingerprintHasher{hasher: xhash}
}

// WriteString writes the provided string to the hash.
func (c *fingerprintHasher) WriteString(value string) error {
	// WriteString always returns nil error
	_, _ = c.hasher.WriteString(value)

	return nil
}

// Key returns the Fingerprint that this key hash defines.
func (c fingerprintHasher) Key() Fingerprint {
	return Fingerprint{stableSum: c.hasher.Sum64()}
}

// Fingerprint is a deterministic derived key for one request.
type Fingerprint struct {
	stableSum uint64
}

// ToUInt64 returns the fingerprint as a stable uint64 value.
func (f Fingerprint) ToUInt64() uint64 {
	return f.stableSum
}
