package canon

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the lowercase-hex SHA-256 digest of the canonical encoding of
// v. Deep-equal values hash identically regardless of object key order, which
// is what lets the run store deduplicate logically identical calculations and
// detect later tampering.
func Hash(v Value) string {
	sum := sha256.Sum256(Encode(v))
	return hex.EncodeToString(sum[:])
}

// HashAny converts v with FromAny and hashes it. It fails on values that
// cannot be canonically encoded (cycles, unsupported types).
func HashAny(v any) (string, error) {
	val, err := FromAny(v)
	if err != nil {
		return "", err
	}
	return Hash(val), nil
}
