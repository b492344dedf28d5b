package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashLength is the number of hex characters in a chain hash (SHA3-512 digest).
const HashLength = 128

// Hash is a 512-bit digest rendered as 128 lowercase hex characters. It links
// balance-mutating events into a tamper-evident chain: each event stores the
// digest of its own payload computed over the previous event's hash.
type Hash struct {
	value string
}

// NewHash validates and wraps a 128-character lowercase hex string.
func NewHash(value string) (Hash, error) {
	if len(value) != HashLength {
		return Hash{}, WrapError(ErrCodeInvalid, fmt.Sprintf("hash must be %d characters, got %d", HashLength, len(value)), nil)
	}
	if strings.ToLower(value) != value {
		return Hash{}, NewError(ErrCodeInvalid, "hash must be lowercase hex")
	}
	if _, err := hex.DecodeString(value); err != nil {
		return Hash{}, WrapError(ErrCodeInvalid, "hash is not valid hex", err)
	}
	return Hash{value: value}, nil
}

// ComputeChainHash derives the chain hash for a balance-mutating event.
// The digest covers the account id, asset code, previous link and the signed
// delta in minor units, joined with "|". Changing this derivation breaks every
// existing chain, so it is fixed.
func ComputeChainHash(accountID, assetCode string, previous Hash, delta int64) Hash {
	input := accountID + "|" + assetCode + "|" + previous.value + "|" + strconv.FormatInt(delta, 10)
	sum := sha3.Sum512([]byte(input))
	return Hash{value: hex.EncodeToString(sum[:])}
}

// String returns the hex representation.
func (h Hash) String() string {
	return h.value
}

// IsZero reports whether the hash is the empty chain head.
func (h Hash) IsZero() bool {
	return h.value == ""
}

// Equal compares two hashes by value.
func (h Hash) Equal(other Hash) bool {
	return h.value == other.value
}

// MarshalJSON renders the hash as a JSON string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.value)
}

// UnmarshalJSON parses and validates the hash. An empty string decodes to the
// zero hash so chain heads round-trip.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*h = Hash{}
		return nil
	}
	parsed, err := NewHash(raw)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
