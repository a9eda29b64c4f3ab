// Package account derives and parses the addresses that identify
// callers, tokens and module accounts on the ledger.
package account

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gregorybednov/bountychain/fault"
)

// AddressLength is the number of bytes in an address.
const AddressLength = 20

// Address is the lower case hex form of a 20 byte account identifier.
// The empty Address means "no account".
type Address string

// FromPubKey derives the address owned by an ed25519 key.
func FromPubKey(pub ed25519.PublicKey) Address {
	sum := sha256.Sum256(pub)
	return Address(hex.EncodeToString(sum[:AddressLength]))
}

// FromName derives a module account that has no private key, such as the
// escrow custody account or a native token.
func FromName(name string) Address {
	sum := sha256.Sum256([]byte("module:" + name))
	return Address(hex.EncodeToString(sum[:AddressLength]))
}

// Parse validates s and returns it in canonical form. An optional 0x
// prefix is accepted.
func Parse(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return "", fault.ErrZeroAddress
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != AddressLength {
		return "", fault.ErrInvalidAddress
	}
	return Address(s), nil
}

// IsZero reports whether a is unset.
func (a Address) IsZero() bool { return a == "" }

func (a Address) String() string { return string(a) }
