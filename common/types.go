// Copyright 2025 The tongji-blockchain Authors
// This file is part of the tongji-blockchain library.
//
// The tongji-blockchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tongji-blockchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tongji-blockchain library. If not, see <http://www.gnu.org/licenses/>.

// Package common contains the fixed size value types and hex helpers shared
// by the chain, state and contract packages.
package common

import (
	"encoding/hex"
	"fmt"
)

const (
	// HashLength is the length of a SHA-256 digest in bytes.
	HashLength = 32
	// AddressLength is the length of an account address in bytes.
	AddressLength = 20
)

// Hash represents the 32 byte SHA-256 digest of canonical transaction,
// header or event content.
type Hash [HashLength]byte

// BytesToHash sets b to hash. If b is larger than HashLength, b is cropped
// from the left.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash parses s as a hash, with or without a 0x prefix. Malformed input
// yields a truncated value; use ParseHash where errors matter.
func HexToHash(s string) Hash { return BytesToHash(FromHex(s)) }

// ParseHash parses exactly 64 hex characters, 0x prefix optional.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(strip0x(s))
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash %q: %v", s, err)
	}
	if len(b) != HashLength {
		return Hash{}, fmt.Errorf("invalid hash length %d, want %d", len(b), HashLength)
	}
	return BytesToHash(b), nil
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hash as 64 lowercase hex characters without a prefix,
// the form used on the wire and in stored blocks.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is the all zero value. The genesis block
// carries a zero previous hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// SetBytes sets the hash to the value of b. If b is larger than len(h), b is
// cropped from the left.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(input []byte) error {
	parsed, err := ParseHash(string(input))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Address represents the 20 byte account address of an agent or the
// treasury, the leading bytes of the SHA-256 digest of the public key.
type Address [AddressLength]byte

// BytesToAddress sets b to address. If b is larger than AddressLength, b is
// cropped from the left.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress parses s as an address, with or without a 0x prefix.
// Malformed input yields a truncated value; use ParseAddress where errors
// matter.
func HexToAddress(s string) Address { return BytesToAddress(FromHex(s)) }

// ParseAddress parses exactly 40 hex characters, 0x prefix optional.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(strip0x(s))
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %v", s, err)
	}
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d, want %d", len(b), AddressLength)
	}
	return BytesToAddress(b), nil
}

// Bytes returns the byte representation of the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the address as 40 lowercase hex characters without a prefix.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the all zero value.
func (a Address) IsZero() bool { return a == Address{} }

// SetBytes sets the address to the value of b. If b is larger than len(a),
// b is cropped from the left.
func (a *Address) SetBytes(b []byte) {
	if len(b) > len(a) {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(input []byte) error {
	parsed, err := ParseAddress(string(input))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
