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

// Package crypto implements the hashing and signature scheme of the ledger:
// SHA-256 content digests and secp256k1 ECDSA with DER encoded signatures.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ReisenCW/tongji-blockchain/common"
)

// PubkeyLength is the length of the serialized public key material, the
// 64 byte X||Y coordinate pair without a format marker.
const PubkeyLength = 64

var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

var (
	errInvalidPubkey  = errors.New("invalid secp256k1 public key")
	errInvalidPrivkey = errors.New("invalid secp256k1 private key")
)

// Sha256 calculates and returns the SHA-256 hash of the input data.
func Sha256(data ...[]byte) []byte {
	d := sha256.New()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Sha256Hash calculates and returns the SHA-256 hash of the input data,
// converting it to an internal Hash data structure.
func Sha256Hash(data ...[]byte) (h common.Hash) {
	d := sha256.New()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	return h
}

// ToECDSA creates a private key with the given D value.
func ToECDSA(d []byte) (*ecdsa.PrivateKey, error) {
	return toECDSA(d, true)
}

// toECDSA creates a private key with the given D value. The strict parameter
// controls whether the key's length should be enforced at the curve size or
// it can also accept legacy encodings (0 prefixes).
func toECDSA(d []byte, strict bool) (*ecdsa.PrivateKey, error) {
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = S256()
	if strict && 8*len(d) != priv.Params().BitSize {
		return nil, fmt.Errorf("invalid length, need %d bits", priv.Params().BitSize)
	}
	priv.D = new(big.Int).SetBytes(d)

	// The priv.D must < N
	if priv.D.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("invalid private key, >=N")
	}
	// The priv.D must not be zero or negative.
	if priv.D.Sign() <= 0 {
		return nil, fmt.Errorf("invalid private key, zero or negative")
	}

	priv.PublicKey.X, priv.PublicKey.Y = priv.PublicKey.Curve.ScalarBaseMult(d)
	if priv.PublicKey.X == nil {
		return nil, errInvalidPrivkey
	}
	return priv, nil
}

// FromECDSA exports a private key into a binary dump.
func FromECDSA(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return priv.D.FillBytes(make([]byte, 32))
}

// UnmarshalPubkey converts b, the 64 byte X||Y coordinate form, to a
// secp256k1 public key.
func UnmarshalPubkey(b []byte) (*ecdsa.PublicKey, error) {
	if len(b) != PubkeyLength {
		return nil, errInvalidPubkey
	}
	raw := make([]byte, 1+PubkeyLength)
	raw[0] = 4 // uncompressed point marker
	copy(raw[1:], b)
	x, y := elliptic.Unmarshal(S256(), raw)
	if x == nil {
		return nil, errInvalidPubkey
	}
	return &ecdsa.PublicKey{Curve: S256(), X: x, Y: y}, nil
}

// UnmarshalPubkeyHex converts the hex form stored in the public key registry
// back to a secp256k1 public key.
func UnmarshalPubkeyHex(s string) (*ecdsa.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errInvalidPubkey
	}
	return UnmarshalPubkey(b)
}

// FromECDSAPub exports a public key into the 64 byte X||Y coordinate form.
// This is the representation hashed for address derivation and kept in the
// public key registry.
func FromECDSAPub(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	raw := elliptic.Marshal(S256(), pub.X, pub.Y)
	return raw[1:]
}

// PubkeyHex returns the registry form of a public key.
func PubkeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(FromECDSAPub(pub))
}

// HexToECDSA parses a secp256k1 private key.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	b, err := hex.DecodeString(hexkey)
	if err != nil {
		return nil, errors.New("invalid hex string")
	}
	return ToECDSA(b)
}

// LoadECDSA loads a secp256k1 private key from the given file, expecting the
// hex encoded scalar.
func LoadECDSA(file string) (*ecdsa.PrivateKey, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return HexToECDSA(strings.TrimSpace(string(buf)))
}

// SaveECDSA saves a secp256k1 private key to the given file with
// restrictive permissions. The key data is saved hex-encoded.
func SaveECDSA(file string, key *ecdsa.PrivateKey) error {
	k := hex.EncodeToString(FromECDSA(key))
	return os.WriteFile(file, []byte(k), 0600)
}

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(S256(), rand.Reader)
}

// PubkeyToAddress derives the account address from a public key: the first
// 20 bytes of the SHA-256 digest of the X||Y coordinate form.
func PubkeyToAddress(p ecdsa.PublicKey) common.Address {
	return common.BytesToAddress(Sha256(FromECDSAPub(&p))[:common.AddressLength])
}
