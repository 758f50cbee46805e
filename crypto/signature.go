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

package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btc_ecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/ReisenCW/tongji-blockchain/common"
)

// SignDigest signs a 32 byte digest with the given private key and returns
// the DER encoded signature.
func SignDigest(digest []byte, prv *ecdsa.PrivateKey) ([]byte, error) {
	if len(digest) != common.HashLength {
		return nil, fmt.Errorf("digest is required to be exactly %d bytes (%d)", common.HashLength, len(digest))
	}
	if prv.Curve != S256() {
		return nil, fmt.Errorf("private key curve is not secp256k1")
	}
	var priv btcec.PrivateKey
	if overflow := priv.Key.SetByteSlice(prv.D.Bytes()); overflow || priv.Key.IsZero() {
		return nil, errInvalidPrivkey
	}
	defer priv.Zero()
	sig := btc_ecdsa.Sign(&priv, digest)
	return sig.Serialize(), nil
}

// VerifyDigestSignature checks that the given public key created the DER
// encoded signature over the digest.
func VerifyDigestSignature(pub *ecdsa.PublicKey, digest, signature []byte) bool {
	if len(digest) != common.HashLength {
		return false
	}
	sig, err := btc_ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	key, err := btcecPubkey(pub)
	if err != nil {
		return false
	}
	return sig.Verify(digest, key)
}

func btcecPubkey(pub *ecdsa.PublicKey) (*btcec.PublicKey, error) {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil, errInvalidPubkey
	}
	var x, y btcec.FieldVal
	if x.SetByteSlice(pub.X.Bytes()) {
		return nil, errInvalidPubkey
	}
	if y.SetByteSlice(pub.Y.Bytes()) {
		return nil, errInvalidPubkey
	}
	return btcec.NewPublicKey(&x, &y), nil
}

// S256 returns an instance of the secp256k1 curve.
func S256() elliptic.Curve {
	return btcec.S256()
}
