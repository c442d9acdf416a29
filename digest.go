package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashFunc reduces an encoded record to a 32-byte digest. It must be the
// same function the deployed verifier uses, keccak256 in the reference
// deployment.
type HashFunc func(data []byte) common.Hash

// Keccak256 is the reference hash function.
func Keccak256(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

// DigestScheme produces the signable digests for orders and user
// operations. The hash function is a parameter of the scheme so a
// different verifier can be targeted without touching callers.
//
// Two digest forms exist:
//
//   - record digest: hash over the record's canonical encoding, signature
//     field excluded;
//   - domain digest: hash over [record digest, verifier address, chain id],
//     binding the record to one deployed verifier on one network.
//
// Signers always sign the domain digest, never the record digest, so a
// signature cannot be replayed against another deployment.
type DigestScheme struct {
	Hash HashFunc
}

// NewDigestScheme returns the scheme used by the reference deployment.
func NewDigestScheme() DigestScheme {
	return DigestScheme{Hash: Keccak256}
}

func (s DigestScheme) hash(data []byte) common.Hash {
	if s.Hash == nil {
		return Keccak256(data)
	}
	return s.Hash(data)
}

// RecordDigest hashes a record's canonical encoding.
func (s DigestScheme) RecordDigest(encoded []byte) common.Hash {
	return s.hash(encoded)
}

// DomainDigest binds a record digest to the verifier contract and chain id.
func (s DigestScheme) DomainDigest(record common.Hash, verifier common.Address, chainID *big.Int) (common.Hash, error) {
	enc, err := EncodeFields(
		Bytes32(record),
		Address(verifier),
		Uint256(chainID),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return s.hash(enc), nil
}
