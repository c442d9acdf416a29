package model

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces signatures the ledger contract can verify. Any scheme
// matching the deployed verifier satisfies it; the reference deployment
// verifies secp256k1 signatures over the Ethereum personal-message hash of
// the domain digest.
type Signer interface {
	Address() common.Address
	Sign(digest common.Hash) ([]byte, error)
}

// signatureLength is the r||s||v wire size the verifier expects.
const signatureLength = 65

const (
	ErrInvalidSignatureLen modelError = "signature is not 65 bytes"
	ErrBadSignature        modelError = "signature does not recover to a public key"
)

// PrivateKeySigner signs with an in-memory secp256k1 key. Key storage and
// custody are out of scope for this package.
type PrivateKeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewPrivateKeySigner(key *ecdsa.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *PrivateKeySigner) Address() common.Address {
	return s.addr
}

// Sign signs the Ethereum personal-message hash of digest and returns the
// 65-byte r||s||v signature with v in {27, 28}, matching what
// `personal_sign` wallets and the on-chain verifier produce and expect.
func (s *PrivateKeySigner) Sign(digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest.Bytes()), s.key)
	if err != nil {
		return nil, err
	}
	sig[signatureLength-1] += 27
	return sig, nil
}

// RecoverSigner returns the address that signed digest as a personal
// message.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != signatureLength {
		return common.Address{}, ErrInvalidSignatureLen
	}

	sig := make([]byte, signatureLength)
	copy(sig, signature)
	if sig[signatureLength-1] >= 27 {
		sig[signatureLength-1] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(digest.Bytes()), sig)
	if err != nil {
		return common.Address{}, ErrBadSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// CheckSignature reports whether signature over digest recovers to
// expected. Signature bytes are never compared directly: ECDSA signatures
// are randomized, so recovery is the only meaningful equality test.
func CheckSignature(digest common.Hash, signature []byte, expected common.Address) bool {
	addr, err := RecoverSigner(digest, signature)
	if err != nil {
		return false
	}
	return addr == expected
}
