// This file defines the read-only view into the ledger contract. The
// ledger owns all durable balance state; this package only consults it.
// Every RPC result crosses into settlement arithmetic through a typed
// struct, never as an untyped blob.

package model

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DexTokenInfo is the ledger's registration record for an asset.
type DexTokenInfo struct {
	IsValid   bool
	TokenType AssetType
	TokenName string
	TokenID   uint64
	Decimals  uint8
}

// DexDepositInfo is the ledger's per-account deposit record for one asset.
// This layer reads it to check sufficiency and never mutates it.
type DexDepositInfo struct {
	Amount            *big.Int
	LastDepositBlock  uint64
	LastWithdrawBlock uint64
}

// LedgerReader is the consumed slice of the ledger contract interface.
// Implementations wrap whatever RPC the node exposes.
type LedgerReader interface {
	GetDexBalanceOf(ctx context.Context, account common.Address, tokenKey string) (*big.Int, error)
	GetDexTokenInfo(ctx context.Context, tokenKey string) (DexTokenInfo, error)
	GetDexDepositInfo(ctx context.Context, account common.Address, tokenKey string) (DexDepositInfo, error)
}

const ErrUnknownDexToken modelError = "token key is not registered in the ledger"

// TokenLookup caches ledger token records for one logical session. It
// replaces any process-wide cache: construct one per request or per test,
// pass it to whichever component needs registry lookups, and drop it.
// Not safe for concurrent use.
type TokenLookup struct {
	reader LedgerReader
	infos  map[string]DexTokenInfo
}

func NewTokenLookup(reader LedgerReader) *TokenLookup {
	return &TokenLookup{
		reader: reader,
		infos:  make(map[string]DexTokenInfo),
	}
}

// Info returns the registration record for tokenKey, consulting the
// ledger at most once per key per session.
func (l *TokenLookup) Info(ctx context.Context, tokenKey string) (DexTokenInfo, error) {
	if info, ok := l.infos[tokenKey]; ok {
		return info, nil
	}
	info, err := l.reader.GetDexTokenInfo(ctx, tokenKey)
	if err != nil {
		return DexTokenInfo{}, err
	}
	l.infos[tokenKey] = info
	return info, nil
}

// ValidKey reports whether tokenKey names a registered, active asset.
func (l *TokenLookup) ValidKey(ctx context.Context, tokenKey string) (bool, error) {
	info, err := l.Info(ctx, tokenKey)
	if err != nil {
		return false, err
	}
	return info.IsValid, nil
}

// Decimals returns the registered precision of tokenKey, failing on
// unregistered assets so a bogus key can never silently scale an amount.
func (l *TokenLookup) Decimals(ctx context.Context, tokenKey string) (uint8, error) {
	info, err := l.Info(ctx, tokenKey)
	if err != nil {
		return 0, err
	}
	if !info.IsValid {
		return 0, ErrUnknownDexToken
	}
	return info.Decimals, nil
}
