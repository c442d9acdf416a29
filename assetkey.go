package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetType is the ledger's asset class discriminant.
type AssetType uint8

const (
	NativeAsset  AssetType = 0 // chain-native currency
	Erc20Asset   AssetType = 1
	Erc1155Asset AssetType = 2
)

// NativeDecimals is the native currency precision of the reference
// deployment.
const NativeDecimals uint8 = 18

func (t AssetType) Valid() bool {
	return t <= Erc1155Asset
}

// AssetKey identifies one fungible balance line in the ledger. It is a
// lookup key, not an entity: construct it on demand and compare keys only
// through their canonical string form.
type AssetKey struct {
	Type        AssetType
	ContractRef common.Address // all-zero for the native asset
	SubID       uint64         // only meaningful for multi-token classes
	Decimals    uint8
}

// Key returns the canonical string form,
// "{type}:{lowercased address}:{subId}:{decimals}". Two assets are the
// same asset iff their canonical strings are equal; callers must never
// compare raw contract addresses instead.
func (k AssetKey) Key() string {
	return fmt.Sprintf("%d:%s:%d:%d",
		k.Type, strings.ToLower(k.ContractRef.Hex()), k.SubID, k.Decimals)
}

func (k AssetKey) Equal(other AssetKey) bool {
	return k.Key() == other.Key()
}

func (k AssetKey) String() string {
	return k.Key()
}

// NativeAssetKey is the balance line of the chain-native currency.
func NativeAssetKey() AssetKey {
	return AssetKey{Type: NativeAsset, Decimals: NativeDecimals}
}

// Erc20AssetKey builds the key of an ERC-20 balance line.
func Erc20AssetKey(contract common.Address, decimals uint8) AssetKey {
	return AssetKey{Type: Erc20Asset, ContractRef: contract, Decimals: decimals}
}

// Erc1155AssetKey builds the key of one ERC-1155 sub-token balance line.
func Erc1155AssetKey(contract common.Address, subID uint64, decimals uint8) AssetKey {
	return AssetKey{Type: Erc1155Asset, ContractRef: contract, SubID: subID, Decimals: decimals}
}

const ErrInvalidAssetKey modelError = "invalid canonical asset key"

// ParseAssetKey parses a canonical asset key string back into its parts.
func ParseAssetKey(s string) (AssetKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return AssetKey{}, ErrInvalidAssetKey
	}

	typ, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || !AssetType(typ).Valid() {
		return AssetKey{}, ErrInvalidAssetKey
	}
	if !common.IsHexAddress(parts[1]) || parts[1] != strings.ToLower(parts[1]) {
		return AssetKey{}, ErrInvalidAssetKey
	}
	subID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return AssetKey{}, ErrInvalidAssetKey
	}
	decimals, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return AssetKey{}, ErrInvalidAssetKey
	}

	return AssetKey{
		Type:        AssetType(typ),
		ContractRef: common.HexToAddress(parts[1]),
		SubID:       subID,
		Decimals:    uint8(decimals),
	}, nil
}
