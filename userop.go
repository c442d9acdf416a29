// This file defines the UserOperation struct and the packing and hashing
// rules that make it signable.
//
// Two packed forms exist. The signature form hashes each variable-length
// field (InitCode, CallData, PaymasterAndData) on its own before folding it
// into the outer encoding, so the signed digest is fixed-size no matter how
// large the call payload is. The gas form keeps the variable-length fields
// raw and exists only to price calldata; it is never signed.

package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"
)

type modelError string

func (e modelError) Error() string {
	return string(e)
}

const (
	ErrNoCallData      modelError = "no CallData found"
	ErrInvalidCallData modelError = "invalid hex-encoded CallData"
)

// Gas defaults of the reference deployment. Verification gas covers
// signature and nonce checks in the entry point; pre-verification gas
// covers the calldata of an empty operation.
var (
	DefaultVerificationGasLimit = big.NewInt(150_000)
	DefaultPreVerificationGas   = big.NewInt(21_000)
	DefaultMaxPriorityFeePerGas = big.NewInt(1_000_000_000) // 1 gwei
)

// UserOperation is a sequenced, batched execution request issued on behalf
// of an account-abstraction-controlled account. The signature covers every
// other field through the domain digest. Accounts always pre-exist in this
// system, so InitCode stays empty, and there is no fee sponsorship, so
// PaymasterAndData stays empty; both still take part in the digest.
type UserOperation struct {
	Sender               common.Address `json:"sender"               mapstructure:"sender"               validate:"required"`
	Nonce                *big.Int       `json:"nonce"                mapstructure:"nonce"                validate:"required"`
	InitCode             []byte         `json:"initCode"             mapstructure:"initCode"`
	CallData             []byte         `json:"callData"             mapstructure:"callData"             validate:"required"`
	CallGasLimit         *big.Int       `json:"callGasLimit"         mapstructure:"callGasLimit"         validate:"required"`
	VerificationGasLimit *big.Int       `json:"verificationGasLimit" mapstructure:"verificationGasLimit" validate:"required"`
	PreVerificationGas   *big.Int       `json:"preVerificationGas"   mapstructure:"preVerificationGas"   validate:"required"`
	MaxFeePerGas         *big.Int       `json:"maxFeePerGas"         mapstructure:"maxFeePerGas"         validate:"required"`
	MaxPriorityFeePerGas *big.Int       `json:"maxPriorityFeePerGas" mapstructure:"maxPriorityFeePerGas" validate:"required"`
	PaymasterAndData     []byte         `json:"paymasterAndData"     mapstructure:"paymasterAndData"`
	Signature            []byte         `json:"signature"            mapstructure:"signature"`
}

// PackForSignature returns the canonical encoding whose digest the sender
// signs. Variable-length fields enter as their individual hashes.
func (op *UserOperation) PackForSignature(scheme DigestScheme) ([]byte, error) {
	return EncodeFields(
		Address(op.Sender),
		Uint256(op.Nonce),
		Bytes32(scheme.hash(op.InitCode)),
		Bytes32(scheme.hash(op.CallData)),
		Uint256(op.CallGasLimit),
		Uint256(op.VerificationGasLimit),
		Uint256(op.PreVerificationGas),
		Uint256(op.MaxFeePerGas),
		Uint256(op.MaxPriorityFeePerGas),
		Bytes32(scheme.hash(op.PaymasterAndData)),
	)
}

// PackForGas returns the raw encoding including the variable-length fields
// and the signature, used only to price calldata. Not signable.
func (op *UserOperation) PackForGas() ([]byte, error) {
	fixed, err := EncodeFields(
		Address(op.Sender),
		Uint256(op.Nonce),
		Uint256(op.CallGasLimit),
		Uint256(op.VerificationGasLimit),
		Uint256(op.PreVerificationGas),
		Uint256(op.MaxFeePerGas),
		Uint256(op.MaxPriorityFeePerGas),
	)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(fixed)+len(op.InitCode)+len(op.CallData)+len(op.PaymasterAndData)+len(op.Signature))
	out = append(out, fixed...)
	out = append(out, op.InitCode...)
	out = append(out, op.CallData...)
	out = append(out, op.PaymasterAndData...)
	out = append(out, op.Signature...)
	return out, nil
}

// Hash returns the domain digest that binds the operation to one entry
// point deployment on one chain. This is the value the sender signs.
func (op *UserOperation) Hash(scheme DigestScheme, entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	packed, err := op.PackForSignature(scheme)
	if err != nil {
		return common.Hash{}, err
	}
	return scheme.DomainDigest(scheme.RecordDigest(packed), entryPoint, chainID)
}

// VerifySignature recomputes the operation's domain digest and reports
// whether the signature recovers to expected.
func (op *UserOperation) VerifySignature(scheme DigestScheme, entryPoint common.Address, chainID *big.Int, expected common.Address) bool {
	digest, err := op.Hash(scheme, entryPoint, chainID)
	if err != nil {
		return false
	}
	return CheckSignature(digest, op.Signature, expected)
}

// CalldataCost prices data with the calldata gas rule: 4 per zero byte, 16
// per nonzero byte.
func CalldataCost(data []byte) uint64 {
	var cost uint64
	for _, b := range data {
		if b == 0 {
			cost += 4
		} else {
			cost += 16
		}
	}
	return cost
}

// fillDefaults populates the gas fields a caller left nil. An explicit
// zero PreVerificationGas is replaced by the calldata cost of the packed
// operation.
func (op *UserOperation) fillDefaults() error {
	if op.InitCode == nil {
		op.InitCode = []byte{}
	}
	if op.PaymasterAndData == nil {
		op.PaymasterAndData = []byte{}
	}
	if op.VerificationGasLimit == nil {
		op.VerificationGasLimit = new(big.Int).Set(DefaultVerificationGasLimit)
	}
	if op.MaxPriorityFeePerGas == nil {
		op.MaxPriorityFeePerGas = new(big.Int).Set(DefaultMaxPriorityFeePerGas)
	}
	if op.PreVerificationGas == nil {
		op.PreVerificationGas = new(big.Int).Set(DefaultPreVerificationGas)
	} else if op.PreVerificationGas.Sign() == 0 {
		packed, err := op.PackForGas()
		if err != nil {
			return err
		}
		op.PreVerificationGas = new(big.Int).SetUint64(CalldataCost(packed))
	}
	return nil
}

// UnmarshalJSON decodes the bundler wire form: hex quantities for the
// numeric fields, hex data for the byte fields.
func (op *UserOperation) UnmarshalJSON(data []byte) error {
	aux := struct {
		Sender               string `json:"sender"`
		Nonce                string `json:"nonce"`
		InitCode             string `json:"initCode"`
		CallData             string `json:"callData"`
		CallGasLimit         string `json:"callGasLimit"`
		VerificationGasLimit string `json:"verificationGasLimit"`
		PreVerificationGas   string `json:"preVerificationGas"`
		MaxFeePerGas         string `json:"maxFeePerGas"`
		MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
		PaymasterAndData     string `json:"paymasterAndData"`
		Signature            string `json:"signature"`
	}{}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	op.Sender = common.HexToAddress(aux.Sender)

	op.Nonce, err = hexutil.DecodeBig(aux.Nonce)
	if err != nil {
		return err
	}

	op.InitCode, err = hexutil.Decode(aux.InitCode)
	if err != nil {
		return err
	}

	op.CallData, err = hexutil.Decode(aux.CallData)
	if err != nil {
		return ErrInvalidCallData
	}

	op.CallGasLimit, err = hexutil.DecodeBig(aux.CallGasLimit)
	if err != nil {
		return err
	}

	op.VerificationGasLimit, err = hexutil.DecodeBig(aux.VerificationGasLimit)
	if err != nil {
		return err
	}

	op.PreVerificationGas, err = hexutil.DecodeBig(aux.PreVerificationGas)
	if err != nil {
		return err
	}

	op.MaxFeePerGas, err = hexutil.DecodeBig(aux.MaxFeePerGas)
	if err != nil {
		return err
	}

	op.MaxPriorityFeePerGas, err = hexutil.DecodeBig(aux.MaxPriorityFeePerGas)
	if err != nil {
		return err
	}

	op.PaymasterAndData, err = hexutil.Decode(aux.PaymasterAndData)
	if err != nil {
		return err
	}

	op.Signature, err = hexutil.Decode(aux.Signature)
	if err != nil {
		return err
	}

	return nil
}

// MarshalJSON is the reverse of UnmarshalJSON.
func (op *UserOperation) MarshalJSON() ([]byte, error) {
	aux := struct {
		Sender               string `json:"sender"`
		Nonce                string `json:"nonce"`
		InitCode             string `json:"initCode"`
		CallData             string `json:"callData"`
		CallGasLimit         string `json:"callGasLimit"`
		VerificationGasLimit string `json:"verificationGasLimit"`
		PreVerificationGas   string `json:"preVerificationGas"`
		MaxFeePerGas         string `json:"maxFeePerGas"`
		MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
		PaymasterAndData     string `json:"paymasterAndData"`
		Signature            string `json:"signature"`
	}{
		Sender:               op.Sender.Hex(),
		Nonce:                hexutil.EncodeBig(bigOrZero(op.Nonce)),
		InitCode:             hexutil.Encode(op.InitCode),
		CallData:             hexutil.Encode(op.CallData),
		CallGasLimit:         hexutil.EncodeBig(bigOrZero(op.CallGasLimit)),
		VerificationGasLimit: hexutil.EncodeBig(bigOrZero(op.VerificationGasLimit)),
		PreVerificationGas:   hexutil.EncodeBig(bigOrZero(op.PreVerificationGas)),
		MaxFeePerGas:         hexutil.EncodeBig(bigOrZero(op.MaxFeePerGas)),
		MaxPriorityFeePerGas: hexutil.EncodeBig(bigOrZero(op.MaxPriorityFeePerGas)),
		PaymasterAndData:     hexutil.Encode(op.PaymasterAndData),
		Signature:            hexutil.Encode(op.Signature),
	}
	return json.Marshal(aux)
}

func (op *UserOperation) String() string {
	formatBytes := func(b []byte) string {
		if len(b) == 0 {
			return "0x"
		}
		return hexutil.Encode(b)
	}

	formatBigInt := func(b *big.Int) string {
		if b == nil {
			return "0x, 0"
		}
		return fmt.Sprintf("0x%x, %s", b, b.Text(10))
	}

	return fmt.Sprintf(
		"UserOperation{\n"+
			"  Sender: %s\n"+
			"  Nonce: %s\n"+
			"  InitCode: %s\n"+
			"  CallData: %s\n"+
			"  CallGasLimit: %s\n"+
			"  VerificationGasLimit: %s\n"+
			"  PreVerificationGas: %s\n"+
			"  MaxFeePerGas: %s\n"+
			"  MaxPriorityFeePerGas: %s\n"+
			"  PaymasterAndData: %s\n"+
			"  Signature: %s\n"+
			"}",
		op.Sender.Hex(),
		formatBigInt(op.Nonce),
		formatBytes(op.InitCode),
		formatBytes(op.CallData),
		formatBigInt(op.CallGasLimit),
		formatBigInt(op.VerificationGasLimit),
		formatBigInt(op.PreVerificationGas),
		formatBigInt(op.MaxFeePerGas),
		formatBigInt(op.MaxPriorityFeePerGas),
		formatBytes(op.PaymasterAndData),
		formatBytes(op.Signature),
	)
}
