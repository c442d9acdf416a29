// Package model provides the off-chain protocol types for AADex: canonical
// encoding and hashing of signable records, signed dex orders, batched user
// operations, and the settlement checks an operator runs before handing a
// fill to the ledger contract.
//
// Every byte layout in this package must match the deployed verifier
// exactly. Records are reduced to fixed-width words before hashing so the
// signed digest is independent of any variable-length payload size.
package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FieldKind selects the declared width and interpretation of a Field.
// The width is part of the schema, never inferred from the value.
type FieldKind uint8

const (
	Uint8Field   FieldKind = iota // 1 byte
	Uint48Field                   // 6 bytes
	Uint64Field                   // 8 bytes
	Uint256Field                  // 32 bytes
	AddressField                  // 20 raw bytes, no checksum text
	Bytes32Field                  // 32 bytes
)

func (k FieldKind) width() int {
	switch k {
	case Uint8Field:
		return 1
	case Uint48Field:
		return 6
	case Uint64Field:
		return 8
	case Uint256Field, Bytes32Field:
		return 32
	case AddressField:
		return common.AddressLength
	default:
		return 0
	}
}

func (k FieldKind) String() string {
	switch k {
	case Uint8Field:
		return "uint8"
	case Uint48Field:
		return "uint48"
	case Uint64Field:
		return "uint64"
	case Uint256Field:
		return "uint256"
	case AddressField:
		return "address"
	case Bytes32Field:
		return "bytes32"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is one schema entry handed to EncodeFields.
type Field struct {
	Kind  FieldKind
	Value any
}

// Uint8 declares a one-byte unsigned field.
func Uint8(v uint8) Field { return Field{Kind: Uint8Field, Value: v} }

// Uint48 declares a six-byte unsigned field.
func Uint48(v uint64) Field { return Field{Kind: Uint48Field, Value: v} }

// Uint64 declares an eight-byte unsigned field.
func Uint64(v uint64) Field { return Field{Kind: Uint64Field, Value: v} }

// Uint256 declares a 32-byte unsigned field.
func Uint256(v *big.Int) Field { return Field{Kind: Uint256Field, Value: v} }

// Address declares a raw 20-byte address field.
func Address(a common.Address) Field { return Field{Kind: AddressField, Value: a} }

// Bytes32 declares a 32-byte hash field.
func Bytes32(h common.Hash) Field { return Field{Kind: Bytes32Field, Value: h} }

// EncodingError reports a value that cannot be represented at its field's
// declared width. It is a programmer error and is never retried.
type EncodingError struct {
	Index int
	Kind  FieldKind
	Msg   string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding field %d (%s): %s", e.Index, e.Kind, e.Msg)
}

// EncodeFields concatenates the given fields into their canonical byte
// form: unsigned integers big-endian at their declared width, addresses as
// their raw 20 bytes, hashes as their raw 32 bytes. The same logical input
// always yields the same bytes.
func EncodeFields(fields ...Field) ([]byte, error) {
	size := 0
	for _, f := range fields {
		size += f.Kind.width()
	}

	out := make([]byte, 0, size)
	for i, f := range fields {
		enc, err := encodeField(i, f)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

func encodeField(index int, f Field) ([]byte, error) {
	fail := func(msg string) ([]byte, error) {
		return nil, &EncodingError{Index: index, Kind: f.Kind, Msg: msg}
	}

	switch f.Kind {
	case Uint8Field:
		v, ok := f.Value.(uint8)
		if !ok {
			return fail(fmt.Sprintf("value %T is not uint8", f.Value))
		}
		return []byte{v}, nil

	case Uint48Field, Uint64Field:
		v, ok := f.Value.(uint64)
		if !ok {
			return fail(fmt.Sprintf("value %T is not uint64", f.Value))
		}
		width := f.Kind.width()
		if f.Kind == Uint48Field && v >= 1<<48 {
			return fail(fmt.Sprintf("value %d overflows 48 bits", v))
		}
		buf := make([]byte, width)
		for i := width - 1; i >= 0; i-- {
			buf[i] = byte(v)
			v >>= 8
		}
		return buf, nil

	case Uint256Field:
		v, ok := f.Value.(*big.Int)
		if !ok {
			return fail(fmt.Sprintf("value %T is not *big.Int", f.Value))
		}
		if v == nil {
			return fail("value is nil")
		}
		if v.Sign() < 0 {
			return fail("value is negative, field is unsigned")
		}
		if v.BitLen() > 256 {
			return fail(fmt.Sprintf("value overflows 256 bits (%d)", v.BitLen()))
		}
		buf := make([]byte, 32)
		v.FillBytes(buf)
		return buf, nil

	case AddressField:
		v, ok := f.Value.(common.Address)
		if !ok {
			return fail(fmt.Sprintf("value %T is not common.Address", f.Value))
		}
		return v.Bytes(), nil

	case Bytes32Field:
		v, ok := f.Value.(common.Hash)
		if !ok {
			return fail(fmt.Sprintf("value %T is not common.Hash", f.Value))
		}
		return v.Bytes(), nil

	default:
		return fail("unknown field kind")
	}
}
