package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"
)

// OrderType enumerates the dex order variants. The numeric values are part
// of the signed record and must match the ledger contract.
type OrderType uint8

const (
	BuyLimit         OrderType = 0
	SellLimit        OrderType = 1
	BuyMarketTotal   OrderType = 2
	BuyMarketAmount  OrderType = 3
	SellMarketTotal  OrderType = 4
	SellMarketAmount OrderType = 5
)

func (t OrderType) Valid() bool {
	return t <= SellMarketAmount
}

// IsBuy reports whether the order takes base and gives quote.
func (t OrderType) IsBuy() bool {
	return t == BuyLimit || t == BuyMarketTotal || t == BuyMarketAmount
}

// IsSell reports whether the order gives base and takes quote.
func (t OrderType) IsSell() bool {
	return t == SellLimit || t == SellMarketTotal || t == SellMarketAmount
}

// IsMarket reports whether the order carries no price of its own.
func (t OrderType) IsMarket() bool {
	return t >= BuyMarketTotal
}

// BoundsQuoteTotal reports whether RequestAmount caps the quote total of
// the order instead of the base amount.
func (t OrderType) BoundsQuoteTotal() bool {
	return t == BuyMarketTotal || t == SellMarketTotal
}

func (t OrderType) String() string {
	switch t {
	case BuyLimit:
		return "BUY_LIMIT"
	case SellLimit:
		return "SELL_LIMIT"
	case BuyMarketTotal:
		return "BUY_MARKET_TOTAL"
	case BuyMarketAmount:
		return "BUY_MARKET_AMOUNT"
	case SellMarketTotal:
		return "SELL_MARKET_TOTAL"
	case SellMarketAmount:
		return "SELL_MARKET_AMOUNT"
	default:
		return fmt.Sprintf("OrderType(%d)", uint8(t))
	}
}

const (
	ErrUnknownOrderType modelError = "unknown order type"
	ErrMarketOrderPrice modelError = "market order must carry a zero price"
	ErrMissingAmount    modelError = "order request amount must be a positive amount"
)

// DexOrder is a signed off-chain trade intent. OrderID is caller-assigned
// bookkeeping and is not covered by the signature; every other field is.
// Once signed an order is immutable.
type DexOrder struct {
	OrderID       uint64         `json:"orderId"`
	OrderType     OrderType      `json:"orderType"`
	BaseToken     common.Address `json:"baseTokenAddr"`
	QuoteToken    common.Address `json:"quoteTokenAddr"`
	Price         *big.Int       `json:"price"`         // quote per base, scaled to quote decimals; zero for market orders
	RequestAmount *big.Int       `json:"requestAmount"` // base amount, or quote total for *_MARKET_TOTAL
	Signature     []byte         `json:"signature"`
}

// RecordDigest hashes the order's canonical encoding. OrderID and
// Signature are excluded.
func (o *DexOrder) RecordDigest(scheme DigestScheme) (common.Hash, error) {
	enc, err := EncodeFields(
		Uint256(new(big.Int).SetUint64(uint64(o.OrderType))),
		Address(o.BaseToken),
		Address(o.QuoteToken),
		Uint256(o.Price),
		Uint256(o.RequestAmount),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return scheme.RecordDigest(enc), nil
}

// Digest returns the signable domain digest of the order for the given
// dex manager deployment.
func (o *DexOrder) Digest(scheme DigestScheme, chainID *big.Int, dexManager common.Address) (common.Hash, error) {
	record, err := o.RecordDigest(scheme)
	if err != nil {
		return common.Hash{}, err
	}
	return scheme.DomainDigest(record, dexManager, chainID)
}

// VerifySignature recomputes the order's domain digest from its own fields
// and reports whether the signature recovers to expected. The chain id and
// dex manager address are re-derived by the caller, never trusted from the
// order's transport envelope.
func (o *DexOrder) VerifySignature(scheme DigestScheme, chainID *big.Int, dexManager common.Address, expected common.Address) bool {
	digest, err := o.Digest(scheme, chainID, dexManager)
	if err != nil {
		return false
	}
	return CheckSignature(digest, o.Signature, expected)
}

// NewSignedOrder builds a dex order, signs its domain digest and returns
// the populated order.
//
// A nil price is treated as zero. Market order types must carry a zero
// price: the ledger ignores the field for them, but signing a nonzero
// price on a market order is almost always a caller bug, so it is rejected
// here before a signature exists.
func NewSignedOrder(
	scheme DigestScheme,
	chainID *big.Int,
	dexManager common.Address,
	signer Signer,
	orderID uint64,
	orderType OrderType,
	baseToken common.Address,
	quoteToken common.Address,
	price *big.Int,
	requestAmount *big.Int,
) (*DexOrder, error) {
	if !orderType.Valid() {
		return nil, ErrUnknownOrderType
	}
	if price == nil {
		price = new(big.Int)
	}
	if orderType.IsMarket() && price.Sign() != 0 {
		return nil, ErrMarketOrderPrice
	}
	if requestAmount == nil || requestAmount.Sign() <= 0 {
		return nil, ErrMissingAmount
	}

	order := &DexOrder{
		OrderID:       orderID,
		OrderType:     orderType,
		BaseToken:     baseToken,
		QuoteToken:    quoteToken,
		Price:         price,
		RequestAmount: requestAmount,
	}

	digest, err := order.Digest(scheme, chainID, dexManager)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(digest)
	if err != nil {
		return nil, err
	}
	order.Signature = sig

	return order, nil
}

// MarshalJSON renders amounts as hex quantities and the signature as hex
// data, the wire form the relayer RPC uses.
func (o *DexOrder) MarshalJSON() ([]byte, error) {
	aux := struct {
		OrderID       uint64    `json:"orderId"`
		OrderType     OrderType `json:"orderType"`
		BaseToken     string    `json:"baseTokenAddr"`
		QuoteToken    string    `json:"quoteTokenAddr"`
		Price         string    `json:"price"`
		RequestAmount string    `json:"requestAmount"`
		Signature     string    `json:"signature"`
	}{
		OrderID:       o.OrderID,
		OrderType:     o.OrderType,
		BaseToken:     o.BaseToken.Hex(),
		QuoteToken:    o.QuoteToken.Hex(),
		Price:         hexutil.EncodeBig(bigOrZero(o.Price)),
		RequestAmount: hexutil.EncodeBig(bigOrZero(o.RequestAmount)),
		Signature:     hexutil.Encode(o.Signature),
	}
	return json.Marshal(aux)
}

// UnmarshalJSON is the reverse of MarshalJSON.
func (o *DexOrder) UnmarshalJSON(data []byte) error {
	aux := struct {
		OrderID       uint64    `json:"orderId"`
		OrderType     OrderType `json:"orderType"`
		BaseToken     string    `json:"baseTokenAddr"`
		QuoteToken    string    `json:"quoteTokenAddr"`
		Price         string    `json:"price"`
		RequestAmount string    `json:"requestAmount"`
		Signature     string    `json:"signature"`
	}{}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	o.OrderID = aux.OrderID
	o.OrderType = aux.OrderType
	o.BaseToken = common.HexToAddress(aux.BaseToken)
	o.QuoteToken = common.HexToAddress(aux.QuoteToken)

	o.Price, err = hexutil.DecodeBig(aux.Price)
	if err != nil {
		return err
	}
	o.RequestAmount, err = hexutil.DecodeBig(aux.RequestAmount)
	if err != nil {
		return err
	}
	o.Signature, err = hexutil.Decode(aux.Signature)
	if err != nil {
		return err
	}
	return nil
}

func (o *DexOrder) String() string {
	return fmt.Sprintf(
		"DexOrder{OrderID: %d, OrderType: %s, BaseToken: %s, QuoteToken: %s, Price: %s, RequestAmount: %s, Signature: %s}",
		o.OrderID,
		o.OrderType,
		o.BaseToken.Hex(),
		o.QuoteToken.Hex(),
		bigOrZero(o.Price).String(),
		bigOrZero(o.RequestAmount).String(),
		hexutil.Encode(o.Signature),
	)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
