package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

var (
	testChainID    = big.NewInt(31337)
	testDexManager = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	testUSDT       = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
)

func newTestSigner(t *testing.T) *PrivateKeySigner {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewPrivateKeySigner(key)
}

func mustParseUnits(t *testing.T, value string, decimals uint8) *big.Int {
	t.Helper()

	amount, err := ParseUnits(value, decimals)
	require.NoError(t, err)
	return amount
}

// newTestOrder signs a buy-limit order for 3 native tokens at 1000 USDT.
func newTestOrder(t *testing.T, signer *PrivateKeySigner) *DexOrder {
	t.Helper()

	order, err := NewSignedOrder(
		NewDigestScheme(),
		testChainID,
		testDexManager,
		signer,
		1,
		BuyLimit,
		common.Address{}, // native base
		testUSDT,
		mustParseUnits(t, "1000", 6),
		mustParseUnits(t, "3", 18),
	)
	require.NoError(t, err)
	return order
}

func TestNewSignedOrder_RoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	order := newTestOrder(t, signer)

	require.EqualValues(t, 1, order.OrderID)
	require.Equal(t, BuyLimit, order.OrderType)
	require.Len(t, order.Signature, signatureLength)

	scheme := NewDigestScheme()
	require.True(t, order.VerifySignature(scheme, testChainID, testDexManager, signer.Address()))

	digest, err := order.Digest(scheme, testChainID, testDexManager)
	require.NoError(t, err)
	recovered, err := RecoverSigner(digest, order.Signature)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), recovered)
}

func TestDexOrder_VerifyFailsOnMutation(t *testing.T) {
	signer := newTestSigner(t)
	scheme := NewDigestScheme()

	testCases := []struct {
		name   string
		mutate func(o *DexOrder)
	}{
		{"price", func(o *DexOrder) { o.Price = big.NewInt(999) }},
		{"request amount", func(o *DexOrder) { o.RequestAmount.Add(o.RequestAmount, big.NewInt(1)) }},
		{"order type", func(o *DexOrder) { o.OrderType = SellLimit }},
		{"base token", func(o *DexOrder) { o.BaseToken = testUSDT }},
		{"quote token", func(o *DexOrder) { o.QuoteToken = common.Address{} }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			order := newTestOrder(t, signer)
			tc.mutate(order)
			require.False(t, order.VerifySignature(scheme, testChainID, testDexManager, signer.Address()))
		})
	}
}

// OrderID is bookkeeping only; changing it must not break the signature.
func TestDexOrder_OrderIDNotSigned(t *testing.T) {
	signer := newTestSigner(t)
	order := newTestOrder(t, signer)

	order.OrderID = 99999
	require.True(t, order.VerifySignature(NewDigestScheme(), testChainID, testDexManager, signer.Address()))
}

func TestDexOrder_VerifyFailsAcrossDeployments(t *testing.T) {
	signer := newTestSigner(t)
	order := newTestOrder(t, signer)
	scheme := NewDigestScheme()

	require.False(t, order.VerifySignature(scheme, big.NewInt(1), testDexManager, signer.Address()))
	require.False(t, order.VerifySignature(scheme, testChainID, testUSDT, signer.Address()))
}

func TestDexOrder_VerifyFailsForWrongSigner(t *testing.T) {
	signer := newTestSigner(t)
	other := newTestSigner(t)
	order := newTestOrder(t, signer)

	require.False(t, order.VerifySignature(NewDigestScheme(), testChainID, testDexManager, other.Address()))
}

func TestNewSignedOrder_MarketPriceRejected(t *testing.T) {
	signer := newTestSigner(t)
	scheme := NewDigestScheme()

	for _, orderType := range []OrderType{BuyMarketTotal, BuyMarketAmount, SellMarketTotal, SellMarketAmount} {
		t.Run(orderType.String(), func(t *testing.T) {
			_, err := NewSignedOrder(
				scheme, testChainID, testDexManager, signer,
				1, orderType, common.Address{}, testUSDT,
				big.NewInt(1), mustParseUnits(t, "1", 18),
			)
			require.ErrorIs(t, err, ErrMarketOrderPrice)

			order, err := NewSignedOrder(
				scheme, testChainID, testDexManager, signer,
				1, orderType, common.Address{}, testUSDT,
				nil, mustParseUnits(t, "1", 18),
			)
			require.NoError(t, err)
			require.Equal(t, 0, order.Price.Sign())
		})
	}
}

func TestNewSignedOrder_InputErrors(t *testing.T) {
	signer := newTestSigner(t)
	scheme := NewDigestScheme()

	_, err := NewSignedOrder(
		scheme, testChainID, testDexManager, signer,
		1, OrderType(42), common.Address{}, testUSDT,
		nil, big.NewInt(1),
	)
	require.ErrorIs(t, err, ErrUnknownOrderType)

	_, err = NewSignedOrder(
		scheme, testChainID, testDexManager, signer,
		1, BuyLimit, common.Address{}, testUSDT,
		big.NewInt(1), nil,
	)
	require.ErrorIs(t, err, ErrMissingAmount)

	_, err = NewSignedOrder(
		scheme, testChainID, testDexManager, signer,
		1, BuyLimit, common.Address{}, testUSDT,
		big.NewInt(1), big.NewInt(0),
	)
	require.ErrorIs(t, err, ErrMissingAmount)
}

func TestDexOrder_JSONRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	order := newTestOrder(t, signer)

	data, err := json.Marshal(order)
	require.NoError(t, err)

	decoded := new(DexOrder)
	require.NoError(t, json.Unmarshal(data, decoded))

	require.Equal(t, order.OrderID, decoded.OrderID)
	require.Equal(t, order.OrderType, decoded.OrderType)
	require.Equal(t, order.BaseToken, decoded.BaseToken)
	require.Equal(t, order.QuoteToken, decoded.QuoteToken)
	require.Equal(t, 0, order.Price.Cmp(decoded.Price))
	require.Equal(t, 0, order.RequestAmount.Cmp(decoded.RequestAmount))
	require.Equal(t, order.Signature, decoded.Signature)

	require.True(t, decoded.VerifySignature(NewDigestScheme(), testChainID, testDexManager, signer.Address()))
}

func TestCheckSignature_MalformedSignature(t *testing.T) {
	digest := Keccak256([]byte("digest"))

	if CheckSignature(digest, nil, common.Address{}) {
		t.Errorf("CheckSignature() = true for nil signature, want false")
	}
	if CheckSignature(digest, make([]byte, 64), common.Address{}) {
		t.Errorf("CheckSignature() = true for short signature, want false")
	}
}
