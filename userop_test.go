package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

var testEntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

func newTestUserOp(callData []byte) *UserOperation {
	return &UserOperation{
		Sender:               common.HexToAddress("0x9d34f236bddf1b9de014312599d9c9ec8af1bc48"),
		Nonce:                big.NewInt(7),
		InitCode:             []byte{},
		CallData:             callData,
		CallGasLimit:         big.NewInt(200_000),
		VerificationGasLimit: new(big.Int).Set(DefaultVerificationGasLimit),
		PreVerificationGas:   new(big.Int).Set(DefaultPreVerificationGas),
		MaxFeePerGas:         big.NewInt(2_000_000_000),
		MaxPriorityFeePerGas: new(big.Int).Set(DefaultMaxPriorityFeePerGas),
		PaymasterAndData:     []byte{},
	}
}

// The signed packing folds variable-length fields in as hashes, so its
// size never depends on the payload.
func TestUserOperation_PackForSignatureFixedSize(t *testing.T) {
	scheme := NewDigestScheme()

	small, err := newTestUserOp([]byte{0x01}).PackForSignature(scheme)
	require.NoError(t, err)

	large, err := newTestUserOp(make([]byte, 4096)).PackForSignature(scheme)
	require.NoError(t, err)

	require.Equal(t, len(small), len(large))
	require.NotEqual(t, small, large)
}

func TestUserOperation_HashBindsDeployment(t *testing.T) {
	scheme := NewDigestScheme()
	op := newTestUserOp([]byte{0x01, 0x02})

	base, err := op.Hash(scheme, testEntryPoint, testChainID)
	require.NoError(t, err)

	otherChain, err := op.Hash(scheme, testEntryPoint, big.NewInt(1))
	require.NoError(t, err)
	require.NotEqual(t, base, otherChain)

	otherEntryPoint, err := op.Hash(scheme, testDexManager, testChainID)
	require.NoError(t, err)
	require.NotEqual(t, base, otherEntryPoint)

	again, err := op.Hash(scheme, testEntryPoint, testChainID)
	require.NoError(t, err)
	require.Equal(t, base, again)
}

func TestUserOperation_SignAndVerify(t *testing.T) {
	scheme := NewDigestScheme()
	signer := newTestSigner(t)
	op := newTestUserOp([]byte{0x01, 0x02})

	digest, err := op.Hash(scheme, testEntryPoint, testChainID)
	require.NoError(t, err)

	op.Signature, err = signer.Sign(digest)
	require.NoError(t, err)

	require.True(t, op.VerifySignature(scheme, testEntryPoint, testChainID, signer.Address()))

	op.Nonce = big.NewInt(8)
	require.False(t, op.VerifySignature(scheme, testEntryPoint, testChainID, signer.Address()))
}

func TestCalldataCost(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want uint64
	}{
		{"empty", nil, 0},
		{"zero bytes", []byte{0, 0, 0}, 12},
		{"nonzero bytes", []byte{1, 2, 3}, 48},
		{"mixed", []byte{0, 1, 0, 2}, 40},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalldataCost(tc.data); got != tc.want {
				t.Errorf("CalldataCost() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestUserOperation_FillDefaults(t *testing.T) {
	op := &UserOperation{
		Sender:       common.HexToAddress("0x9d34f236bddf1b9de014312599d9c9ec8af1bc48"),
		Nonce:        big.NewInt(0),
		CallData:     []byte{0x01},
		CallGasLimit: big.NewInt(100_000),
		MaxFeePerGas: big.NewInt(1),
	}
	require.NoError(t, op.fillDefaults())

	require.Equal(t, []byte{}, op.InitCode)
	require.Equal(t, []byte{}, op.PaymasterAndData)
	require.Equal(t, 0, op.VerificationGasLimit.Cmp(DefaultVerificationGasLimit))
	require.Equal(t, 0, op.PreVerificationGas.Cmp(DefaultPreVerificationGas))
	require.Equal(t, 0, op.MaxPriorityFeePerGas.Cmp(DefaultMaxPriorityFeePerGas))
}

// An explicit zero asks for the calldata-cost rule instead of the flat
// default.
func TestUserOperation_FillDefaultsPricesCalldata(t *testing.T) {
	op := &UserOperation{
		Sender:               common.HexToAddress("0x9d34f236bddf1b9de014312599d9c9ec8af1bc48"),
		Nonce:                big.NewInt(0),
		CallData:             []byte{0x01, 0x00, 0x02},
		CallGasLimit:         big.NewInt(100_000),
		MaxFeePerGas:         big.NewInt(1),
		PreVerificationGas:   big.NewInt(0),
		MaxPriorityFeePerGas: big.NewInt(1),
	}
	require.NoError(t, op.fillDefaults())

	packed, err := op.PackForGas()
	require.NoError(t, err)
	require.Equal(t, 0, op.PreVerificationGas.Cmp(new(big.Int).SetUint64(CalldataCost(packed))))
	require.NotEqual(t, 0, op.PreVerificationGas.Sign())
}

func TestUserOperation_JSONRoundTrip(t *testing.T) {
	op := newTestUserOp([]byte{0x0a, 0x0b})
	op.Signature = []byte{0x01, 0x02, 0x03}

	data, err := json.Marshal(op)
	require.NoError(t, err)

	decoded := new(UserOperation)
	require.NoError(t, json.Unmarshal(data, decoded))

	require.Equal(t, op.Sender, decoded.Sender)
	require.Equal(t, 0, op.Nonce.Cmp(decoded.Nonce))
	require.Equal(t, op.CallData, decoded.CallData)
	require.Equal(t, 0, op.CallGasLimit.Cmp(decoded.CallGasLimit))
	require.Equal(t, 0, op.MaxFeePerGas.Cmp(decoded.MaxFeePerGas))
	require.Equal(t, op.Signature, decoded.Signature)

	scheme := NewDigestScheme()
	wantHash, err := op.Hash(scheme, testEntryPoint, testChainID)
	require.NoError(t, err)
	gotHash, err := decoded.Hash(scheme, testEntryPoint, testChainID)
	require.NoError(t, err)
	require.Equal(t, wantHash, gotHash)
}
