// This file implements the client-side operation batch accumulator: it
// turns a sequence of intended contract calls into signed, nonce-ordered
// user operations and hands the whole batch to a submission collaborator
// in one flush.

package model

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ErrInvalidCall     modelError = "intended call is malformed"
	ErrNoGasBudget     modelError = "intended call has no gas limit and the accumulator has no capacity estimate"
	ErrAlreadyFlushed  modelError = "accumulator was already flushed"
	ErrNothingToSubmit modelError = "no operations accumulated"
)

// IntendedCall is one contract call to be executed through the entry
// point. All fee and gas fields are optional; unset fields are resolved by
// the accumulator.
type IntendedCall struct {
	CallData []byte

	// CallGasLimit defaults to the accumulator's one-time capacity
	// estimate.
	CallGasLimit *big.Int

	// GasPrice is the legacy single-price form. When set it overrides both
	// EIP-1559 fee caps.
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// QueuedOp records that an operation was accepted locally. Nothing has
// been broadcast: the sequence number is allocated and the signature
// exists, but the operation only leaves the process on Flush.
type QueuedOp struct {
	SequenceNumber uint64
	Op             *UserOperation
}

// SubmittedBatch is the result of a flush that reached the submission
// collaborator.
type SubmittedBatch struct {
	TxHash common.Hash
	Count  int
}

// SubmitFunc broadcasts a finished batch to the ledger. Operations are
// passed in sequence order. Retries and receipts belong to the submitter;
// the accumulator is done once this returns.
type SubmitFunc func(ctx context.Context, maxPriorityFeePerGas, maxFeePerGas *big.Int, ops []*UserOperation) (common.Hash, error)

// AccumulatorConfig wires an OpAccumulator to one sender account and one
// entry point deployment.
type AccumulatorConfig struct {
	Scheme     DigestScheme
	ChainID    *big.Int
	EntryPoint common.Address

	// Sender is the AA-controlled account the operations execute through.
	Sender common.Address

	// SequenceBase is the sender's next unused sequence number on the
	// ledger, fetched once before accumulation starts.
	SequenceBase uint64

	Signer Signer

	// BaseFeeSnapshot is the block base fee sampled once; max fee defaults
	// to BaseFeeSnapshot + priority fee.
	BaseFeeSnapshot *big.Int

	// MaxCallGasLimit is a capacity estimate obtained once, outside the hot
	// path. Calls without their own gas limit use it.
	MaxCallGasLimit *big.Int

	Submit SubmitFunc
}

// OpAccumulator accumulates signed operations for one submitter.
//
// Sequence numbers are allocated optimistically and never recycled: an
// operation later judged invalid by the ledger still consumed its number,
// otherwise a resubmission would collide with its successor.
//
// An accumulator is owned by a single logical submitter. It is not safe
// for concurrent use; sequence allocation is not atomic across
// goroutines.
type OpAccumulator struct {
	cfg     AccumulatorConfig
	pending []*UserOperation
	callGas *big.Int
	flushed bool
}

func NewOpAccumulator(cfg AccumulatorConfig) *OpAccumulator {
	return &OpAccumulator{
		cfg:     cfg,
		callGas: new(big.Int),
	}
}

// NextSequenceNumber returns the sequence number the next accepted call
// will take: the ledger base plus everything queued so far.
func (a *OpAccumulator) NextSequenceNumber() uint64 {
	return a.cfg.SequenceBase + uint64(len(a.pending))
}

// Len returns the number of queued operations.
func (a *OpAccumulator) Len() int {
	return len(a.pending)
}

// CumulativeCallGas returns the summed call gas budget of all queued
// operations.
func (a *OpAccumulator) CumulativeCallGas() *big.Int {
	return new(big.Int).Set(a.callGas)
}

// Pending returns the queued operations in sequence order.
func (a *OpAccumulator) Pending() []*UserOperation {
	out := make([]*UserOperation, len(a.pending))
	copy(out, a.pending)
	return out
}

// Add resolves the call's fee and gas fields, signs the resulting
// operation and queues it. On any error the accumulator state is
// unchanged; on success the caller may treat the call as completed even
// though nothing was broadcast yet.
func (a *OpAccumulator) Add(call IntendedCall) (*QueuedOp, error) {
	if a.flushed {
		return nil, ErrAlreadyFlushed
	}
	if len(call.CallData) == 0 {
		return nil, ErrInvalidCall
	}

	callGasLimit := call.CallGasLimit
	if callGasLimit == nil {
		callGasLimit = a.cfg.MaxCallGasLimit
	}
	if callGasLimit == nil {
		return nil, ErrNoGasBudget
	}

	maxPriorityFee, maxFee := a.resolveFees(call)

	seq := a.NextSequenceNumber()
	op := &UserOperation{
		Sender:               a.cfg.Sender,
		Nonce:                new(big.Int).SetUint64(seq),
		CallData:             call.CallData,
		CallGasLimit:         new(big.Int).Set(callGasLimit),
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: maxPriorityFee,
	}
	if err := op.fillDefaults(); err != nil {
		return nil, ErrInvalidCall
	}

	digest, err := op.Hash(a.cfg.Scheme, a.cfg.EntryPoint, a.cfg.ChainID)
	if err != nil {
		return nil, err
	}
	sig, err := a.cfg.Signer.Sign(digest)
	if err != nil {
		return nil, err
	}
	op.Signature = sig

	a.pending = append(a.pending, op)
	a.callGas.Add(a.callGas, op.CallGasLimit)

	return &QueuedOp{SequenceNumber: seq, Op: op}, nil
}

func (a *OpAccumulator) resolveFees(call IntendedCall) (maxPriorityFee, maxFee *big.Int) {
	// Legacy single price overrides both EIP-1559 caps.
	if call.GasPrice != nil {
		return new(big.Int).Set(call.GasPrice), new(big.Int).Set(call.GasPrice)
	}

	maxPriorityFee = call.MaxPriorityFeePerGas
	if maxPriorityFee == nil {
		maxPriorityFee = new(big.Int).Set(DefaultMaxPriorityFeePerGas)
	}
	maxFee = call.MaxFeePerGas
	if maxFee == nil {
		maxFee = new(big.Int).Add(bigOrZero(a.cfg.BaseFeeSnapshot), maxPriorityFee)
	}
	return maxPriorityFee, maxFee
}

// Flush hands the full ordered batch to the submission collaborator with
// the given top-level fee bounds; nil overrides fall back to the defaults
// used for individual operations. The accumulator is not reusable
// afterward, whatever the submitter returned: create a fresh one, with a
// fresh sequence base, for further work.
func (a *OpAccumulator) Flush(ctx context.Context, maxPriorityFeePerGas, maxFeePerGas *big.Int) (*SubmittedBatch, error) {
	if a.flushed {
		return nil, ErrAlreadyFlushed
	}
	if len(a.pending) == 0 {
		return nil, ErrNothingToSubmit
	}
	a.flushed = true

	if maxPriorityFeePerGas == nil {
		maxPriorityFeePerGas = new(big.Int).Set(DefaultMaxPriorityFeePerGas)
	}
	if maxFeePerGas == nil {
		maxFeePerGas = new(big.Int).Add(bigOrZero(a.cfg.BaseFeeSnapshot), maxPriorityFeePerGas)
	}

	txHash, err := a.cfg.Submit(ctx, maxPriorityFeePerGas, maxFeePerGas, a.pending)
	if err != nil {
		return nil, err
	}

	return &SubmittedBatch{TxHash: txHash, Count: len(a.pending)}, nil
}
