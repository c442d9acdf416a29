// This file implements the settlement checks a fill must pass before the
// operator packages it into a swap operation. The validator is pure: it
// judges one fill against one consistent balance snapshot and returns the
// balances the ledger would hold afterward. Applying them, and serializing
// competing fills against the same order, is the ledger contract's job.

package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RejectReason names why a fill was refused. Rejections are routine
// business outcomes, not faults: an operator logs the reason, resizes or
// drops the fill, and moves on.
type RejectReason string

const (
	RejectMalformed           RejectReason = "MalformedFill"
	RejectBuyerSignature      RejectReason = "BuyerSignatureInvalid"
	RejectSellerSignature     RejectReason = "SellerSignatureInvalid"
	RejectSideMismatch        RejectReason = "OrderSideMismatch"
	RejectSellerBound         RejectReason = "SellerBoundExceeded"
	RejectBuyerBound          RejectReason = "BuyerBoundExceeded"
	RejectInsufficientBalance RejectReason = "InsufficientBalance"
	RejectExcessiveFee        RejectReason = "ExcessiveFee"
)

// FillRejection carries the specific reason a fill failed validation. It
// is data, not an error: a rejected fill must never abort a
// batch-construction loop.
type FillRejection struct {
	Reason RejectReason
	Detail string
}

func (r *FillRejection) String() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Fill is one proposed settlement step matching a buy order and a sell
// order. TradeID and TradeItemID form the idempotency pair the ledger uses
// to refuse duplicate application.
type Fill struct {
	TradeID     uint64 `json:"tradeId"`
	TradeItemID uint64 `json:"tradeItemId"`

	BuyOrder     *DexOrder      `json:"buyerOrder"`
	BuyerAddress common.Address `json:"buyerAddress"`
	BuyerFee     *big.Int       `json:"buyerFee"` // taken from the base the buyer receives

	SellOrder     *DexOrder      `json:"sellerOrder"`
	SellerAddress common.Address `json:"sellerAddress"`
	SellerFee     *big.Int       `json:"sellerFee"` // taken from the quote the seller receives

	BaseTokenKey  string   `json:"baseTokenKey"`
	BaseAmount    *big.Int `json:"baseTokenAmount"`
	QuoteTokenKey string   `json:"quoteTokenKey"`
	QuoteAmount   *big.Int `json:"quoteTokenAmount"`

	FeeCollector common.Address `json:"feeCollector"`
}

// BalanceSheet is a snapshot of ledger balances: account, then canonical
// token key, then amount. Amounts read out of a sheet are copies.
type BalanceSheet map[common.Address]map[string]*big.Int

// BalanceOf returns the snapshot amount for account and tokenKey, zero if
// absent.
func (b BalanceSheet) BalanceOf(account common.Address, tokenKey string) *big.Int {
	if line, ok := b[account]; ok {
		if amount, ok := line[tokenKey]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return new(big.Int)
}

// Set records an amount, replacing any previous value.
func (b BalanceSheet) Set(account common.Address, tokenKey string, amount *big.Int) {
	line, ok := b[account]
	if !ok {
		line = make(map[string]*big.Int)
		b[account] = line
	}
	line[tokenKey] = new(big.Int).Set(amount)
}

func (b BalanceSheet) add(account common.Address, tokenKey string, delta *big.Int) {
	next := b.BalanceOf(account, tokenKey)
	next.Add(next, delta)
	b.Set(account, tokenKey, next)
}

func (b BalanceSheet) sub(account common.Address, tokenKey string, delta *big.Int) {
	next := b.BalanceOf(account, tokenKey)
	next.Sub(next, delta)
	b.Set(account, tokenKey, next)
}

// Clone deep-copies the sheet.
func (b BalanceSheet) Clone() BalanceSheet {
	out := make(BalanceSheet, len(b))
	for account, line := range b {
		copied := make(map[string]*big.Int, len(line))
		for key, amount := range line {
			copied[key] = new(big.Int).Set(amount)
		}
		out[account] = copied
	}
	return out
}

// TotalOf sums one token across every account in the sheet. Settlement
// conserves this sum exactly.
func (b BalanceSheet) TotalOf(tokenKey string) *big.Int {
	total := new(big.Int)
	for _, line := range b {
		if amount, ok := line[tokenKey]; ok {
			total.Add(total, amount)
		}
	}
	return total
}

// SettlementValidator checks fills against the deployment it was built
// for. Chain id and verifier address are fixed at construction and
// re-derived into every digest, never trusted from the fill.
type SettlementValidator struct {
	Scheme     DigestScheme
	ChainID    *big.Int
	DexManager common.Address
}

func NewSettlementValidator(scheme DigestScheme, chainID *big.Int, dexManager common.Address) *SettlementValidator {
	return &SettlementValidator{Scheme: scheme, ChainID: chainID, DexManager: dexManager}
}

// ValidateFill runs the settlement preconditions in order and, if all
// pass, returns the balances the ledger would hold after applying the
// fill. The input snapshot is never mutated. The first failing check
// rejects the fill with its named reason.
//
// Order request amounts are taken as the remaining bound: a caller
// tracking partial fills passes orders with the consumed amount already
// deducted. Two fills validated against the same snapshot are not jointly
// checked; the ledger serializes actual application.
func (v *SettlementValidator) ValidateFill(fill *Fill, balances BalanceSheet) (BalanceSheet, *FillRejection) {
	if err := fill.wellFormed(); err != nil {
		return nil, &FillRejection{Reason: RejectMalformed, Detail: err.Error()}
	}

	// 1. Both signatures verify against the current deployment.
	if !fill.BuyOrder.VerifySignature(v.Scheme, v.ChainID, v.DexManager, fill.BuyerAddress) {
		return nil, &FillRejection{
			Reason: RejectBuyerSignature,
			Detail: fmt.Sprintf("buy order %d does not verify against %s", fill.BuyOrder.OrderID, fill.BuyerAddress.Hex()),
		}
	}
	if !fill.SellOrder.VerifySignature(v.Scheme, v.ChainID, v.DexManager, fill.SellerAddress) {
		return nil, &FillRejection{
			Reason: RejectSellerSignature,
			Detail: fmt.Sprintf("sell order %d does not verify against %s", fill.SellOrder.OrderID, fill.SellerAddress.Hex()),
		}
	}

	// 2. Side consistency.
	if !fill.BuyOrder.OrderType.IsBuy() {
		return nil, &FillRejection{
			Reason: RejectSideMismatch,
			Detail: fmt.Sprintf("buy order %d has type %s", fill.BuyOrder.OrderID, fill.BuyOrder.OrderType),
		}
	}
	if !fill.SellOrder.OrderType.IsSell() {
		return nil, &FillRejection{
			Reason: RejectSideMismatch,
			Detail: fmt.Sprintf("sell order %d has type %s", fill.SellOrder.OrderID, fill.SellOrder.OrderType),
		}
	}

	// 3. Seller amount bound.
	if rej := checkOrderBound(fill.SellOrder, fill, RejectSellerBound); rej != nil {
		return nil, rej
	}

	// 4. Buyer amount bound.
	if rej := checkOrderBound(fill.BuyOrder, fill, RejectBuyerBound); rej != nil {
		return nil, rej
	}

	// 5. Balance sufficiency.
	sellerBase := balances.BalanceOf(fill.SellerAddress, fill.BaseTokenKey)
	if sellerBase.Cmp(fill.BaseAmount) < 0 {
		return nil, &FillRejection{
			Reason: RejectInsufficientBalance,
			Detail: fmt.Sprintf("seller %s holds %s base, fill needs %s", fill.SellerAddress.Hex(), sellerBase, fill.BaseAmount),
		}
	}
	buyerQuote := balances.BalanceOf(fill.BuyerAddress, fill.QuoteTokenKey)
	if buyerQuote.Cmp(fill.QuoteAmount) < 0 {
		return nil, &FillRejection{
			Reason: RejectInsufficientBalance,
			Detail: fmt.Sprintf("buyer %s holds %s quote, fill needs %s", fill.BuyerAddress.Hex(), buyerQuote, fill.QuoteAmount),
		}
	}

	// 6. Fee sanity. Fees come out of the proceeds each party receives:
	// the buyer's fee out of the base received, the seller's fee out of
	// the quote received.
	if fill.BuyerFee.Cmp(fill.BaseAmount) > 0 {
		return nil, &FillRejection{
			Reason: RejectExcessiveFee,
			Detail: fmt.Sprintf("buyer fee %s exceeds base amount %s", fill.BuyerFee, fill.BaseAmount),
		}
	}
	if fill.SellerFee.Cmp(fill.QuoteAmount) > 0 {
		return nil, &FillRejection{
			Reason: RejectExcessiveFee,
			Detail: fmt.Sprintf("seller fee %s exceeds quote amount %s", fill.SellerFee, fill.QuoteAmount),
		}
	}

	result := balances.Clone()

	result.sub(fill.SellerAddress, fill.BaseTokenKey, fill.BaseAmount)
	result.add(fill.SellerAddress, fill.QuoteTokenKey, new(big.Int).Sub(fill.QuoteAmount, fill.SellerFee))

	result.sub(fill.BuyerAddress, fill.QuoteTokenKey, fill.QuoteAmount)
	result.add(fill.BuyerAddress, fill.BaseTokenKey, new(big.Int).Sub(fill.BaseAmount, fill.BuyerFee))

	result.add(fill.FeeCollector, fill.BaseTokenKey, fill.BuyerFee)
	result.add(fill.FeeCollector, fill.QuoteTokenKey, fill.SellerFee)

	return result, nil
}

// checkOrderBound checks the fill against one order's remaining request
// amount. Limit and by-amount orders bound the base amount directly;
// by-total orders bound the quote total.
func checkOrderBound(order *DexOrder, fill *Fill, reason RejectReason) *FillRejection {
	filled := fill.BaseAmount
	unit := "base"
	if order.OrderType.BoundsQuoteTotal() {
		filled = fill.QuoteAmount
		unit = "quote"
	}

	if filled.Cmp(order.RequestAmount) > 0 {
		return &FillRejection{
			Reason: reason,
			Detail: fmt.Sprintf("order %d allows %s %s, fill takes %s", order.OrderID, order.RequestAmount, unit, filled),
		}
	}
	return nil
}

func (f *Fill) wellFormed() error {
	if f == nil {
		return fmt.Errorf("fill is nil")
	}
	if f.BuyOrder == nil || f.SellOrder == nil {
		return fmt.Errorf("fill %d/%d is missing an order", f.TradeID, f.TradeItemID)
	}
	for name, amount := range map[string]*big.Int{
		"baseTokenAmount":  f.BaseAmount,
		"quoteTokenAmount": f.QuoteAmount,
		"buyerFee":         f.BuyerFee,
		"sellerFee":        f.SellerFee,
	} {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("fill %d/%d has a nil or negative %s", f.TradeID, f.TradeItemID, name)
		}
	}
	if f.BuyOrder.RequestAmount == nil || f.SellOrder.RequestAmount == nil {
		return fmt.Errorf("fill %d/%d references an order without a request amount", f.TradeID, f.TradeItemID)
	}
	if _, err := ParseAssetKey(f.BaseTokenKey); err != nil {
		return fmt.Errorf("fill %d/%d base token key %q: %w", f.TradeID, f.TradeItemID, f.BaseTokenKey, err)
	}
	if _, err := ParseAssetKey(f.QuoteTokenKey); err != nil {
		return fmt.Errorf("fill %d/%d quote token key %q: %w", f.TradeID, f.TradeItemID, f.QuoteTokenKey, err)
	}
	return nil
}
