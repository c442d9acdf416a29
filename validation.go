package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// BodyOfFills is the request body an operator posts to the relayer: the
// candidate fills of one matching round.
type BodyOfFills struct {
	Fills []*Fill `json:"fills" binding:"required,dive"`
}

// BodyOfUserOps is the request body carrying a signed batch for
// submission.
type BodyOfUserOps struct {
	UserOps []*UserOperation `json:"user_ops" binding:"required,dive"`
}

// Custom validation for Ethereum address using go-playground validator.
func validEthAddress(fl validator.FieldLevel) bool {
	address := fl.Field().String()
	return common.IsHexAddress(address)
}

// Custom validation for ChainID to ensure it's a positive *big.Int.
func validChainID(fl validator.FieldLevel) bool {
	chainID, ok := fl.Field().Interface().(*big.Int)
	return ok && chainID != nil && chainID.Sign() > 0
}

// Custom validation for the OrderType field.
func validOrderType(fl validator.FieldLevel) bool {
	return OrderType(fl.Field().Uint()).Valid()
}

// Custom validation for a canonical token key.
func validTokenKey(fl validator.FieldLevel) bool {
	_, err := ParseAssetKey(fl.Field().String())
	return err == nil
}

// NewValidator registers the custom validators with the gin binding
// engine.
func NewValidator() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("eth_addr", validEthAddress); err != nil {
			return fmt.Errorf("failed to register validator for eth_addr: %w", err)
		}

		if err := v.RegisterValidation("chain_id", validChainID); err != nil {
			return fmt.Errorf("failed to register validator for chain_id: %w", err)
		}

		if err := v.RegisterValidation("order_type", validOrderType); err != nil {
			return fmt.Errorf("failed to register validator for order_type: %w", err)
		}

		if err := v.RegisterValidation("token_key", validTokenKey); err != nil {
			return fmt.Errorf("failed to register validator for token_key: %w", err)
		}
	}
	return nil
}

// Validate checks an order's structural invariants before any digest is
// computed from it.
func (o *DexOrder) Validate() error {
	if !o.OrderType.Valid() {
		return fmt.Errorf("order %d: %w", o.OrderID, ErrUnknownOrderType)
	}
	if o.RequestAmount == nil || o.RequestAmount.Sign() <= 0 {
		return fmt.Errorf("order %d: %w", o.OrderID, ErrMissingAmount)
	}
	if o.OrderType.IsMarket() && o.Price != nil && o.Price.Sign() != 0 {
		return fmt.Errorf("order %d: %w", o.OrderID, ErrMarketOrderPrice)
	}
	if !o.OrderType.IsMarket() && (o.Price == nil || o.Price.Sign() <= 0) {
		return fmt.Errorf("order %d: limit order has no price", o.OrderID)
	}
	if len(o.Signature) != signatureLength {
		return fmt.Errorf("order %d: %w", o.OrderID, ErrInvalidSignatureLen)
	}
	return nil
}
