package model

import (
	"github.com/rs/zerolog"
)

// FillProcessor runs an operator's candidate fills through the settlement
// validator against one balance snapshot. Accepted fills update the
// working snapshot so later candidates are checked against the state the
// earlier ones would leave behind; rejected fills are logged with their
// reason and skipped, never aborting the loop.
type FillProcessor struct {
	validator *SettlementValidator
	log       zerolog.Logger
}

func NewFillProcessor(validator *SettlementValidator, log zerolog.Logger) *FillProcessor {
	return &FillProcessor{validator: validator, log: log}
}

// Process returns the accepted fills in input order and the balance sheet
// after applying them. The input snapshot is not mutated.
func (p *FillProcessor) Process(fills []*Fill, balances BalanceSheet) ([]*Fill, BalanceSheet) {
	accepted := make([]*Fill, 0, len(fills))
	working := balances

	for _, fill := range fills {
		next, rejection := p.validator.ValidateFill(fill, working)
		if rejection != nil {
			event := p.log.Warn().
				Str("reason", string(rejection.Reason)).
				Str("detail", rejection.Detail)
			if fill != nil {
				event = event.
					Uint64("trade_id", fill.TradeID).
					Uint64("trade_item_id", fill.TradeItemID)
			}
			event.Msg("fill rejected")
			continue
		}

		p.log.Info().
			Uint64("trade_id", fill.TradeID).
			Uint64("trade_item_id", fill.TradeItemID).
			Str("base_amount", fill.BaseAmount.String()).
			Str("quote_amount", fill.QuoteAmount.String()).
			Msg("fill accepted")

		accepted = append(accepted, fill)
		working = next
	}

	return accepted, working
}
