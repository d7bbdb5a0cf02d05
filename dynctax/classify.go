// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
)

// TradeKind labels a swap relative to the taxed asset.
type TradeKind uint8

const (
	// TradeNone marks swaps on pools that do not carry the taxed asset.
	TradeNone TradeKind = iota
	// TradeBuy marks swaps whose output side is the taxed asset.
	TradeBuy
	// TradeSell marks swaps whose input side is the taxed asset.
	TradeSell
)

func (k TradeKind) String() string {
	switch k {
	case TradeBuy:
		return "buy"
	case TradeSell:
		return "sell"
	}
	return "none"
}

// Classification resolves a swap's direction with respect to the taxed
// asset and pins down which return slot an input-side charge belongs in.
type Classification struct {
	Kind              TradeKind
	IsExactInput      bool
	SpecifiedIsAsset0 bool
	InputAsset        dex.Currency
	OutputAsset       dex.Currency

	// ChargeSpecified is true when the taxed input leg coincides with the
	// amount slot the trader specified.
	ChargeSpecified bool
}

// Classify derives the trade direction of a swap against target. The
// second return is false for degenerate swaps (nil or zero specified
// amount), which are never assessed.
func Classify(key dex.PoolKey, params dex.SwapParams, target dex.Currency) (Classification, bool) {
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return Classification{}, false
	}

	c := Classification{
		IsExactInput: params.AmountSpecified.Sign() < 0,
	}
	c.SpecifiedIsAsset0 = params.ZeroForOne == c.IsExactInput
	c.InputAsset = params.InputCurrency(key)
	c.OutputAsset = params.OutputCurrency(key)

	// The taxed leg is always the input side. On an exact-input trade the
	// specified amount is that input, so the charge rides the specified
	// slot; on exact-output it rides the unspecified slot.
	c.ChargeSpecified = c.IsExactInput

	switch {
	case c.OutputAsset == target:
		c.Kind = TradeBuy
	case c.InputAsset == target:
		c.Kind = TradeSell
	}

	return c, true
}
