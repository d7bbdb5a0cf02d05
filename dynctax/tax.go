// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import "math/big"

const (
	// BasisPoints is the bps denominator for every rate in this module.
	BasisPoints = 10_000

	// SellRecipientBps is the fixed recipient slice of a sell charge. The
	// burn slice grows with realized loss on top of it.
	SellRecipientBps = 300

	// MaxBuyTaxBps caps the configurable buy rate at 100%.
	MaxBuyTaxBps = BasisPoints
)

var (
	bpsDenominator    = big.NewInt(BasisPoints)
	sellRecipientRate = big.NewInt(SellRecipientBps)
)

// bpsShare floors amount * bps / 10_000.
func bpsShare(amount, bps *big.Int) *big.Int {
	share := new(big.Int).Mul(amount, bps)
	return share.Div(share, bpsDenominator)
}

// BuyTax returns the flat-rate buy charge against the specified amount's
// magnitude.
func BuyTax(specifiedAmount *big.Int, buyTaxBps uint64) *big.Int {
	if specifiedAmount == nil || buyTaxBps == 0 {
		return new(big.Int)
	}
	basis := new(big.Int).Abs(specifiedAmount)
	return bpsShare(basis, new(big.Int).SetUint64(buyTaxBps))
}

// SellLossBps floors the drop from last to current as basis points of
// last. It is zero when no checkpoint is set or the price has not fallen.
func SellLossBps(lastPriceFixed, currentPriceFixed *big.Int) uint64 {
	if lastPriceFixed == nil || lastPriceFixed.Sign() <= 0 {
		return 0
	}
	if currentPriceFixed == nil {
		currentPriceFixed = new(big.Int)
	}
	if currentPriceFixed.Cmp(lastPriceFixed) >= 0 {
		return 0
	}

	drop := new(big.Int).Sub(lastPriceFixed, currentPriceFixed)
	drop.Mul(drop, bpsDenominator)
	drop.Div(drop, lastPriceFixed)
	return drop.Uint64()
}

// SellTax splits a sell charge into its recipient and burn components,
// both floored against the specified amount's magnitude. Both are zero
// unless a checkpoint is recorded and the current price sits strictly
// below it; the recipient slice is then the fixed SellRecipientBps and
// the burn slice covers whatever realized loss exceeds that.
func SellTax(specifiedAmount, lastPriceFixed, currentPriceFixed *big.Int) (recvAmount, burnAmount *big.Int) {
	recvAmount, burnAmount = new(big.Int), new(big.Int)
	if specifiedAmount == nil {
		return recvAmount, burnAmount
	}
	if lastPriceFixed == nil || lastPriceFixed.Sign() <= 0 {
		return recvAmount, burnAmount
	}
	if currentPriceFixed == nil {
		currentPriceFixed = new(big.Int)
	}
	if currentPriceFixed.Cmp(lastPriceFixed) >= 0 {
		return recvAmount, burnAmount
	}

	basis := new(big.Int).Abs(specifiedAmount)
	recvAmount = bpsShare(basis, sellRecipientRate)
	if lossBps := SellLossBps(lastPriceFixed, currentPriceFixed); lossBps > SellRecipientBps {
		burnAmount = bpsShare(basis, new(big.Int).SetUint64(lossBps-SellRecipientBps))
	}
	return recvAmount, burnAmount
}
