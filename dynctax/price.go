// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"math/big"

	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
)

// DefaultDecimals is assumed for currencies with no registered decimals.
const DefaultDecimals = 18

// Prices are carried as 1e18 fixed-point integers: the value of one whole
// unit of the taxed asset measured in whole units of its pool counterpart.
var (
	priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	q192       = new(big.Int).Lsh(big.NewInt(1), 192)
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// NormalizedPrice converts a pool's sqrtPriceX96 into the taxed asset's
// 1e18 fixed-point price. The raw ratio sqrtPriceX96^2 / 2^192 prices
// asset0 in asset1 units and is inverted when the taxed asset sits on the
// asset1 side. The decimal spread between the two currencies scales the
// numerator when decCounter >= decTarget and the denominator otherwise;
// the final division floors. Prices must fit one EVM word, so the result
// saturates instead of overflowing.
func NormalizedPrice(sqrtPriceX96 *big.Int, targetIsAsset0 bool, decTarget, decCounter uint8) *big.Int {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return new(big.Int)
	}

	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)

	var num, den *big.Int
	if targetIsAsset0 {
		num, den = squared, q192
	} else {
		num, den = q192, squared
	}

	num = new(big.Int).Mul(num, priceScale)
	if decCounter >= decTarget {
		num.Mul(num, pow10(decCounter-decTarget))
	} else {
		den = new(big.Int).Mul(den, pow10(decTarget-decCounter))
	}

	num.Div(num, den)
	if num.BitLen() > 256 {
		num.Set(maxUint256)
	}
	return num
}

// currencyDecimals looks up a currency's registered decimals, assuming
// DefaultDecimals when none were ever registered.
func currencyDecimals(stateDB dex.StateDB, c dex.Currency) uint8 {
	if d, ok := dex.CurrencyDecimals(stateDB, c); ok {
		return d
	}
	return DefaultDecimals
}

// PoolPriceFixed reads a pool's live sqrt price and normalizes it for the
// given taxed asset. The second return is false when the pool is
// uninitialized or does not carry the target at all.
func PoolPriceFixed(stateDB dex.StateDB, key dex.PoolKey, target dex.Currency) (*big.Int, bool) {
	counter, ok := key.CounterCurrency(target)
	if !ok {
		return new(big.Int), false
	}

	sqrtPrice, ok := dex.PoolSqrtPrice(stateDB, key.ID())
	if !ok {
		return new(big.Int), false
	}

	price := NormalizedPrice(
		sqrtPrice,
		key.Currency0 == target,
		currencyDecimals(stateDB, target),
		currencyDecimals(stateDB, counter),
	)
	return price, true
}
