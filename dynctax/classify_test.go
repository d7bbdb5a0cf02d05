// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
)

// Shared fixtures for the package tests. The taxed asset sits on the
// asset1 side of the test pool unless a test says otherwise.
var (
	testAsset0 = dex.Currency{Address: common.HexToAddress("0x1000000000000000000000000000000000000001")}
	testAsset1 = dex.Currency{Address: common.HexToAddress("0x2000000000000000000000000000000000000002")}
	testOther  = dex.Currency{Address: common.HexToAddress("0x9000000000000000000000000000000000000009")}

	testTrader = common.HexToAddress("0x7777777777777777777777777777777777777777")
)

func taxPoolKey() dex.PoolKey {
	return dex.PoolKey{
		Currency0:   testAsset0,
		Currency1:   testAsset1,
		Fee:         dex.Fee030,
		TickSpacing: 60,
		Hooks:       ContractTaxAddress,
	}
}

func TestClassifyDirections(t *testing.T) {
	key := taxPoolKey()

	tests := []struct {
		name            string
		zeroForOne      bool
		amount          *big.Int
		target          dex.Currency
		wantKind        TradeKind
		wantExactInput  bool
		wantInput       dex.Currency
		wantChargeSpec  bool
		wantSpecAsset0  bool
	}{
		{
			name:           "exact input 0->1 buys asset1",
			zeroForOne:     true,
			amount:         big.NewInt(-1_000_000),
			target:         testAsset1,
			wantKind:       TradeBuy,
			wantExactInput: true,
			wantInput:      testAsset0,
			wantChargeSpec: true,
			wantSpecAsset0: true,
		},
		{
			name:           "exact output 0->1 buys asset1",
			zeroForOne:     true,
			amount:         big.NewInt(1_000_000),
			target:         testAsset1,
			wantKind:       TradeBuy,
			wantExactInput: false,
			wantInput:      testAsset0,
			wantChargeSpec: false,
			wantSpecAsset0: false,
		},
		{
			name:           "exact input 1->0 sells asset1",
			zeroForOne:     false,
			amount:         big.NewInt(-1_000_000),
			target:         testAsset1,
			wantKind:       TradeSell,
			wantExactInput: true,
			wantInput:      testAsset1,
			wantChargeSpec: true,
			wantSpecAsset0: false,
		},
		{
			name:           "exact output 1->0 sells asset1",
			zeroForOne:     false,
			amount:         big.NewInt(1_000_000),
			target:         testAsset1,
			wantKind:       TradeSell,
			wantExactInput: false,
			wantInput:      testAsset1,
			wantChargeSpec: false,
			wantSpecAsset0: true,
		},
		{
			name:           "exact input 0->1 sells asset0",
			zeroForOne:     true,
			amount:         big.NewInt(-1_000_000),
			target:         testAsset0,
			wantKind:       TradeSell,
			wantExactInput: true,
			wantInput:      testAsset0,
			wantChargeSpec: true,
			wantSpecAsset0: true,
		},
		{
			name:           "exact input 1->0 buys asset0",
			zeroForOne:     false,
			amount:         big.NewInt(-1_000_000),
			target:         testAsset0,
			wantKind:       TradeBuy,
			wantExactInput: true,
			wantInput:      testAsset1,
			wantChargeSpec: true,
			wantSpecAsset0: false,
		},
		{
			name:           "foreign pool is never assessed",
			zeroForOne:     true,
			amount:         big.NewInt(-1_000_000),
			target:         testOther,
			wantKind:       TradeNone,
			wantExactInput: true,
			wantInput:      testAsset0,
			wantChargeSpec: true,
			wantSpecAsset0: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, ok := Classify(key, dex.SwapParams{
				ZeroForOne:      tt.zeroForOne,
				AmountSpecified: tt.amount,
			}, tt.target)
			require.True(t, ok)

			require.Equal(t, tt.wantKind, cls.Kind)
			require.Equal(t, tt.wantExactInput, cls.IsExactInput)
			require.Equal(t, tt.wantInput, cls.InputAsset)
			require.Equal(t, tt.wantChargeSpec, cls.ChargeSpecified)
			require.Equal(t, tt.wantSpecAsset0, cls.SpecifiedIsAsset0)
		})
	}
}

func TestClassifyDegenerate(t *testing.T) {
	key := taxPoolKey()

	_, ok := Classify(key, dex.SwapParams{ZeroForOne: true, AmountSpecified: nil}, testAsset1)
	require.False(t, ok, "nil amount should not classify")

	_, ok = Classify(key, dex.SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(0)}, testAsset1)
	require.False(t, ok, "zero amount should not classify")
}

func TestClassifyInputOutputPairing(t *testing.T) {
	key := taxPoolKey()

	// Input and output always cover both pool sides, regardless of the
	// exact-input flag.
	for _, zeroForOne := range []bool{true, false} {
		for _, amount := range []*big.Int{big.NewInt(-5), big.NewInt(5)} {
			cls, ok := Classify(key, dex.SwapParams{
				ZeroForOne:      zeroForOne,
				AmountSpecified: amount,
			}, testAsset1)
			require.True(t, ok)
			require.NotEqual(t, cls.InputAsset, cls.OutputAsset)
			require.True(t, key.HasCurrency(cls.InputAsset))
			require.True(t, key.HasCurrency(cls.OutputAsset))
		}
	}
}

func TestTradeKindString(t *testing.T) {
	require.Equal(t, "buy", TradeBuy.String())
	require.Equal(t, "sell", TradeSell.String())
	require.Equal(t, "none", TradeNone.String())
}
