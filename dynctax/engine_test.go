// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
	"github.com/levislee/pancakeswap-hooks-dynctax/testutils"
)

var (
	buyFeeReceiver   = common.HexToAddress("0xAAAA000000000000000000000000000000000001")
	sellFeeReceiver  = common.HexToAddress("0xBBBB000000000000000000000000000000000002")
	sellBurnReceiver = common.HexToAddress("0xCCCC000000000000000000000000000000000003")
)

func testTaxParams() TaxParams {
	return TaxParams{
		TargetAsset:           testAsset1,
		BuyTaxBps:             200,
		RecordIntervalSeconds: 600,
		BuyFeeReceiver:        buyFeeReceiver,
		SellFeeReceiver:       sellFeeReceiver,
		SellBurnReceiver:      sellBurnReceiver,
	}
}

func buyCall(amount int64) dex.BeforeSwapCall {
	return dex.BeforeSwapCall{
		Sender: testTrader,
		Key:    taxPoolKey(),
		Params: dex.SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(amount)},
	}
}

func sellCall(amount int64) dex.BeforeSwapCall {
	return dex.BeforeSwapCall{
		Sender: testTrader,
		Key:    taxPoolKey(),
		Params: dex.SwapParams{ZeroForOne: false, AmountSpecified: big.NewInt(amount)},
	}
}

func afterCallOf(call dex.BeforeSwapCall) dex.AfterSwapCall {
	return dex.AfterSwapCall{
		Sender: call.Sender,
		Key:    call.Key,
		Params: call.Params,
	}
}

func TestTaxParamsRoundTrip(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())

	_, ok := loadTaxParams(stateDB)
	require.False(t, ok, "fresh state should be unconfigured")

	want := testTaxParams()
	storeTaxParams(stateDB, want)

	got, ok := loadTaxParams(stateDB)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestBeforeTradeUnconfigured(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	engine := NewEngine(nil)

	result, err := engine.BeforeTrade(stateDB, buyCall(-1_000_000))
	require.NoError(t, err)
	require.Zero(t, result.SpecifiedCharge.Sign())
	require.Zero(t, result.UnspecifiedCharge.Sign())
	require.Zero(t, result.FeeOverride)
}

func TestBeforeTradeBuy(t *testing.T) {
	tests := []struct {
		name            string
		amount          int64
		wantSpecified   int64
		wantUnspecified int64
	}{
		{
			// Exact input: the charge rides the specified slot
			name:            "exact input charges specified side",
			amount:          -1_000_000,
			wantSpecified:   20_000,
			wantUnspecified: 0,
		},
		{
			// Exact output: the input side is the unspecified slot
			name:            "exact output charges unspecified side",
			amount:          1_000_000,
			wantSpecified:   0,
			wantUnspecified: 20_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := testutils.NewMockAccessibleState()
			stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
			storeTaxParams(stateDB, testTaxParams())
			engine := NewEngine(nil)

			result, err := engine.BeforeTrade(stateDB, buyCall(tt.amount))
			require.NoError(t, err)
			require.Equal(t, 0, big.NewInt(tt.wantSpecified).Cmp(result.SpecifiedCharge))
			require.Equal(t, 0, big.NewInt(tt.wantUnspecified).Cmp(result.UnspecifiedCharge))
			require.Zero(t, result.FeeOverride, "the assessment never overrides the LP fee")

			// Buys are settled from the recomputed charge, not a reservation
			_, found := PendingOf(stateDB, testTrader, taxPoolKey().ID())
			require.False(t, found)
		})
	}
}

func TestBeforeTradePassThrough(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())

	params := testTaxParams()
	params.TargetAsset = testOther
	storeTaxParams(stateDB, params)
	engine := NewEngine(nil)

	result, err := engine.BeforeTrade(stateDB, buyCall(-1_000_000))
	require.NoError(t, err)
	require.Zero(t, result.SpecifiedCharge.Sign())
	require.Zero(t, result.UnspecifiedCharge.Sign())
}

func TestBeforeTradeSell(t *testing.T) {
	newSellState := func(t *testing.T) (dex.StateDB, *Engine) {
		t.Helper()
		state := testutils.NewMockAccessibleState()
		stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
		storeTaxParams(stateDB, testTaxParams())

		_, err := dex.NewPoolManager().Initialize(stateDB, taxPoolKey(), new(big.Int).Set(dex.Q96))
		require.NoError(t, err)
		return stateDB, NewEngine(nil)
	}
	poolID := taxPoolKey().ID()

	t.Run("no checkpoint charges nothing", func(t *testing.T) {
		stateDB, engine := newSellState(t)

		result, err := engine.BeforeTrade(stateDB, sellCall(-2_000_000))
		require.NoError(t, err)
		require.Zero(t, result.SpecifiedCharge.Sign())
		require.Zero(t, result.UnspecifiedCharge.Sign())

		_, found := PendingOf(stateDB, testTrader, poolID)
		require.False(t, found, "a zero charge must not reserve")
	})

	t.Run("price decline reserves the tiered charge", func(t *testing.T) {
		stateDB, engine := newSellState(t)

		// Checkpoint at twice the live price: 50% loss
		WriteCheckpoint(stateDB, poolID, PriceCheckpoint{SampleTime: 500, PriceFixed: e18(2)})

		result, err := engine.BeforeTrade(stateDB, sellCall(-2_000_000))
		require.NoError(t, err)
		require.Equal(t, 0, big.NewInt(1_000_000).Cmp(result.SpecifiedCharge))
		require.Zero(t, result.UnspecifiedCharge.Sign())

		entry, found := PendingOf(stateDB, testTrader, poolID)
		require.True(t, found)
		require.Equal(t, testAsset1, entry.InputAsset)
		require.Equal(t, 0, big.NewInt(60_000).Cmp(entry.RecvAmount))
		require.Equal(t, 0, big.NewInt(940_000).Cmp(entry.BurnAmount))
	})

	t.Run("rising price charges nothing", func(t *testing.T) {
		stateDB, engine := newSellState(t)

		WriteCheckpoint(stateDB, poolID, PriceCheckpoint{SampleTime: 500, PriceFixed: new(big.Int).Div(e18(1), big.NewInt(2))})

		result, err := engine.BeforeTrade(stateDB, sellCall(-2_000_000))
		require.NoError(t, err)
		require.Zero(t, result.SpecifiedCharge.Sign())

		_, found := PendingOf(stateDB, testTrader, poolID)
		require.False(t, found)
	})

	t.Run("uninitialized pool passes through", func(t *testing.T) {
		state := testutils.NewMockAccessibleState()
		stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
		storeTaxParams(stateDB, testTaxParams())
		engine := NewEngine(nil)

		result, err := engine.BeforeTrade(stateDB, sellCall(-2_000_000))
		require.NoError(t, err)
		require.Zero(t, result.SpecifiedCharge.Sign())
		require.Zero(t, result.UnspecifiedCharge.Sign())
	})
}

func TestAfterTradeBuy(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	storeTaxParams(stateDB, testTaxParams())
	engine := NewEngine(nil)

	// The host escrowed the quoted charge into the hook's vault pre-swap
	dex.VaultCredit(stateDB, ContractTaxAddress, testAsset0, uint256.NewInt(20_000))

	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(buyCall(-1_000_000))))

	require.Equal(t, uint64(20_000), dex.VaultBalance(stateDB, buyFeeReceiver, testAsset0).Uint64())
	require.True(t, dex.VaultBalance(stateDB, ContractTaxAddress, testAsset0).IsZero(),
		"the hook vault should forward the whole charge")
}

func TestAfterTradeBuyUnfundedFails(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	storeTaxParams(stateDB, testTaxParams())
	engine := NewEngine(nil)

	err := engine.AfterTrade(stateDB, afterCallOf(buyCall(-1_000_000)))
	require.ErrorIs(t, err, dex.ErrInsufficientEscrow)
}

func TestAfterTradeZeroRateBuyIsNoOp(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())

	params := testTaxParams()
	params.BuyTaxBps = 0
	storeTaxParams(stateDB, params)
	engine := NewEngine(nil)

	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(buyCall(-1_000_000))))
	require.True(t, dex.VaultBalance(stateDB, buyFeeReceiver, testAsset0).IsZero())
}

func TestAfterTradeSell(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	storeTaxParams(stateDB, testTaxParams())
	engine := NewEngine(nil)
	poolID := taxPoolKey().ID()

	Reserve(stateDB, testTrader, poolID, PendingSettlement{
		InputAsset: testAsset1,
		RecvAmount: big.NewInt(60_000),
		BurnAmount: big.NewInt(940_000),
	})
	dex.VaultCredit(stateDB, ContractTaxAddress, testAsset1, uint256.NewInt(1_000_000))

	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(sellCall(-2_000_000))))

	require.Equal(t, uint64(60_000), dex.VaultBalance(stateDB, sellFeeReceiver, testAsset1).Uint64())
	require.Equal(t, uint64(940_000), dex.VaultBalance(stateDB, sellBurnReceiver, testAsset1).Uint64())
	require.True(t, dex.VaultBalance(stateDB, ContractTaxAddress, testAsset1).IsZero())

	// Settlement consumes the reservation
	_, found := PendingOf(stateDB, testTrader, poolID)
	require.False(t, found)
	require.Zero(t, MissedSettlements(stateDB))
}

func TestAfterTradeSellPartialFundingFails(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	storeTaxParams(stateDB, testTaxParams())
	engine := NewEngine(nil)
	poolID := taxPoolKey().ID()

	Reserve(stateDB, testTrader, poolID, PendingSettlement{
		InputAsset: testAsset1,
		RecvAmount: big.NewInt(60_000),
		BurnAmount: big.NewInt(940_000),
	})
	// Only the recipient slice is funded; the burn transfer must fail
	// and abort the trade for the host to revert.
	dex.VaultCredit(stateDB, ContractTaxAddress, testAsset1, uint256.NewInt(60_000))

	err := engine.AfterTrade(stateDB, afterCallOf(sellCall(-2_000_000)))
	require.ErrorIs(t, err, dex.ErrInsufficientEscrow)
}

func TestAfterTradeSellWithoutReservation(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	storeTaxParams(stateDB, testTaxParams())
	engine := NewEngine(nil)

	// A sell with no reservation settles as a no-op but is counted
	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(sellCall(-2_000_000))))
	require.Equal(t, uint64(1), MissedSettlements(stateDB))

	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(sellCall(-2_000_000))))
	require.Equal(t, uint64(2), MissedSettlements(stateDB))

	require.True(t, dex.VaultBalance(stateDB, sellFeeReceiver, testAsset1).IsZero())
}

func TestAfterTradeRecordsCheckpoint(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())

	params := testTaxParams()
	params.BuyTaxBps = 0 // isolate the recording path
	storeTaxParams(stateDB, params)
	engine := NewEngine(nil)
	poolID := taxPoolKey().ID()

	_, err := dex.NewPoolManager().Initialize(stateDB, taxPoolKey(), new(big.Int).Set(dex.Q96))
	require.NoError(t, err)

	// First trade on a pool with no sample records immediately
	state.Block.Time = 1000
	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(buyCall(-1_000_000))))
	cp := ReadCheckpoint(stateDB, poolID)
	require.True(t, cp.Set())
	require.Equal(t, uint64(1000), cp.SampleTime)
	require.Equal(t, 0, e18(1).Cmp(cp.PriceFixed))

	// Within the interval the sample is left alone
	state.Block.Time = 1599
	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(buyCall(-1_000_000))))
	require.Equal(t, uint64(1000), ReadCheckpoint(stateDB, poolID).SampleTime)

	// At the interval boundary it refreshes
	state.Block.Time = 1600
	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(buyCall(-1_000_000))))
	require.Equal(t, uint64(1600), ReadCheckpoint(stateDB, poolID).SampleTime)
}

func TestAfterTradeJournalsSettlements(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	storeTaxParams(stateDB, testTaxParams())

	engine := NewEngine(nil)
	engine.journal = NewRecorder(memdb.New(), nil)
	poolID := taxPoolKey().ID()

	dex.VaultCredit(stateDB, ContractTaxAddress, testAsset0, uint256.NewInt(20_000))
	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(buyCall(-1_000_000))))

	Reserve(stateDB, testTrader, poolID, PendingSettlement{
		InputAsset: testAsset1,
		RecvAmount: big.NewInt(60_000),
		BurnAmount: big.NewInt(940_000),
	})
	dex.VaultCredit(stateDB, ContractTaxAddress, testAsset1, uint256.NewInt(1_000_000))
	require.NoError(t, engine.AfterTrade(stateDB, afterCallOf(sellCall(-2_000_000))))

	records, err := engine.journal.Settlements()
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, TradeBuy, records[0].Kind)
	require.Equal(t, testTrader, records[0].Trader)
	require.Equal(t, testAsset0, records[0].Asset)
	require.Equal(t, 0, big.NewInt(20_000).Cmp(records[0].RecvAmount))

	require.Equal(t, TradeSell, records[1].Kind)
	require.Equal(t, poolID, records[1].PoolID)
	require.Equal(t, 0, big.NewInt(60_000).Cmp(records[1].RecvAmount))
	require.Equal(t, 0, big.NewInt(940_000).Cmp(records[1].BurnAmount))
}
