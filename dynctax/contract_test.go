// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/levislee/pancakeswap-hooks-dynctax/contract"
	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
	"github.com/levislee/pancakeswap-hooks-dynctax/testutils"
)

const testGas = uint64(1_000_000)

func swapParams(zeroForOne bool, amount int64) dex.SwapParams {
	return dex.SwapParams{ZeroForOne: zeroForOne, AmountSpecified: big.NewInt(amount)}
}

func TestTaxRunRejectsMalformedSelector(t *testing.T) {
	state := testutils.NewMockAccessibleState()

	_, _, err := TaxPrecompile.Run(state, testTrader, ContractTaxAddress, []byte{0x01, 0x02}, testGas, false)
	require.ErrorIs(t, err, contract.ErrInvalidSelector)

	_, _, err = TaxPrecompile.Run(state, testTrader, ContractTaxAddress, []byte{0xde, 0xad, 0xbe, 0xef}, testGas, false)
	require.ErrorIs(t, err, contract.ErrInvalidSelector)
}

func TestTaxRunHooksRejectForeignCaller(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	key := taxPoolKey()

	before := dex.PackBeforeSwapParams(testTrader, key, swapParams(true, -1_000_000), nil)
	_, _, err := TaxPrecompile.Run(state, testTrader, ContractTaxAddress, before, testGas, false)
	require.ErrorIs(t, err, ErrCallerNotPoolManager)

	after := dex.PackAfterSwapParams(testTrader, key, swapParams(true, -1_000_000),
		dex.NewBalanceDelta(big.NewInt(1_000_000), big.NewInt(-999_999)), nil)
	_, _, err = TaxPrecompile.Run(state, testTrader, ContractTaxAddress, after, testGas, false)
	require.ErrorIs(t, err, ErrCallerNotPoolManager)
}

func TestTaxRunReadOnlyRejectsWrites(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	key := taxPoolKey()

	inputs := [][]byte{
		dex.PackBeforeSwapParams(testTrader, key, swapParams(true, -1_000_000), nil),
		dex.PackAfterSwapParams(testTrader, key, swapParams(true, -1_000_000), dex.ZeroBalanceDelta(), nil),
		PackSetCheckpointInput(key, e18(1)),
		PackSetAdminInput(testTrader),
	}
	for _, input := range inputs {
		_, _, err := TaxPrecompile.Run(state, dex.ContractPoolManagerAddress, ContractTaxAddress, input, testGas, true)
		require.Error(t, err)
	}
}

func TestTaxRequiredGas(t *testing.T) {
	key := taxPoolKey()

	tests := []struct {
		name  string
		input []byte
		want  uint64
	}{
		{"beforeSwap", dex.PackBeforeSwapParams(testTrader, key, swapParams(true, -1), nil), GasAssess},
		{"afterSwap", dex.PackAfterSwapParams(testTrader, key, swapParams(true, -1), dex.ZeroBalanceDelta(), nil), GasSettle},
		{"priceInfo", PackPriceInfoInput(key), GasAdminRead},
		{"pendingOf", PackPendingOfInput(testTrader, key), GasAdminRead},
		{"missedSettlements", PackMissedSettlementsInput(), GasAdminRead},
		{"setCheckpoint", PackSetCheckpointInput(key, e18(1)), GasAdminWrite},
		{"setAdmin", PackSetAdminInput(testTrader), GasAdminWrite},
		{"truncated", []byte{0x01}, 0},
		{"unknown", []byte{0xde, 0xad, 0xbe, 0xef}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TaxPrecompile.RequiredGas(tt.input))
		})
	}
}

func TestSetAdminLifecycle(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())

	admin := common.HexToAddress("0x1234567890123456789012345678901234567890")
	intruder := common.HexToAddress("0xDEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEF")

	// While no admin is set, anyone may claim the slot
	_, _, err := TaxPrecompile.Run(state, intruder, ContractTaxAddress, PackSetAdminInput(admin), testGas, false)
	require.NoError(t, err)
	require.Equal(t, admin, getAdmin(stateDB))

	// From then on only the admin may rotate it
	_, _, err = TaxPrecompile.Run(state, intruder, ContractTaxAddress, PackSetAdminInput(intruder), testGas, false)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, admin, getAdmin(stateDB))

	_, _, err = TaxPrecompile.Run(state, admin, ContractTaxAddress, PackSetAdminInput(intruder), testGas, false)
	require.NoError(t, err)
	require.Equal(t, intruder, getAdmin(stateDB))
}

func TestSetCheckpointStampsBlockTime(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	state.Block.Time = 4242
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	key := taxPoolKey()

	_, _, err := TaxPrecompile.Run(state, testTrader, ContractTaxAddress,
		PackSetCheckpointInput(key, e18(3)), testGas, false)
	require.NoError(t, err)

	cp := ReadCheckpoint(stateDB, key.ID())
	require.True(t, cp.Set())
	require.Equal(t, uint64(4242), cp.SampleTime)
	require.Equal(t, 0, e18(3).Cmp(cp.PriceFixed))

	// Admin gating applies once an admin exists
	_, _, err = TaxPrecompile.Run(state, testTrader, ContractTaxAddress,
		PackSetAdminInput(testTrader), testGas, false)
	require.NoError(t, err)

	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	_, _, err = TaxPrecompile.Run(state, other, ContractTaxAddress,
		PackSetCheckpointInput(key, e18(4)), testGas, false)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestPriceInfoView(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	key := taxPoolKey()

	// Unconfigured module reports nothing
	ret, _, err := TaxPrecompile.Run(state, testTrader, ContractTaxAddress, PackPriceInfoInput(key), testGas, true)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 64), ret)

	storeTaxParams(stateDB, testTaxParams())
	_, err = dex.NewPoolManager().Initialize(stateDB, key, new(big.Int).Set(dex.Q96))
	require.NoError(t, err)
	WriteCheckpoint(stateDB, key.ID(), PriceCheckpoint{SampleTime: 1000, PriceFixed: e18(2)})

	ret, _, err = TaxPrecompile.Run(state, testTrader, ContractTaxAddress, PackPriceInfoInput(key), testGas, true)
	require.NoError(t, err)
	require.Len(t, ret, 64)
	require.Equal(t, 0, e18(1).Cmp(new(big.Int).SetBytes(ret[0:32])), "live price")
	require.Equal(t, 0, e18(2).Cmp(new(big.Int).SetBytes(ret[32:64])), "checkpointed price")
}

func TestPendingOfView(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	key := taxPoolKey()

	ret, _, err := TaxPrecompile.Run(state, testTrader, ContractTaxAddress,
		PackPendingOfInput(testTrader, key), testGas, true)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 96), ret, "no reservation reads as zero")

	Reserve(stateDB, testTrader, key.ID(), PendingSettlement{
		InputAsset: testAsset1,
		RecvAmount: big.NewInt(60_000),
		BurnAmount: big.NewInt(940_000),
	})

	ret, _, err = TaxPrecompile.Run(state, testTrader, ContractTaxAddress,
		PackPendingOfInput(testTrader, key), testGas, true)
	require.NoError(t, err)
	require.Equal(t, byte(1), ret[0])
	require.Equal(t, testAsset1.Address, common.BytesToAddress(ret[12:32]))
	require.Equal(t, 0, big.NewInt(60_000).Cmp(new(big.Int).SetBytes(ret[32:64])))
	require.Equal(t, 0, big.NewInt(940_000).Cmp(new(big.Int).SetBytes(ret[64:96])))
}

func TestMissedSettlementsView(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())

	bumpMissedSettlements(stateDB)
	bumpMissedSettlements(stateDB)

	ret, _, err := TaxPrecompile.Run(state, testTrader, ContractTaxAddress,
		PackMissedSettlementsInput(), testGas, true)
	require.NoError(t, err)
	require.Len(t, ret, 32)
	require.Equal(t, 0, big.NewInt(2).Cmp(new(big.Int).SetBytes(ret)))
}

// =========================================================================
// Host-Driven Flows
// =========================================================================

// hostSwap runs a swap through the DEX precompile so the tax hook is
// dispatched exactly as it would be on chain.
func hostSwap(t *testing.T, state *testutils.MockAccessibleState, trader common.Address, key dex.PoolKey, params dex.SwapParams) ([]byte, error) {
	t.Helper()
	ret, _, err := dex.DEXPrecompile.Run(state, trader, dex.ContractPoolManagerAddress,
		dex.PackSwapInput(key, params, nil), testGas, false)
	return ret, err
}

func setupHookedPool(t *testing.T, state *testutils.MockAccessibleState) (dex.PoolKey, dex.StateDB) {
	t.Helper()
	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	key := taxPoolKey()

	cfg := validConfig()
	cfg.SellBurnReceiver = sellBurnReceiver
	require.NoError(t, (&configurator{}).Configure(nil, cfg, state.GetStateDB(), state.GetBlockContext()))

	_, _, err := dex.DEXPrecompile.Run(state, testTrader, dex.ContractPoolManagerAddress,
		dex.PackInitializeInput(key, new(big.Int).Set(dex.Q96)), testGas, false)
	require.NoError(t, err)

	funding := uint256.MustFromBig(e18(2))
	dex.VaultCredit(stateDB, testTrader, testAsset0, funding)
	dex.VaultCredit(stateDB, testTrader, testAsset1, funding)

	_, _, err = dex.DEXPrecompile.Run(state, testTrader, dex.ContractPoolManagerAddress,
		dex.PackAddLiquidityInput(key, e18(1)), testGas, false)
	require.NoError(t, err)

	return key, stateDB
}

func TestHostBuyFlow(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	state.Block.Time = 1000
	key, stateDB := setupHookedPool(t, state)

	before0 := dex.VaultBalance(stateDB, testTrader, testAsset0).ToBig()

	// Exact-input buy of the taxed asset1: 200bps on 1_000_000 in
	ret, err := hostSwap(t, state, testTrader, key, swapParams(true, -1_000_000))
	require.NoError(t, err)
	require.Len(t, ret, 64)

	// The trader paid the swap input plus the 20_000 charge
	after0 := dex.VaultBalance(stateDB, testTrader, testAsset0).ToBig()
	paid := new(big.Int).Sub(before0, after0)
	require.Equal(t, 0, big.NewInt(1_020_000).Cmp(paid), "paid %s", paid)

	// The charge landed with the buy fee receiver, not the hook
	require.Equal(t, uint64(20_000), dex.VaultBalance(stateDB, buyFeeReceiver, testAsset0).Uint64())
	require.True(t, dex.VaultBalance(stateDB, ContractTaxAddress, testAsset0).IsZero())

	// First taxed trade seeded the pool's checkpoint
	cp := ReadCheckpoint(stateDB, key.ID())
	require.True(t, cp.Set())
	require.Equal(t, uint64(1000), cp.SampleTime)

	require.Zero(t, MissedSettlements(stateDB))
}

func TestHostSellFlow(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	state.Block.Time = 1000
	key, stateDB := setupHookedPool(t, state)

	// Pin the reference price at twice the live price: a 50% decline
	ret, _, err := TaxPrecompile.Run(state, testTrader, ContractTaxAddress,
		PackPriceInfoInput(key), testGas, true)
	require.NoError(t, err)
	current := new(big.Int).SetBytes(ret[0:32])
	require.True(t, current.Sign() > 0)

	last := new(big.Int).Lsh(current, 1)
	_, _, err = TaxPrecompile.Run(state, testTrader, ContractTaxAddress,
		PackSetCheckpointInput(key, last), testGas, false)
	require.NoError(t, err)

	before1 := dex.VaultBalance(stateDB, testTrader, testAsset1).ToBig()

	// Exact-input sell of 2_000_000 asset1: 300bps to the receiver,
	// 4700bps to the burn sink
	_, err = hostSwap(t, state, testTrader, key, swapParams(false, -2_000_000))
	require.NoError(t, err)

	after1 := dex.VaultBalance(stateDB, testTrader, testAsset1).ToBig()
	paid := new(big.Int).Sub(before1, after1)
	require.Equal(t, 0, big.NewInt(3_000_000).Cmp(paid),
		"swap input plus the full sell charge, got %s", paid)

	require.Equal(t, uint64(60_000), dex.VaultBalance(stateDB, sellFeeReceiver, testAsset1).Uint64())
	require.Equal(t, uint64(940_000), dex.VaultBalance(stateDB, sellBurnReceiver, testAsset1).Uint64())
	require.True(t, dex.VaultBalance(stateDB, ContractTaxAddress, testAsset1).IsZero())

	// The reservation was consumed and nothing was missed
	_, found := PendingOf(stateDB, testTrader, key.ID())
	require.False(t, found)
	require.Zero(t, MissedSettlements(stateDB))

	// Same-block settlement leaves the pinned checkpoint in place
	cp := ReadCheckpoint(stateDB, key.ID())
	require.Equal(t, 0, last.Cmp(cp.PriceFixed))
}

func TestHostSellWithoutDeclineIsFree(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	state.Block.Time = 1000
	key, stateDB := setupHookedPool(t, state)

	before1 := dex.VaultBalance(stateDB, testTrader, testAsset1).ToBig()

	// No checkpoint exists yet, so the sell carries no charge
	_, err := hostSwap(t, state, testTrader, key, swapParams(false, -2_000_000))
	require.NoError(t, err)

	after1 := dex.VaultBalance(stateDB, testTrader, testAsset1).ToBig()
	paid := new(big.Int).Sub(before1, after1)
	require.Equal(t, 0, big.NewInt(2_000_000).Cmp(paid), "only the swap input moves, got %s", paid)

	require.True(t, dex.VaultBalance(stateDB, sellFeeReceiver, testAsset1).IsZero())
	require.True(t, dex.VaultBalance(stateDB, sellBurnReceiver, testAsset1).IsZero())

	// The zero-charge sell reserved nothing, so settlement counts it as missed
	require.Equal(t, uint64(1), MissedSettlements(stateDB))
}

func TestHostRoundTripWorkedExample(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	state.Block.Time = 1000
	key, stateDB := setupHookedPool(t, state)

	// 200bps on a 1_000_000 exact-input buy quotes 20_000 in both
	// phases: the escrowed charge and the settled payout agree.
	_, err := hostSwap(t, state, testTrader, key, swapParams(true, -1_000_000))
	require.NoError(t, err)
	require.Equal(t, uint64(20_000), dex.VaultBalance(stateDB, buyFeeReceiver, testAsset0).Uint64())

	// A second identical buy doubles the receiver's take
	_, err = hostSwap(t, state, testTrader, key, swapParams(true, -1_000_000))
	require.NoError(t, err)
	require.Equal(t, uint64(40_000), dex.VaultBalance(stateDB, buyFeeReceiver, testAsset0).Uint64())

	// Hook escrow never accumulates dust across settlements
	require.True(t, dex.VaultBalance(stateDB, ContractTaxAddress, testAsset0).IsZero())
	require.True(t, dex.VaultBalance(stateDB, ContractTaxAddress, testAsset1).IsZero())
}
