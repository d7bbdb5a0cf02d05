// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/levislee/pancakeswap-hooks-dynctax/dead"
	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
	"github.com/levislee/pancakeswap-hooks-dynctax/modules"
	"github.com/levislee/pancakeswap-hooks-dynctax/precompileconfig"
	"github.com/levislee/pancakeswap-hooks-dynctax/testutils"
)

func validConfig() *Config {
	return &Config{
		TargetAsset:           testAsset1.Address,
		BuyTaxBps:             200,
		RecordIntervalSeconds: 600,
		BuyFeeReceiver:        buyFeeReceiver,
		SellFeeReceiver:       sellFeeReceiver,
	}
}

func TestModuleRegistration(t *testing.T) {
	mod, ok := modules.GetPrecompileModuleByAddress(ContractTaxAddress)
	require.True(t, ok, "the tax hook should register at its reserved address")
	require.Equal(t, ConfigKey, mod.ConfigKey)

	mod, ok = modules.GetPrecompileModule(ConfigKey)
	require.True(t, ok)
	require.Equal(t, ContractTaxAddress, mod.Address)
}

func TestConfigVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "missing target asset",
			mutate:  func(c *Config) { c.TargetAsset = common.Address{} },
			wantErr: ErrNoTargetAsset,
		},
		{
			name:    "buy tax over cap",
			mutate:  func(c *Config) { c.BuyTaxBps = 10_001 },
			wantErr: ErrBuyTaxTooHigh,
		},
		{
			name:    "buy tax at cap",
			mutate:  func(c *Config) { c.BuyTaxBps = 10_000 },
			wantErr: nil,
		},
		{
			name:    "missing buy fee receiver",
			mutate:  func(c *Config) { c.BuyFeeReceiver = common.Address{} },
			wantErr: ErrNoBuyFeeReceiver,
		},
		{
			name:    "missing sell fee receiver",
			mutate:  func(c *Config) { c.SellFeeReceiver = common.Address{} },
			wantErr: ErrNoSellFeeReceiver,
		},
		{
			// The burn sink has a canonical default
			name:    "missing burn receiver is fine",
			mutate:  func(c *Config) { c.SellBurnReceiver = common.Address{} },
			wantErr: nil,
		},
		{
			name:    "zero interval disables recording but verifies",
			mutate:  func(c *Config) { c.RecordIntervalSeconds = 0 },
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			require.Equal(t, tt.wantErr, cfg.Verify(nil))
		})
	}
}

func TestConfigEqual(t *testing.T) {
	base := validConfig()

	require.True(t, base.Equal(validConfig()))
	require.False(t, base.Equal(nil))
	require.False(t, base.Equal(&dex.Config{}), "foreign config types never compare equal")

	mutations := []func(*Config){
		func(c *Config) { c.TargetAsset = testAsset0.Address },
		func(c *Config) { c.BuyTaxBps = 300 },
		func(c *Config) { c.RecordIntervalSeconds = 0 },
		func(c *Config) { c.BuyFeeReceiver = sellFeeReceiver },
		func(c *Config) { c.SellFeeReceiver = buyFeeReceiver },
		func(c *Config) { c.SellBurnReceiver = buyFeeReceiver },
		func(c *Config) { c.Admin = buyFeeReceiver },
		func(c *Config) {
			ts := uint64(100)
			c.Upgrade = precompileconfig.Upgrade{BlockTimestamp: &ts}
		},
	}
	for _, mutate := range mutations {
		other := validConfig()
		mutate(other)
		require.False(t, base.Equal(other))
	}
}

func TestConfigKeyAndTimestamp(t *testing.T) {
	cfg := validConfig()
	require.Equal(t, ConfigKey, cfg.Key())
	require.Nil(t, cfg.Timestamp())
	require.False(t, cfg.IsDisabled())

	ts := uint64(1_700_000_000)
	cfg.Upgrade = precompileconfig.Upgrade{BlockTimestamp: &ts}
	require.Equal(t, &ts, cfg.Timestamp())

	cfg.Upgrade.Disable = true
	require.True(t, cfg.IsDisabled())
}

func TestMakeConfig(t *testing.T) {
	cfg := (&configurator{}).MakeConfig()
	require.IsType(t, &Config{}, cfg)
}

func TestConfigurePersistsParams(t *testing.T) {
	state := testutils.NewMockAccessibleState()

	require.NoError(t, (&configurator{}).Configure(nil, validConfig(), state.GetStateDB(), state.GetBlockContext()))

	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	params, ok := loadTaxParams(stateDB)
	require.True(t, ok)
	require.Equal(t, testAsset1, params.TargetAsset)
	require.Equal(t, uint64(200), params.BuyTaxBps)
	require.Equal(t, uint64(600), params.RecordIntervalSeconds)
	require.Equal(t, buyFeeReceiver, params.BuyFeeReceiver)
	require.Equal(t, sellFeeReceiver, params.SellFeeReceiver)
	require.Equal(t, dead.DeadAddress, params.SellBurnReceiver,
		"an omitted burn receiver should default to the canonical dead address")

	// No admin configured: the admin surface stays open
	require.Equal(t, common.Address{}, getAdmin(stateDB))
	require.True(t, isAdmin(stateDB, testTrader))
}

func TestConfigureWithExplicitReceivers(t *testing.T) {
	state := testutils.NewMockAccessibleState()

	cfg := validConfig()
	cfg.SellBurnReceiver = sellBurnReceiver
	cfg.Admin = testTrader
	require.NoError(t, (&configurator{}).Configure(nil, cfg, state.GetStateDB(), state.GetBlockContext()))

	stateDB := dex.WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	params, ok := loadTaxParams(stateDB)
	require.True(t, ok)
	require.Equal(t, sellBurnReceiver, params.SellBurnReceiver)

	require.Equal(t, testTrader, getAdmin(stateDB))
	require.True(t, isAdmin(stateDB, testTrader))
	require.False(t, isAdmin(stateDB, buyFeeReceiver))
}

func TestConfigureRejectsForeignConfig(t *testing.T) {
	state := testutils.NewMockAccessibleState()
	err := (&configurator{}).Configure(nil, &dex.Config{}, state.GetStateDB(), state.GetBlockContext())
	require.Error(t, err)
}
