// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/levislee/pancakeswap-hooks-dynctax/contract"
	"github.com/levislee/pancakeswap-hooks-dynctax/dead"
	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
	"github.com/levislee/pancakeswap-hooks-dynctax/modules"
	"github.com/levislee/pancakeswap-hooks-dynctax/precompileconfig"
)

var _ contract.Configurator = (*configurator)(nil)
var _ contract.StatefulPrecompiledContract = (*TaxContract)(nil)
var _ precompileconfig.Config = (*Config)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "dynctaxConfig"

// ContractTaxAddress is where the tax hook is reachable.
var ContractTaxAddress = common.HexToAddress(TaxContractAddress)

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractTaxAddress,
	Contract:     TaxPrecompile,
	Configurator: &configurator{},
}

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

// SetJournalDatabase points the engine's journal at db. Call during VM
// initialization, before traffic, when the node database is available.
func SetJournalDatabase(db database.Database) {
	TaxPrecompile.engine.journal = NewRecorder(db, TaxPrecompile.engine.logger)
}

// SetLogger routes engine logging through logger. Call during VM
// initialization, before traffic.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	TaxPrecompile.engine.logger = logger
}

// Config errors
var (
	ErrNoTargetAsset     = errors.New("targetAsset must be set")
	ErrNoBuyFeeReceiver  = errors.New("buyFeeReceiver must be set")
	ErrNoSellFeeReceiver = errors.New("sellFeeReceiver must be set")
	ErrBuyTaxTooHigh     = errors.New("buyTaxBps must be <= 10000")
)

// Config activates the directional tax hook with its operating
// parameters. SellBurnReceiver defaults to the canonical dead address;
// a zero Admin leaves the admin surface open until setAdmin is called.
type Config struct {
	Upgrade precompileconfig.Upgrade `json:"upgrade"`

	TargetAsset           common.Address `json:"targetAsset"`
	BuyTaxBps             uint64         `json:"buyTaxBps"`
	RecordIntervalSeconds uint64         `json:"recordIntervalSeconds"`
	BuyFeeReceiver        common.Address `json:"buyFeeReceiver"`
	SellFeeReceiver       common.Address `json:"sellFeeReceiver"`
	SellBurnReceiver      common.Address `json:"sellBurnReceiver,omitempty"`
	Admin                 common.Address `json:"admin,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Timestamp() *uint64 {
	return c.Upgrade.Timestamp()
}

func (c *Config) IsDisabled() bool {
	return c.Upgrade.Disable
}

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.TargetAsset == other.TargetAsset &&
		c.BuyTaxBps == other.BuyTaxBps &&
		c.RecordIntervalSeconds == other.RecordIntervalSeconds &&
		c.BuyFeeReceiver == other.BuyFeeReceiver &&
		c.SellFeeReceiver == other.SellFeeReceiver &&
		c.SellBurnReceiver == other.SellBurnReceiver &&
		c.Admin == other.Admin
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	if c.TargetAsset == (common.Address{}) {
		return ErrNoTargetAsset
	}
	if c.BuyTaxBps > MaxBuyTaxBps {
		return ErrBuyTaxTooHigh
	}
	if c.BuyFeeReceiver == (common.Address{}) {
		return ErrNoBuyFeeReceiver
	}
	if c.SellFeeReceiver == (common.Address{}) {
		return ErrNoSellFeeReceiver
	}
	return nil
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

func (*configurator) Configure(
	chainConfig precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	blockContext contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}

	if !state.Exist(ContractTaxAddress) {
		state.CreateAccount(ContractTaxAddress)
	}

	burnReceiver := config.SellBurnReceiver
	if burnReceiver == (common.Address{}) {
		burnReceiver = dead.DeadAddress
	}

	stateDB := dex.WrapStateDB(state, blockContext)
	storeTaxParams(stateDB, TaxParams{
		TargetAsset:           dex.Currency{Address: config.TargetAsset},
		BuyTaxBps:             config.BuyTaxBps,
		RecordIntervalSeconds: config.RecordIntervalSeconds,
		BuyFeeReceiver:        config.BuyFeeReceiver,
		SellFeeReceiver:       config.SellFeeReceiver,
		SellBurnReceiver:      burnReceiver,
	})

	if config.Admin != (common.Address{}) {
		setAdminInternal(stateDB, config.Admin)
	}
	return nil
}
