// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/levislee/pancakeswap-hooks-dynctax/contract"
	"github.com/levislee/pancakeswap-hooks-dynctax/modules"
	"github.com/levislee/pancakeswap-hooks-dynctax/precompileconfig"
)

var _ contract.Configurator = (*configurator)(nil)
var _ contract.StatefulPrecompiledContract = (*DEXContract)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "dexConfig"

// ContractPoolManagerAddress is where the DEX host precompile is installed.
var ContractPoolManagerAddress = common.HexToAddress(PoolManagerAddress)

// DEXPrecompile is the singleton instance
var DEXPrecompile = &DEXContract{}

// Module is the precompile module (PoolManager at 0x0400)
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractPoolManagerAddress,
	Contract:     DEXPrecompile,
	Configurator: &configurator{},
}

// Method selectors for PoolManager
const (
	SelectorInitialize      uint32 = 0x01000000 // initialize(PoolKey,uint160)
	SelectorSwap            uint32 = 0x02000000 // swap(PoolKey,SwapParams,bytes)
	SelectorAddLiquidity    uint32 = 0x03000000 // addLiquidity(PoolKey,uint256)
	SelectorDeposit         uint32 = 0x04000000 // deposit(Currency,uint256)
	SelectorSetDecimals     uint32 = 0x05000000 // setCurrencyDecimals(Currency,uint8)
	SelectorGetPool         uint32 = 0x06000000 // getPool(PoolKey)
	SelectorVaultBalanceOf  uint32 = 0x07000000 // vaultBalanceOf(address,Currency)
	SelectorGetCurrencyDecs uint32 = 0x08000000 // currencyDecimals(Currency)
)

// hooksDisabledKey marks hook dispatch as switched off chain-wide.
var hooksDisabledKey = makeStorageKey([]byte("conf"), []byte("hooksDisabled"))

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
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

	if !state.Exist(ContractPoolManagerAddress) {
		state.CreateAccount(ContractPoolManagerAddress)
	}

	if config.DisableHooks {
		state.SetState(ContractPoolManagerAddress, hooksDisabledKey, common.Hash{31: 1})
	}

	return nil
}

// Config implements the precompileconfig.Config interface
type Config struct {
	Upgrade      precompileconfig.Upgrade `json:"upgrade,omitempty"`
	DisableHooks bool                     `json:"disableHooks,omitempty"`
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
		c.DisableHooks == other.DisableHooks
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	return nil
}

// DEXContract implements the DEX precompile. It carries no state of its own;
// every call builds a fresh PoolManager over the live StateDB.
type DEXContract struct{}

// Run executes the precompile
func (c *DEXContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	if len(input) < 4 {
		return nil, suppliedGas, fmt.Errorf("input too short")
	}

	selector := binary.BigEndian.Uint32(input[:4])
	data := input[4:]

	switch selector {
	case SelectorInitialize:
		return c.runInitialize(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorSwap:
		return c.runSwap(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorAddLiquidity:
		return c.runAddLiquidity(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorDeposit:
		return c.runDeposit(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorSetDecimals:
		return c.runSetDecimals(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorGetPool:
		return c.runGetPool(accessibleState, data, suppliedGas)
	case SelectorVaultBalanceOf:
		return c.runVaultBalanceOf(accessibleState, data, suppliedGas)
	case SelectorGetCurrencyDecs:
		return c.runGetCurrencyDecimals(accessibleState, data, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}
}

func (c *DEXContract) runInitialize(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasPoolCreate)
	if err != nil {
		return nil, 0, err
	}

	// Expected format: PoolKey (66 bytes) + sqrtPriceX96 (32 bytes)
	if len(input) < 98 {
		return nil, remainingGas, fmt.Errorf("input too short")
	}

	key, err := PoolKeyFromBytes(input[:66])
	if err != nil {
		return nil, remainingGas, err
	}

	// A hooked pool may only be created once its hook module exists
	if key.Hooks != (common.Address{}) {
		if _, ok := modules.GetPrecompileModuleByAddress(key.Hooks); !ok {
			return nil, remainingGas, ErrHookNotRegistered
		}
	}

	sqrtPriceX96 := new(big.Int).SetBytes(input[66:98])

	stateDB := WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	tick, err := NewPoolManager().Initialize(stateDB, key, sqrtPriceX96)
	if err != nil {
		return nil, remainingGas, err
	}

	// Return tick as int24 (3 bytes, padded to 32)
	result := make([]byte, 32)
	copy(result[29:], int24ToBytes(tick))
	return result, remainingGas, nil
}

func (c *DEXContract) runSwap(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasSwap)
	if err != nil {
		return nil, 0, err
	}

	key, params, hookData, err := DecodeSwapInput(input)
	if err != nil {
		return nil, remainingGas, err
	}

	rawState := state.GetStateDB()
	stateDB := WrapStateDB(rawState, state.GetBlockContext())

	// Any failure past this point unwinds hook charges and partial settlement
	snapshot := rawState.Snapshot()

	hooked := key.Hooks != (common.Address{}) && !hooksDisabled(stateDB)
	var hookModule modules.Module
	if hooked {
		mod, ok := modules.GetPrecompileModuleByAddress(key.Hooks)
		if !ok {
			return nil, remainingGas, ErrHookNotRegistered
		}
		hookModule = mod
	}

	var feeOverride uint24
	if hooked && HasPermission(key.Hooks, HookBeforeSwap) {
		packed := PackBeforeSwapParams(caller, key, params, hookData)

		var retData []byte
		retData, remainingGas, err = hookModule.Contract.Run(
			state, ContractPoolManagerAddress, key.Hooks, packed, remainingGas, readOnly)
		if err != nil {
			rawState.RevertToSnapshot(snapshot)
			return nil, remainingGas, fmt.Errorf("beforeSwap hook: %w", err)
		}

		result, err := UnpackBeforeSwapReturn(retData)
		if err != nil {
			rawState.RevertToSnapshot(snapshot)
			return nil, remainingGas, err
		}
		feeOverride = result.FeeOverride

		// Hook charges move from the trader's escrow into the hook's
		if err := VaultWithdraw(stateDB, caller, params.SpecifiedCurrency(key), key.Hooks, result.SpecifiedCharge); err != nil {
			rawState.RevertToSnapshot(snapshot)
			return nil, remainingGas, err
		}
		if err := VaultWithdraw(stateDB, caller, params.UnspecifiedCurrency(key), key.Hooks, result.UnspecifiedCharge); err != nil {
			rawState.RevertToSnapshot(snapshot)
			return nil, remainingGas, err
		}
	}

	delta, err := NewPoolManager().Swap(stateDB, key, params, feeOverride)
	if err != nil {
		rawState.RevertToSnapshot(snapshot)
		return nil, remainingGas, err
	}

	if err := settleDelta(stateDB, caller, key, delta); err != nil {
		rawState.RevertToSnapshot(snapshot)
		return nil, remainingGas, err
	}

	if hooked && HasPermission(key.Hooks, HookAfterSwap) {
		packed := PackAfterSwapParams(caller, key, params, delta, hookData)

		var retData []byte
		retData, remainingGas, err = hookModule.Contract.Run(
			state, ContractPoolManagerAddress, key.Hooks, packed, remainingGas, readOnly)
		if err != nil {
			rawState.RevertToSnapshot(snapshot)
			return nil, remainingGas, fmt.Errorf("afterSwap hook: %w", err)
		}
		if err := UnpackAfterSwapReturn(retData); err != nil {
			rawState.RevertToSnapshot(snapshot)
			return nil, remainingGas, err
		}
	}

	// Return BalanceDelta as two int256 values
	result := make([]byte, 0, 64)
	result = putSigned(result, delta.Amount0)
	result = putSigned(result, delta.Amount1)
	return result, remainingGas, nil
}

func (c *DEXContract) runAddLiquidity(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasAddLiquidity)
	if err != nil {
		return nil, 0, err
	}

	// Expected format: PoolKey (66 bytes) + liquidityDelta (32 bytes)
	if len(input) < 98 {
		return nil, remainingGas, fmt.Errorf("input too short")
	}

	key, err := PoolKeyFromBytes(input[:66])
	if err != nil {
		return nil, remainingGas, err
	}
	liquidityDelta := new(big.Int).SetBytes(input[66:98])

	rawState := state.GetStateDB()
	stateDB := WrapStateDB(rawState, state.GetBlockContext())
	snapshot := rawState.Snapshot()

	delta, err := NewPoolManager().AddLiquidity(stateDB, key, liquidityDelta)
	if err != nil {
		rawState.RevertToSnapshot(snapshot)
		return nil, remainingGas, err
	}

	if err := settleDelta(stateDB, caller, key, delta); err != nil {
		rawState.RevertToSnapshot(snapshot)
		return nil, remainingGas, err
	}

	result := make([]byte, 0, 64)
	result = putSigned(result, delta.Amount0)
	result = putSigned(result, delta.Amount1)
	return result, remainingGas, nil
}

func (c *DEXContract) runDeposit(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasBalanceUpdate)
	if err != nil {
		return nil, 0, err
	}

	// Expected format: currency (20 bytes) + amount (32 bytes)
	if len(input) < 52 {
		return nil, remainingGas, fmt.Errorf("input too short")
	}

	currency := CurrencyFromBytes(input[0:20])
	amount := new(uint256.Int).SetBytes(input[20:52])

	stateDB := WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	if err := VaultDeposit(stateDB, caller, currency, amount); err != nil {
		return nil, remainingGas, err
	}

	balance := VaultBalance(stateDB, caller, currency).Bytes32()
	return balance[:], remainingGas, nil
}

func (c *DEXContract) runSetDecimals(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasRegistryWrite)
	if err != nil {
		return nil, 0, err
	}

	// Expected format: currency (20 bytes) + decimals (1 byte)
	if len(input) < 21 {
		return nil, remainingGas, fmt.Errorf("input too short")
	}

	currency := CurrencyFromBytes(input[0:20])
	decimals := input[20]

	stateDB := WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	if _, ok := CurrencyDecimals(stateDB, currency); ok {
		return nil, remainingGas, ErrDecimalsAlreadySet
	}
	SetCurrencyDecimals(stateDB, currency, decimals)

	return nil, remainingGas, nil
}

func (c *DEXContract) runGetPool(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasPoolLookup)
	if err != nil {
		return nil, 0, err
	}

	key, err := PoolKeyFromBytes(input)
	if err != nil {
		return nil, remainingGas, err
	}

	stateDB := WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	pool, err := NewPoolManager().GetPool(stateDB, key)
	if err != nil {
		return nil, remainingGas, err
	}

	return EncodePoolState(pool), remainingGas, nil
}

func (c *DEXContract) runVaultBalanceOf(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasPoolLookup)
	if err != nil {
		return nil, 0, err
	}

	// Expected format: owner (20 bytes) + currency (20 bytes)
	if len(input) < 40 {
		return nil, remainingGas, fmt.Errorf("input too short")
	}

	owner := common.BytesToAddress(input[0:20])
	currency := CurrencyFromBytes(input[20:40])

	stateDB := WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	balance := VaultBalance(stateDB, owner, currency).Bytes32()
	return balance[:], remainingGas, nil
}

func (c *DEXContract) runGetCurrencyDecimals(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasPoolLookup)
	if err != nil {
		return nil, 0, err
	}

	if len(input) < 20 {
		return nil, remainingGas, fmt.Errorf("input too short")
	}

	currency := CurrencyFromBytes(input[0:20])

	stateDB := WrapStateDB(state.GetStateDB(), state.GetBlockContext())
	result := make([]byte, 32)
	if decimals, ok := CurrencyDecimals(stateDB, currency); ok {
		result[0] = 1
		result[31] = decimals
	}
	return result, remainingGas, nil
}

// RequiredGas returns the gas required for the precompile input
func (c *DEXContract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasSwap
	}

	selector := binary.BigEndian.Uint32(input[:4])
	switch selector {
	case SelectorInitialize:
		return GasPoolCreate
	case SelectorSwap:
		return GasSwap
	case SelectorAddLiquidity:
		return GasAddLiquidity
	case SelectorDeposit:
		return GasBalanceUpdate
	case SelectorSetDecimals:
		return GasRegistryWrite
	case SelectorGetPool, SelectorVaultBalanceOf, SelectorGetCurrencyDecs:
		return GasPoolLookup
	default:
		return GasSwap
	}
}

// hooksDisabled reports whether hook dispatch is switched off chain-wide.
func hooksDisabled(stateDB StateDB) bool {
	return stateDB.GetState(poolManagerAddr, hooksDisabledKey) != (common.Hash{})
}

// settleDelta moves the swap legs through the trader's escrow: positive
// amounts are owed to the pool, negative amounts are owed to the trader.
func settleDelta(stateDB StateDB, trader common.Address, key PoolKey, delta BalanceDelta) error {
	legs := []struct {
		currency Currency
		amount   *big.Int
	}{
		{key.Currency0, delta.Amount0},
		{key.Currency1, delta.Amount1},
	}

	for _, leg := range legs {
		switch leg.amount.Sign() {
		case 1:
			owed, overflow := uint256.FromBig(leg.amount)
			if overflow {
				return ErrSettlementFailed
			}
			if err := VaultDebit(stateDB, trader, leg.currency, owed); err != nil {
				return err
			}
		case -1:
			received, overflow := uint256.FromBig(new(big.Int).Neg(leg.amount))
			if overflow {
				return ErrSettlementFailed
			}
			VaultCredit(stateDB, trader, leg.currency, received)
		}
	}
	return nil
}

// =========================================================================
// StateDB Bridging
// =========================================================================

// WrapStateDB adapts the EVM-facing contract.StateDB to the narrower
// surface the pool manager and hook modules work against. The block
// context supplies block number and time; a nil context reads as zero.
func WrapStateDB(stateDB contract.StateDB, blockContext contract.ConfigurationBlockContext) StateDB {
	return &stateAdapter{stateDB: stateDB, blockContext: blockContext}
}

type stateAdapter struct {
	stateDB      contract.StateDB
	blockContext contract.ConfigurationBlockContext
}

func (a *stateAdapter) GetState(addr common.Address, key common.Hash) common.Hash {
	return a.stateDB.GetState(addr, key)
}

func (a *stateAdapter) SetState(addr common.Address, key common.Hash, value common.Hash) {
	a.stateDB.SetState(addr, key, value)
}

func (a *stateAdapter) GetBalance(addr common.Address) *uint256.Int {
	return a.stateDB.GetBalance(addr)
}

func (a *stateAdapter) AddBalance(addr common.Address, amount *uint256.Int) {
	a.stateDB.AddBalance(addr, amount, nativeBalanceReason)
}

func (a *stateAdapter) SubBalance(addr common.Address, amount *uint256.Int) {
	a.stateDB.SubBalance(addr, amount, nativeBalanceReason)
}

func (a *stateAdapter) Exist(addr common.Address) bool {
	return a.stateDB.Exist(addr)
}

func (a *stateAdapter) CreateAccount(addr common.Address) {
	a.stateDB.CreateAccount(addr)
}

func (a *stateAdapter) GetBlockNumber() uint64 {
	if a.blockContext == nil || a.blockContext.Number() == nil {
		return 0
	}
	return a.blockContext.Number().Uint64()
}

func (a *stateAdapter) GetBlockTime() uint64 {
	if a.blockContext == nil {
		return 0
	}
	return a.blockContext.Timestamp()
}

// =========================================================================
// Call Encoding
// =========================================================================

// Fixed layout of the packed swap call after the selector.
const swapInputFixedLen = 66 + 1 + 32 + 32 // 131

func int24ToBytes(v int24) []byte {
	b := make([]byte, 3)
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
	return b
}

// DecodeSwapInput decodes swap input
func DecodeSwapInput(input []byte) (PoolKey, SwapParams, []byte, error) {
	if len(input) < swapInputFixedLen {
		return PoolKey{}, SwapParams{}, nil, fmt.Errorf("input too short for swap")
	}

	key, err := PoolKeyFromBytes(input[:66])
	if err != nil {
		return PoolKey{}, SwapParams{}, nil, err
	}

	params := SwapParams{
		ZeroForOne:        input[66] == 1,
		AmountSpecified:   readSigned(input[67:99]),
		SqrtPriceLimitX96: new(big.Int).SetBytes(input[99:131]),
	}

	hookData := input[swapInputFixedLen:]
	return key, params, hookData, nil
}

// PackInitializeInput builds a full initialize call, selector included.
func PackInitializeInput(key PoolKey, sqrtPriceX96 *big.Int) []byte {
	input := make([]byte, 0, 4+98)
	input = binary.BigEndian.AppendUint32(input, SelectorInitialize)
	input = append(input, key.ToBytes()...)

	price := make([]byte, 32)
	sqrtPriceX96.FillBytes(price)
	return append(input, price...)
}

// PackSwapInput builds a full swap call, selector included.
func PackSwapInput(key PoolKey, params SwapParams, hookData []byte) []byte {
	input := make([]byte, 0, 4+swapInputFixedLen+len(hookData))
	input = binary.BigEndian.AppendUint32(input, SelectorSwap)
	input = append(input, key.ToBytes()...)

	if params.ZeroForOne {
		input = append(input, 1)
	} else {
		input = append(input, 0)
	}
	input = putSigned(input, params.AmountSpecified)

	limit := make([]byte, 32)
	if params.SqrtPriceLimitX96 != nil {
		params.SqrtPriceLimitX96.FillBytes(limit)
	}
	input = append(input, limit...)

	return append(input, hookData...)
}

// PackAddLiquidityInput builds a full addLiquidity call, selector included.
func PackAddLiquidityInput(key PoolKey, liquidityDelta *big.Int) []byte {
	input := make([]byte, 0, 4+98)
	input = binary.BigEndian.AppendUint32(input, SelectorAddLiquidity)
	input = append(input, key.ToBytes()...)

	amount := make([]byte, 32)
	liquidityDelta.FillBytes(amount)
	return append(input, amount...)
}

// PackDepositInput builds a full deposit call, selector included.
func PackDepositInput(currency Currency, amount *uint256.Int) []byte {
	input := make([]byte, 0, 4+52)
	input = binary.BigEndian.AppendUint32(input, SelectorDeposit)
	input = append(input, currency.ToBytes()...)

	word := amount.Bytes32()
	return append(input, word[:]...)
}

// PackSetDecimalsInput builds a full setCurrencyDecimals call, selector included.
func PackSetDecimalsInput(currency Currency, decimals uint8) []byte {
	input := make([]byte, 0, 4+21)
	input = binary.BigEndian.AppendUint32(input, SelectorSetDecimals)
	input = append(input, currency.ToBytes()...)
	return append(input, decimals)
}

// PackVaultBalanceInput builds a full vaultBalanceOf call, selector included.
func PackVaultBalanceInput(owner common.Address, currency Currency) []byte {
	input := make([]byte, 0, 4+40)
	input = binary.BigEndian.AppendUint32(input, SelectorVaultBalanceOf)
	input = append(input, owner.Bytes()...)
	return append(input, currency.ToBytes()...)
}

// EncodePoolState encodes pool state for return
func EncodePoolState(pool *Pool) []byte {
	result := make([]byte, 160)
	pool.SqrtPriceX96.FillBytes(result[0:32])
	binary.BigEndian.PutUint32(result[32:36], uint32(pool.Tick))
	pool.Liquidity.FillBytes(result[64:96])
	pool.FeeGrowth0X128.FillBytes(result[96:128])
	pool.FeeGrowth1X128.FillBytes(result[128:160])
	return result
}
