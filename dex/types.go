// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dex implements the Uniswap v4-style DEX host precompile the swap
// hook modules plug into. It provides the singleton pool manager, pool state
// persistence, a vault escrow ledger for hook charges, the currency decimals
// registry, and the packed call formats used to dispatch beforeSwap and
// afterSwap to registered hook precompiles.
package dex

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// PoolManagerAddress is the fixed address of the DEX host singleton. Pool
// state, vault balances, and the decimals registry are all stored under it.
const PoolManagerAddress = "0x0400000000000000000000000000000000000000"

// Gas costs for host operations
const (
	GasPoolCreate     uint64 = 50_000 // Create new pool
	GasSwap           uint64 = 10_000 // Single swap
	GasAddLiquidity   uint64 = 20_000 // Add liquidity
	GasHookCall       uint64 = 3_000  // Hook invocation
	GasBalanceUpdate  uint64 = 500    // Balance delta update
	GasSettlement     uint64 = 8_000  // Final settlement
	GasPoolLookup     uint64 = 100    // Pool state lookup
	GasRegistryWrite  uint64 = 5_000  // Decimals registry write
	GasNativeTransfer uint64 = 2_100  // Native LUX transfer
)

// Pool fee tiers (basis points)
const (
	Fee001 uint24 = 100    // 0.01% - stablecoins
	Fee005 uint24 = 500    // 0.05% - stable pairs
	Fee030 uint24 = 3000   // 0.30% - standard
	Fee100 uint24 = 10000  // 1.00% - exotic pairs
	FeeMax uint24 = 100000 // 10% max fee
)

// Tick spacing for different fee tiers
const (
	TickSpacing001 int24 = 1
	TickSpacing005 int24 = 10
	TickSpacing030 int24 = 60
	TickSpacing100 int24 = 200
)

// Hook flags (bitmap for hook capabilities)
type HookFlags uint16

const (
	HookBeforeInitialize HookFlags = 1 << iota
	HookAfterInitialize
	HookBeforeAddLiquidity
	HookAfterAddLiquidity
	HookBeforeRemoveLiquidity
	HookAfterRemoveLiquidity
	HookBeforeSwap
	HookAfterSwap
	HookBeforeDonate
	HookAfterDonate
	HookBeforeFlash
	HookAfterFlash
)

// Currency represents a token (native or ERC20)
// Address(0) represents native LUX
type Currency struct {
	Address common.Address
}

// NativeCurrency represents native LUX (no wrapping needed)
var NativeCurrency = Currency{Address: common.Address{}}

// IsNative returns true if this currency is native LUX
func (c Currency) IsNative() bool {
	return c.Address == common.Address{}
}

// ToBytes serializes currency for storage
func (c Currency) ToBytes() []byte {
	return c.Address.Bytes()
}

// CurrencyFromBytes deserializes currency from storage
func CurrencyFromBytes(data []byte) Currency {
	return Currency{Address: common.BytesToAddress(data)}
}

// PoolKey uniquely identifies a pool
// Sorted by currency address (currency0 < currency1)
type PoolKey struct {
	Currency0   Currency       // Lower address token
	Currency1   Currency       // Higher address token
	Fee         uint24         // Fee in basis points
	TickSpacing int24          // Tick spacing for concentrated liquidity
	Hooks       common.Address // Hook contract address (zero = no hooks)
}

// ID computes the unique pool identifier
func (pk PoolKey) ID() [32]byte {
	h := blake3.New()
	h.Write(pk.Currency0.ToBytes())
	h.Write(pk.Currency1.ToBytes())

	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], uint32(pk.Fee))
	h.Write(feeBytes[1:]) // uint24

	var tickBytes [4]byte
	binary.BigEndian.PutUint32(tickBytes[:], uint32(pk.TickSpacing))
	h.Write(tickBytes[1:]) // int24

	h.Write(pk.Hooks.Bytes())

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// ToBytes serializes pool key for storage
func (pk PoolKey) ToBytes() []byte {
	data := make([]byte, 20+20+3+3+20) // 66 bytes
	copy(data[0:20], pk.Currency0.ToBytes())
	copy(data[20:40], pk.Currency1.ToBytes())

	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], uint32(pk.Fee))
	copy(data[40:43], feeBytes[1:])

	var tickBytes [4]byte
	binary.BigEndian.PutUint32(tickBytes[:], uint32(pk.TickSpacing))
	copy(data[43:46], tickBytes[1:])

	copy(data[46:66], pk.Hooks.Bytes())
	return data[:66]
}

// PoolKeyFromBytes deserializes pool key from storage
func PoolKeyFromBytes(data []byte) (PoolKey, error) {
	if len(data) < 66 {
		return PoolKey{}, errors.New("invalid pool key data length")
	}
	pk := PoolKey{}
	pk.Currency0 = CurrencyFromBytes(data[0:20])
	pk.Currency1 = CurrencyFromBytes(data[20:40])

	var feeBytes [4]byte
	copy(feeBytes[1:], data[40:43])
	pk.Fee = uint24(binary.BigEndian.Uint32(feeBytes[:]))

	var tickBytes [4]byte
	copy(tickBytes[1:], data[43:46])
	pk.TickSpacing = int24(binary.BigEndian.Uint32(tickBytes[:]))

	pk.Hooks = common.BytesToAddress(data[46:66])
	return pk, nil
}

// HasCurrency returns true if the pool holds the given currency on either side.
func (pk PoolKey) HasCurrency(c Currency) bool {
	return pk.Currency0 == c || pk.Currency1 == c
}

// CounterCurrency returns the pool currency paired against c. The second
// return is false when c is not in the pool.
func (pk PoolKey) CounterCurrency(c Currency) (Currency, bool) {
	switch c {
	case pk.Currency0:
		return pk.Currency1, true
	case pk.Currency1:
		return pk.Currency0, true
	}
	return Currency{}, false
}

// BalanceDelta represents the net token changes during a transaction
// Uses signed 128-bit integers for amount0 and amount1
// Positive = owed to the pool, Negative = owed to the user
type BalanceDelta struct {
	Amount0 *big.Int // Currency0 delta (positive = user owes pool)
	Amount1 *big.Int // Currency1 delta (positive = user owes pool)
}

// NewBalanceDelta creates a new balance delta
func NewBalanceDelta(amount0, amount1 *big.Int) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Set(amount0),
		Amount1: new(big.Int).Set(amount1),
	}
}

// ZeroBalanceDelta returns a zero balance delta
func ZeroBalanceDelta() BalanceDelta {
	return BalanceDelta{
		Amount0: big.NewInt(0),
		Amount1: big.NewInt(0),
	}
}

// Add combines two balance deltas
func (bd BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Add(bd.Amount0, other.Amount0),
		Amount1: new(big.Int).Add(bd.Amount1, other.Amount1),
	}
}

// Sub subtracts another balance delta
func (bd BalanceDelta) Sub(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Sub(bd.Amount0, other.Amount0),
		Amount1: new(big.Int).Sub(bd.Amount1, other.Amount1),
	}
}

// Negate inverts the balance delta signs
func (bd BalanceDelta) Negate() BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Neg(bd.Amount0),
		Amount1: new(big.Int).Neg(bd.Amount1),
	}
}

// IsZero returns true if both amounts are zero
func (bd BalanceDelta) IsZero() bool {
	return bd.Amount0.Sign() == 0 && bd.Amount1.Sign() == 0
}

// Pool represents the state of a liquidity pool
type Pool struct {
	SqrtPriceX96   *big.Int // sqrt(price) * 2^96 (Q64.96)
	Tick           int24    // Current tick
	Liquidity      *big.Int // Total liquidity (L)
	FeeGrowth0X128 *big.Int // Fee growth for currency0 (Q128.128)
	FeeGrowth1X128 *big.Int // Fee growth for currency1 (Q128.128)
	ProtocolFees0  *big.Int // Accumulated protocol fees currency0
	ProtocolFees1  *big.Int // Accumulated protocol fees currency1
}

// IsInitialized returns true if the pool has been initialized
func (p *Pool) IsInitialized() bool {
	return p.SqrtPriceX96 != nil && p.SqrtPriceX96.Sign() > 0
}

// NewPool creates a new uninitialized pool
func NewPool() *Pool {
	return &Pool{
		SqrtPriceX96:   big.NewInt(0),
		Tick:           0,
		Liquidity:      big.NewInt(0),
		FeeGrowth0X128: big.NewInt(0),
		FeeGrowth1X128: big.NewInt(0),
		ProtocolFees0:  big.NewInt(0),
		ProtocolFees1:  big.NewInt(0),
	}
}

// SwapParams contains parameters for a swap
type SwapParams struct {
	ZeroForOne        bool     // true = swap currency0 for currency1
	AmountSpecified   *big.Int // Negative = exact input, Positive = exact output
	SqrtPriceLimitX96 *big.Int // Price limit (sqrt(price) * 2^96)
}

// IsExactInput reports whether the trader fixed the input side.
func (p SwapParams) IsExactInput() bool {
	return p.AmountSpecified != nil && p.AmountSpecified.Sign() < 0
}

// SpecifiedCurrency returns the pool currency the specified amount denotes.
func (p SwapParams) SpecifiedCurrency(key PoolKey) Currency {
	if p.ZeroForOne == p.IsExactInput() {
		return key.Currency0
	}
	return key.Currency1
}

// UnspecifiedCurrency returns the pool currency opposite the specified slot.
func (p SwapParams) UnspecifiedCurrency(key PoolKey) Currency {
	if p.ZeroForOne == p.IsExactInput() {
		return key.Currency1
	}
	return key.Currency0
}

// InputCurrency returns the currency the trader pays in.
func (p SwapParams) InputCurrency(key PoolKey) Currency {
	if p.ZeroForOne {
		return key.Currency0
	}
	return key.Currency1
}

// OutputCurrency returns the currency the trader receives.
func (p SwapParams) OutputCurrency(key PoolKey) Currency {
	if p.ZeroForOne {
		return key.Currency1
	}
	return key.Currency0
}

// Errors - Core DEX
var (
	ErrPoolNotInitialized     = errors.New("pool not initialized")
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrPriceLimitReached      = errors.New("price limit reached")
	ErrInvalidFee             = errors.New("invalid fee")
	ErrCurrencyNotSorted      = errors.New("currencies not sorted")
	ErrInvalidHookResponse    = errors.New("invalid hook response")
	ErrSettlementFailed       = errors.New("settlement failed")
	ErrInvalidSqrtPrice       = errors.New("invalid sqrt price")
	ErrNoLiquidity            = errors.New("no liquidity in pool")
	ErrZeroSwapAmount         = errors.New("zero swap amount")
)

// Errors - Vault escrow and decimals registry
var (
	ErrInsufficientEscrow = errors.New("insufficient escrow balance")
	ErrNegativeCharge     = errors.New("negative hook charge")
	ErrDecimalsAlreadySet = errors.New("currency decimals already registered")
)

// Constants for math
var (
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	MinTick int24 = -887272
	MaxTick int24 = 887272

	MinSqrtRatio    = new(big.Int).SetUint64(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)

// uint24 type alias for fees
type uint24 = uint32

// int24 type alias for ticks
type int24 = int32
