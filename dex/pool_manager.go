// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/zeebo/blake3"
)

// StateDB interface for accessing and modifying EVM state
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)
	GetBlockNumber() uint64
	GetBlockTime() uint64
}

// Host singleton address as bytes
var poolManagerAddr = common.HexToAddress(PoolManagerAddress)

// Storage key prefixes for pool manager state
var (
	poolStatePrefix     = []byte("pool")
	poolLiquidityPrefix = []byte("pliq")
	vaultPrefix         = []byte("vblc")
	decimalsPrefix      = []byte("tdec")
)

// PoolManager implements the singleton DEX pool manager. All pools live in
// this single contract. Pool state persists in the StateDB under the host
// address; the in-memory map is a per-instance read cache only.
type PoolManager struct {
	// mu protects the pool cache
	mu sync.RWMutex

	// pools caches pool states by pool ID within one call context
	pools map[[32]byte]*Pool
}

// NewPoolManager creates a new pool manager instance
func NewPoolManager() *PoolManager {
	return &PoolManager{
		pools: make(map[[32]byte]*Pool),
	}
}

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// =========================================================================
// Pool Initialization
// =========================================================================

// Initialize creates and initializes a new pool
// Returns the tick corresponding to the starting price
func (pm *PoolManager) Initialize(
	stateDB StateDB,
	key PoolKey,
	sqrtPriceX96 *big.Int,
) (int24, error) {
	// Validate currencies are sorted
	if !pm.areCurrenciesSorted(key.Currency0, key.Currency1) {
		return 0, ErrCurrencyNotSorted
	}

	// Validate fee
	if key.Fee > FeeMax {
		return 0, ErrInvalidFee
	}

	// Validate sqrt price
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) > 0 {
		return 0, ErrInvalidSqrtPrice
	}

	poolId := key.ID()

	// Check if pool already exists
	pool := pm.getPool(stateDB, poolId)
	if pool.IsInitialized() {
		return 0, ErrPoolAlreadyInitialized
	}

	// Calculate initial tick from sqrt price
	tick := pm.sqrtPriceX96ToTick(sqrtPriceX96)

	pool.SqrtPriceX96 = new(big.Int).Set(sqrtPriceX96)
	pool.Tick = tick
	pool.Liquidity = big.NewInt(0)
	pool.FeeGrowth0X128 = big.NewInt(0)
	pool.FeeGrowth1X128 = big.NewInt(0)

	pm.setPool(stateDB, poolId, pool)

	return tick, nil
}

// AddLiquidity credits liquidity to a pool. The simplified host keeps a
// single pool-wide liquidity figure rather than per-position tick ranges;
// the returned delta is what the caller owes the pool on each side.
func (pm *PoolManager) AddLiquidity(
	stateDB StateDB,
	key PoolKey,
	liquidityDelta *big.Int,
) (BalanceDelta, error) {
	if liquidityDelta == nil || liquidityDelta.Sign() <= 0 {
		return ZeroBalanceDelta(), ErrInsufficientLiquidity
	}

	poolId := key.ID()
	pool := pm.getPool(stateDB, poolId)
	if !pool.IsInitialized() {
		return ZeroBalanceDelta(), ErrPoolNotInitialized
	}

	pool.Liquidity = new(big.Int).Add(pool.Liquidity, liquidityDelta)
	pm.setPool(stateDB, poolId, pool)

	half := new(big.Int).Div(liquidityDelta, big.NewInt(2))
	return NewBalanceDelta(half, half), nil
}

// =========================================================================
// Swap Execution
// =========================================================================

// Swap executes the swap math for a pool and persists the moved price.
// Hook dispatch and settlement are the contract layer's job; this method
// only mutates pool state and reports the trade's balance delta
// (positive = owed to the pool, negative = owed to the trader).
// A non-zero feeOverride replaces the pool's static LP fee for this swap.
func (pm *PoolManager) Swap(
	stateDB StateDB,
	key PoolKey,
	params SwapParams,
	feeOverride uint24,
) (BalanceDelta, error) {
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return ZeroBalanceDelta(), ErrZeroSwapAmount
	}

	poolId := key.ID()
	pool := pm.getPool(stateDB, poolId)

	if !pool.IsInitialized() {
		return ZeroBalanceDelta(), ErrPoolNotInitialized
	}
	if pool.Liquidity == nil || pool.Liquidity.Sign() <= 0 {
		return ZeroBalanceDelta(), ErrNoLiquidity
	}

	fee := key.Fee
	if feeOverride != 0 {
		fee = feeOverride
	}

	delta, newSqrtPrice, err := pm.executeSwap(pool, fee, params)
	if err != nil {
		return ZeroBalanceDelta(), err
	}

	// Enforce the trader's price limit when one was given
	if limit := params.SqrtPriceLimitX96; limit != nil && limit.Sign() > 0 {
		if params.ZeroForOne && newSqrtPrice.Cmp(limit) < 0 {
			return ZeroBalanceDelta(), ErrPriceLimitReached
		}
		if !params.ZeroForOne && newSqrtPrice.Cmp(limit) > 0 {
			return ZeroBalanceDelta(), ErrPriceLimitReached
		}
	}

	pool.SqrtPriceX96 = newSqrtPrice
	pool.Tick = pm.sqrtPriceX96ToTick(newSqrtPrice)
	pm.setPool(stateDB, poolId, pool)

	return delta, nil
}

// executeSwap performs the within-tick-range swap math. The price moves
// along the constant-liquidity curve; tick crossings are not modeled.
//
//	zeroForOne:  sqrtP' = L*sqrtP*Q96 / (L*Q96 + dx*sqrtP)
//	             dy     = L*(sqrtP - sqrtP') / Q96
//	oneForZero:  sqrtP' = sqrtP + dy*Q96/L
//	             dx     = L*Q96*(sqrtP' - sqrtP) / (sqrtP' * sqrtP)
func (pm *PoolManager) executeSwap(pool *Pool, fee uint24, params SwapParams) (BalanceDelta, *big.Int, error) {
	exactInput := params.AmountSpecified.Sign() < 0
	absSpecified := new(big.Int).Abs(params.AmountSpecified)

	liquidity := pool.Liquidity
	sqrtP := pool.SqrtPriceX96

	var amount0, amount1 *big.Int // positive = owed to pool
	var newSqrtP *big.Int

	if params.ZeroForOne {
		var in0, out1 *big.Int
		if exactInput {
			in0 = absSpecified
			newSqrtP = sqrtPriceAfterAmount0In(sqrtP, liquidity, in0)
			out1 = amount1OutBetween(sqrtP, newSqrtP, liquidity)
		} else {
			out1 = absSpecified
			var err error
			newSqrtP, err = sqrtPriceAfterAmount1Out(sqrtP, liquidity, out1)
			if err != nil {
				return ZeroBalanceDelta(), nil, err
			}
			in0 = amount0InBetween(sqrtP, newSqrtP, liquidity)
		}
		amount0 = in0
		amount1 = new(big.Int).Neg(out1)
	} else {
		var in1, out0 *big.Int
		if exactInput {
			in1 = absSpecified
			newSqrtP = sqrtPriceAfterAmount1In(sqrtP, liquidity, in1)
			out0 = amount0OutBetween(sqrtP, newSqrtP, liquidity)
		} else {
			out0 = absSpecified
			var err error
			newSqrtP, err = sqrtPriceAfterAmount0Out(sqrtP, liquidity, out0)
			if err != nil {
				return ZeroBalanceDelta(), nil, err
			}
			in1 = amount1InBetween(sqrtP, newSqrtP, liquidity)
		}
		amount0 = new(big.Int).Neg(out0)
		amount1 = in1
	}

	if newSqrtP.Cmp(MinSqrtRatio) < 0 {
		newSqrtP = new(big.Int).Set(MinSqrtRatio)
	}
	if newSqrtP.Cmp(MaxSqrtRatio) > 0 {
		newSqrtP = new(big.Int).Set(MaxSqrtRatio)
	}

	// LP fee accrues to the pool's fee growth accumulators
	feeAmount := pm.calculateSwapFee(amount0, amount1, fee)
	if feeAmount.Sign() > 0 && liquidity.Sign() > 0 {
		growth := new(big.Int).Mul(feeAmount, Q128)
		growth.Div(growth, liquidity)
		if params.ZeroForOne {
			pool.FeeGrowth0X128 = new(big.Int).Add(pool.FeeGrowth0X128, growth)
		} else {
			pool.FeeGrowth1X128 = new(big.Int).Add(pool.FeeGrowth1X128, growth)
		}
	}

	return NewBalanceDelta(amount0, amount1), newSqrtP, nil
}

// sqrtPriceAfterAmount0In moves the price down as token0 enters the pool.
func sqrtPriceAfterAmount0In(sqrtP, liquidity, amountIn *big.Int) *big.Int {
	// sqrtP' = L*sqrtP*Q96 / (L*Q96 + dx*sqrtP)
	num := new(big.Int).Mul(liquidity, sqrtP)
	num.Mul(num, Q96)
	den := new(big.Int).Mul(liquidity, Q96)
	den.Add(den, new(big.Int).Mul(amountIn, sqrtP))
	return num.Div(num, den)
}

// sqrtPriceAfterAmount1In moves the price up as token1 enters the pool.
func sqrtPriceAfterAmount1In(sqrtP, liquidity, amountIn *big.Int) *big.Int {
	// sqrtP' = sqrtP + dy*Q96/L
	step := new(big.Int).Mul(amountIn, Q96)
	step.Div(step, liquidity)
	return new(big.Int).Add(sqrtP, step)
}

// sqrtPriceAfterAmount1Out moves the price down to release token1.
func sqrtPriceAfterAmount1Out(sqrtP, liquidity, amountOut *big.Int) (*big.Int, error) {
	step := new(big.Int).Mul(amountOut, Q96)
	step.Div(step, liquidity)
	next := new(big.Int).Sub(sqrtP, step)
	if next.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	return next, nil
}

// sqrtPriceAfterAmount0Out moves the price up to release token0.
func sqrtPriceAfterAmount0Out(sqrtP, liquidity, amountOut *big.Int) (*big.Int, error) {
	// 1/sqrtP' = 1/sqrtP - dx/(L*Q96)
	lq := new(big.Int).Mul(liquidity, Q96)
	den := new(big.Int).Sub(lq, new(big.Int).Mul(amountOut, sqrtP))
	if den.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	num := new(big.Int).Mul(lq, sqrtP)
	return num.Div(num, den), nil
}

// amount1OutBetween is the token1 released as the price falls from a to b.
func amount1OutBetween(a, b, liquidity *big.Int) *big.Int {
	diff := new(big.Int).Sub(a, b)
	out := new(big.Int).Mul(liquidity, diff)
	return out.Div(out, Q96)
}

// amount1InBetween is the token1 absorbed as the price rises from a to b.
func amount1InBetween(a, b, liquidity *big.Int) *big.Int {
	diff := new(big.Int).Sub(b, a)
	in := new(big.Int).Mul(liquidity, diff)
	in.Div(in, Q96)
	// round the pool's receivable up so the trader never underpays
	rem := new(big.Int).Mul(liquidity, diff)
	if new(big.Int).Mod(rem, Q96).Sign() != 0 {
		in.Add(in, big.NewInt(1))
	}
	return in
}

// amount0OutBetween is the token0 released as the price rises from a to b.
func amount0OutBetween(a, b, liquidity *big.Int) *big.Int {
	diff := new(big.Int).Sub(b, a)
	num := new(big.Int).Mul(liquidity, Q96)
	num.Mul(num, diff)
	den := new(big.Int).Mul(a, b)
	return num.Div(num, den)
}

// amount0InBetween is the token0 absorbed as the price falls from a to b.
func amount0InBetween(a, b, liquidity *big.Int) *big.Int {
	diff := new(big.Int).Sub(a, b)
	num := new(big.Int).Mul(liquidity, Q96)
	num.Mul(num, diff)
	den := new(big.Int).Mul(a, b)
	in := new(big.Int).Div(num, den)
	if new(big.Int).Mod(num, den).Sign() != 0 {
		in.Add(in, big.NewInt(1))
	}
	return in
}

// calculateSwapFee calculates the fee for a swap
func (pm *PoolManager) calculateSwapFee(amount0, amount1 *big.Int, fee uint24) *big.Int {
	// Fee = max(|amount0|, |amount1|) * fee / 1_000_000
	amount := amount0
	if amount1.CmpAbs(amount0) > 0 {
		amount = amount1
	}
	absAmount := new(big.Int).Abs(amount)
	feeAmount := new(big.Int).Mul(absAmount, big.NewInt(int64(fee)))
	return feeAmount.Div(feeAmount, big.NewInt(1_000_000))
}

// =========================================================================
// Vault Escrow
// =========================================================================

// vaultKey derives the storage slot holding owner's balance of currency.
func vaultKey(owner common.Address, currency Currency) common.Hash {
	id := make([]byte, 0, 40)
	id = append(id, owner.Bytes()...)
	id = append(id, currency.ToBytes()...)
	return makeStorageKey(vaultPrefix, id)
}

// VaultBalance returns owner's escrowed balance of currency.
func VaultBalance(stateDB StateDB, owner common.Address, currency Currency) *uint256.Int {
	val := stateDB.GetState(poolManagerAddr, vaultKey(owner, currency))
	return new(uint256.Int).SetBytes(val[:])
}

// VaultCredit increases owner's escrowed balance of currency.
func VaultCredit(stateDB StateDB, owner common.Address, currency Currency, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	bal := VaultBalance(stateDB, owner, currency)
	bal.Add(bal, amount)
	stateDB.SetState(poolManagerAddr, vaultKey(owner, currency), common.Hash(bal.Bytes32()))
}

// VaultDebit decreases owner's escrowed balance of currency.
func VaultDebit(stateDB StateDB, owner common.Address, currency Currency, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	bal := VaultBalance(stateDB, owner, currency)
	if bal.Lt(amount) {
		return ErrInsufficientEscrow
	}
	bal.Sub(bal, amount)
	stateDB.SetState(poolManagerAddr, vaultKey(owner, currency), common.Hash(bal.Bytes32()))
	return nil
}

// VaultWithdraw moves amount of currency from owner's escrow to the
// recipient's escrow balance. Insufficient escrow aborts the operation.
func VaultWithdraw(stateDB StateDB, owner common.Address, currency Currency, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeCharge
	}
	amountU256, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrInsufficientEscrow
	}
	if err := VaultDebit(stateDB, owner, currency, amountU256); err != nil {
		return err
	}
	VaultCredit(stateDB, to, currency, amountU256)
	return nil
}

// VaultDeposit funds owner's escrow balance. Native deposits move real
// balance into the host; token deposits only credit the ledger (the token
// escrow itself is the token contract's concern).
func VaultDeposit(stateDB StateDB, owner common.Address, currency Currency, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if currency.IsNative() {
		if stateDB.GetBalance(owner).Lt(amount) {
			return ErrSettlementFailed
		}
		stateDB.SubBalance(owner, amount)
		stateDB.AddBalance(poolManagerAddr, amount)
	}
	VaultCredit(stateDB, owner, currency, amount)
	return nil
}

// nativeBalanceReason is recorded for native moves on tracing StateDBs.
// The plain host StateDB does not carry reasons; the contract layer's
// adapter supplies this when bridging.
const nativeBalanceReason = tracing.BalanceChangeTransfer

// =========================================================================
// Currency Decimals Registry
// =========================================================================

// SetCurrencyDecimals records a currency's decimal precision. The marker
// byte distinguishes an explicit zero from an unset entry.
func SetCurrencyDecimals(stateDB StateDB, currency Currency, decimals uint8) {
	key := makeStorageKey(decimalsPrefix, currency.ToBytes())
	var val common.Hash
	val[0] = 1
	val[31] = decimals
	stateDB.SetState(poolManagerAddr, key, val)
}

// CurrencyDecimals returns a currency's registered decimal precision.
// The second return is false when the currency was never registered.
func CurrencyDecimals(stateDB StateDB, currency Currency) (uint8, bool) {
	key := makeStorageKey(decimalsPrefix, currency.ToBytes())
	val := stateDB.GetState(poolManagerAddr, key)
	if val[0] == 0 {
		return 0, false
	}
	return val[31], true
}

// =========================================================================
// State Management
// =========================================================================

// getPool retrieves pool state from storage
func (pm *PoolManager) getPool(stateDB StateDB, poolId [32]byte) *Pool {
	pm.mu.RLock()
	if pool, ok := pm.pools[poolId]; ok {
		pm.mu.RUnlock()
		return pool
	}
	pm.mu.RUnlock()

	// Load from state
	pool := NewPool()

	// Read sqrtPriceX96
	sqrtPriceKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("sqrtPrice")...))
	sqrtPriceHash := stateDB.GetState(poolManagerAddr, sqrtPriceKey)
	if sqrtPriceHash != (common.Hash{}) {
		pool.SqrtPriceX96 = new(big.Int).SetBytes(sqrtPriceHash[:])
	}

	// Read tick
	tickKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("tick")...))
	tickHash := stateDB.GetState(poolManagerAddr, tickKey)
	if tickHash != (common.Hash{}) {
		pool.Tick = int24(binary.BigEndian.Uint32(tickHash[28:32]))
	}

	// Read liquidity
	liqKey := makeStorageKey(poolLiquidityPrefix, poolId[:])
	liqHash := stateDB.GetState(poolManagerAddr, liqKey)
	if liqHash != (common.Hash{}) {
		pool.Liquidity = new(big.Int).SetBytes(liqHash[:])
	}

	pm.mu.Lock()
	pm.pools[poolId] = pool
	pm.mu.Unlock()
	return pool
}

// setPool saves pool state to storage
func (pm *PoolManager) setPool(stateDB StateDB, poolId [32]byte, pool *Pool) {
	pm.mu.Lock()
	pm.pools[poolId] = pool
	pm.mu.Unlock()

	// Write sqrtPriceX96
	sqrtPriceKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("sqrtPrice")...))
	var sqrtPriceHash common.Hash
	pool.SqrtPriceX96.FillBytes(sqrtPriceHash[:])
	stateDB.SetState(poolManagerAddr, sqrtPriceKey, sqrtPriceHash)

	// Write tick
	tickKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("tick")...))
	var tickHash common.Hash
	binary.BigEndian.PutUint32(tickHash[28:32], uint32(pool.Tick))
	stateDB.SetState(poolManagerAddr, tickKey, tickHash)

	// Write liquidity
	liqKey := makeStorageKey(poolLiquidityPrefix, poolId[:])
	var liqHash common.Hash
	pool.Liquidity.FillBytes(liqHash[:])
	stateDB.SetState(poolManagerAddr, liqKey, liqHash)
}

// PoolSqrtPrice reads a pool's live sqrt price straight from storage.
// Hook modules use this to observe prices without a PoolManager instance.
func PoolSqrtPrice(stateDB StateDB, poolId [32]byte) (*big.Int, bool) {
	sqrtPriceKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("sqrtPrice")...))
	sqrtPriceHash := stateDB.GetState(poolManagerAddr, sqrtPriceKey)
	if sqrtPriceHash == (common.Hash{}) {
		return nil, false
	}
	return new(big.Int).SetBytes(sqrtPriceHash[:]), true
}

// =========================================================================
// Helper Functions
// =========================================================================

// areCurrenciesSorted returns true if currencies are properly sorted
// Uses bytes comparison for correct address ordering
func (pm *PoolManager) areCurrenciesSorted(c0, c1 Currency) bool {
	return bytes.Compare(c0.Address.Bytes(), c1.Address.Bytes()) < 0
}

// sqrtPriceX96ToTick converts sqrt price to tick using binary search
// tick = floor(log_1.0001(price))
// price = sqrtPriceX96^2 / 2^192
func (pm *PoolManager) sqrtPriceX96ToTick(sqrtPriceX96 *big.Int) int24 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}

	// Clamp to valid range
	if sqrtPriceX96.Cmp(MinSqrtRatio) <= 0 {
		return MinTick
	}
	if sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return MaxTick
	}

	// Binary search for tick
	// tickToSqrtPrice(tick) <= sqrtPriceX96 < tickToSqrtPrice(tick+1)
	low := int24(MinTick)
	high := int24(MaxTick)

	for low < high {
		mid := low + (high-low+1)/2
		sqrtPriceMid := pm.tickToSqrtPriceX96(mid)

		if sqrtPriceMid.Cmp(sqrtPriceX96) <= 0 {
			low = mid
		} else {
			high = mid - 1
		}
	}

	return low
}

// tickToSqrtPriceX96 converts tick to sqrt price (Q64.96 format)
// sqrtPrice = sqrt(1.0001^tick) * 2^96
func (pm *PoolManager) tickToSqrtPriceX96(tick int24) *big.Int {
	// For tick 0: sqrtPrice = 2^96
	if tick == 0 {
		return new(big.Int).Set(Q96)
	}

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	// Start with 1.0 in Q128 format for precision
	ratio := new(big.Int).Lsh(big.NewInt(1), 128)

	// Magic numbers from Uniswap v3 TickMath
	// These are sqrt(1.0001^(2^i)) in Q128 format
	sqrtMagics := []struct {
		bit   int
		magic *big.Int
	}{
		{0, new(big.Int).SetBytes([]byte{0xff, 0xf9, 0x71, 0x63, 0xe1, 0x37, 0x66, 0x35})}, // 2^0
		{1, new(big.Int).SetBytes([]byte{0xff, 0xf2, 0xe5, 0x0f, 0x62, 0x6c, 0x4c, 0x95})}, // 2^1
		{2, new(big.Int).SetBytes([]byte{0xff, 0xe5, 0xca, 0xca, 0x7e, 0x10, 0xe4, 0x46})}, // 2^2
		{3, new(big.Int).SetBytes([]byte{0xff, 0xcb, 0x9a, 0x97, 0x93, 0x42, 0xa9, 0x50})}, // 2^3
		{4, new(big.Int).SetBytes([]byte{0xff, 0x97, 0x38, 0x3c, 0x7e, 0x70, 0x01, 0x2a})}, // 2^4
		{5, new(big.Int).SetBytes([]byte{0xff, 0x2e, 0xa1, 0x34, 0x34, 0xc3, 0x39, 0x69})}, // 2^5
		{6, new(big.Int).SetBytes([]byte{0xfe, 0x5d, 0xee, 0x04, 0x6a, 0x99, 0xa1, 0x2d})}, // 2^6
		{7, new(big.Int).SetBytes([]byte{0xfc, 0xbe, 0x86, 0xc7, 0x90, 0x67, 0x90, 0x01})}, // 2^7
		{8, new(big.Int).SetBytes([]byte{0xf9, 0x87, 0xa7, 0x25, 0x30, 0x42, 0x46, 0x85})}, // 2^8
	}

	// Multiply by relevant factors
	for _, sm := range sqrtMagics {
		if int(absTick)&(1<<sm.bit) != 0 {
			ratio.Mul(ratio, sm.magic)
			ratio.Rsh(ratio, 64)
		}
	}

	// Handle remaining bits for larger ticks (simplified)
	remaining := int(absTick) >> 9
	for i := 0; i < remaining; i++ {
		// Approximate multiplication by sqrt(1.0001^512)
		ratio.Mul(ratio, big.NewInt(10001))
		ratio.Div(ratio, big.NewInt(10000))
	}

	// If negative tick, invert the ratio
	if tick < 0 {
		// ratio = 2^256 / ratio (approximately)
		maxU256 := new(big.Int).Lsh(big.NewInt(1), 256)
		ratio = new(big.Int).Div(maxU256, ratio)
	}

	// Convert from Q128 to Q96
	result := new(big.Int).Rsh(ratio, 32)

	// Ensure within bounds
	if result.Cmp(MinSqrtRatio) < 0 {
		return new(big.Int).Set(MinSqrtRatio)
	}
	if result.Cmp(MaxSqrtRatio) > 0 {
		return new(big.Int).Set(MaxSqrtRatio)
	}

	return result
}

// =========================================================================
// View Functions
// =========================================================================

// GetPool returns the current state of a pool
func (pm *PoolManager) GetPool(stateDB StateDB, key PoolKey) (*Pool, error) {
	poolId := key.ID()
	pool := pm.getPool(stateDB, poolId)

	if !pool.IsInitialized() {
		return nil, ErrPoolNotInitialized
	}

	return pool, nil
}
