// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/levislee/pancakeswap-hooks-dynctax/contract"
	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
)

// TaxContractAddress carries the beforeSwap+afterSwap permission bits
// (0x00C0) in its leading two bytes, as the pool manager requires of hook
// addresses.
const TaxContractAddress = "0x00C0000000000000000000000000000000000000"

var taxAddr = common.HexToAddress(TaxContractAddress)

// Gas costs
const (
	GasAssess     = 8_000
	GasSettle     = 10_000
	GasAdminRead  = 200
	GasAdminWrite = 5_000
)

// Admin and inspection selectors, keccak-derived from their solidity
// signatures. The swap entry points use the pool manager's packed hook
// selectors instead.
var (
	priceInfoSelector         = contract.CalculateFunctionSelector("priceInfo((address,address,uint24,int24,address))")
	setCheckpointSelector     = contract.CalculateFunctionSelector("setCheckpoint((address,address,uint24,int24,address),uint256)")
	pendingOfSelector         = contract.CalculateFunctionSelector("pendingOf(address,(address,address,uint24,int24,address))")
	missedSettlementsSelector = contract.CalculateFunctionSelector("missedSettlements()")
	setAdminSelector          = contract.CalculateFunctionSelector("setAdmin(address)")
)

// Errors
var (
	ErrUnauthorized         = errors.New("unauthorized: caller is not admin")
	ErrCallerNotPoolManager = errors.New("unauthorized: caller is not the pool manager")
	ErrInvalidInput         = errors.New("invalid input")
)

// TaxContract adapts the engine to the stateful precompile interface.
type TaxContract struct {
	engine *Engine
}

// TaxPrecompile is the registered contract instance.
var TaxPrecompile = &TaxContract{engine: NewEngine(nil)}

// Run dispatches a call to the tax precompile. The swap hooks are only
// reachable from the pool manager; the admin surface is open to direct
// calls.
func (c *TaxContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	if len(input) < contract.SelectorLen {
		return nil, suppliedGas, contract.ErrInvalidSelector
	}
	selector := input[:contract.SelectorLen]

	switch {
	case bytes.Equal(selector, dex.SigBeforeSwap):
		return c.runBeforeSwap(accessibleState, caller, input, suppliedGas, readOnly)
	case bytes.Equal(selector, dex.SigAfterSwap):
		return c.runAfterSwap(accessibleState, caller, input, suppliedGas, readOnly)
	case bytes.Equal(selector, priceInfoSelector):
		return c.runPriceInfo(accessibleState, input[contract.SelectorLen:], suppliedGas)
	case bytes.Equal(selector, setCheckpointSelector):
		return c.runSetCheckpoint(accessibleState, caller, input[contract.SelectorLen:], suppliedGas, readOnly)
	case bytes.Equal(selector, pendingOfSelector):
		return c.runPendingOf(accessibleState, input[contract.SelectorLen:], suppliedGas)
	case bytes.Equal(selector, missedSettlementsSelector):
		return c.runMissedSettlements(accessibleState, suppliedGas)
	case bytes.Equal(selector, setAdminSelector):
		return c.runSetAdmin(accessibleState, caller, input[contract.SelectorLen:], suppliedGas, readOnly)
	default:
		return nil, suppliedGas, contract.ErrInvalidSelector
	}
}

func (c *TaxContract) runBeforeSwap(
	accessibleState contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasAssess)
	if err != nil {
		return nil, 0, err
	}

	if caller != dex.ContractPoolManagerAddress {
		return nil, remainingGas, ErrCallerNotPoolManager
	}

	call, err := dex.UnpackBeforeSwapParams(input)
	if err != nil {
		return nil, remainingGas, err
	}

	stateDB := dex.WrapStateDB(accessibleState.GetStateDB(), accessibleState.GetBlockContext())
	result, err := c.engine.BeforeTrade(stateDB, call)
	if err != nil {
		return nil, remainingGas, err
	}
	return dex.PackBeforeSwapReturn(result), remainingGas, nil
}

func (c *TaxContract) runAfterSwap(
	accessibleState contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasSettle)
	if err != nil {
		return nil, 0, err
	}

	if caller != dex.ContractPoolManagerAddress {
		return nil, remainingGas, ErrCallerNotPoolManager
	}

	call, err := dex.UnpackAfterSwapParams(input)
	if err != nil {
		return nil, remainingGas, err
	}

	stateDB := dex.WrapStateDB(accessibleState.GetStateDB(), accessibleState.GetBlockContext())
	if err := c.engine.AfterTrade(stateDB, call); err != nil {
		return nil, remainingGas, err
	}
	return dex.PackAfterSwapReturn(), remainingGas, nil
}

// runPriceInfo returns the live normalized price and the checkpointed
// price for a pool, each as a 32-byte word. Unreadable values come back
// zero.
func (c *TaxContract) runPriceInfo(
	accessibleState contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasAdminRead)
	if err != nil {
		return nil, 0, err
	}

	if len(input) < 66 {
		return nil, remainingGas, ErrInvalidInput
	}
	key, err := dex.PoolKeyFromBytes(input[:66])
	if err != nil {
		return nil, remainingGas, err
	}

	stateDB := dex.WrapStateDB(accessibleState.GetStateDB(), accessibleState.GetBlockContext())

	result := make([]byte, 64)
	params, ok := loadTaxParams(stateDB)
	if !ok {
		return result, remainingGas, nil
	}

	if current, live := PoolPriceFixed(stateDB, key, params.TargetAsset); live {
		current.FillBytes(result[0:32])
	}
	cp := ReadCheckpoint(stateDB, key.ID())
	if cp.PriceFixed != nil {
		cp.PriceFixed.FillBytes(result[32:64])
	}
	return result, remainingGas, nil
}

// runSetCheckpoint lets the admin pin a pool's checkpoint to an explicit
// price, stamped with the current block time. A zero price clears it.
func (c *TaxContract) runSetCheckpoint(
	accessibleState contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasAdminWrite)
	if err != nil {
		return nil, 0, err
	}

	if len(input) < 66+32 {
		return nil, remainingGas, ErrInvalidInput
	}

	stateDB := dex.WrapStateDB(accessibleState.GetStateDB(), accessibleState.GetBlockContext())
	if !isAdmin(stateDB, caller) {
		return nil, remainingGas, ErrUnauthorized
	}

	key, err := dex.PoolKeyFromBytes(input[:66])
	if err != nil {
		return nil, remainingGas, err
	}
	price := new(big.Int).SetBytes(input[66:98])

	WriteCheckpoint(stateDB, key.ID(), PriceCheckpoint{
		SampleTime: accessibleState.GetBlockContext().Timestamp(),
		PriceFixed: price,
	})
	return nil, remainingGas, nil
}

// runPendingOf returns a trader's reserved sell settlement for a pool:
// a marker-tagged asset word, then the recipient and burn amounts.
func (c *TaxContract) runPendingOf(
	accessibleState contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasAdminRead)
	if err != nil {
		return nil, 0, err
	}

	if len(input) < 20+66 {
		return nil, remainingGas, ErrInvalidInput
	}
	trader := common.BytesToAddress(input[0:20])
	key, err := dex.PoolKeyFromBytes(input[20:86])
	if err != nil {
		return nil, remainingGas, err
	}

	stateDB := dex.WrapStateDB(accessibleState.GetStateDB(), accessibleState.GetBlockContext())
	entry, found := PendingOf(stateDB, trader, key.ID())

	result := make([]byte, 96)
	if found {
		result[0] = 1
		copy(result[12:32], entry.InputAsset.ToBytes())
		entry.RecvAmount.FillBytes(result[32:64])
		entry.BurnAmount.FillBytes(result[64:96])
	}
	return result, remainingGas, nil
}

func (c *TaxContract) runMissedSettlements(
	accessibleState contract.AccessibleState,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasAdminRead)
	if err != nil {
		return nil, 0, err
	}

	stateDB := dex.WrapStateDB(accessibleState.GetStateDB(), accessibleState.GetBlockContext())

	result := make([]byte, 32)
	binary.BigEndian.PutUint64(result[24:32], MissedSettlements(stateDB))
	return result, remainingGas, nil
}

func (c *TaxContract) runSetAdmin(
	accessibleState contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}

	remainingGas, err := contract.DeductGas(suppliedGas, GasAdminWrite)
	if err != nil {
		return nil, 0, err
	}

	if len(input) < 20 {
		return nil, remainingGas, ErrInvalidInput
	}

	stateDB := dex.WrapStateDB(accessibleState.GetStateDB(), accessibleState.GetBlockContext())
	if !isAdmin(stateDB, caller) {
		return nil, remainingGas, ErrUnauthorized
	}

	setAdminInternal(stateDB, common.BytesToAddress(input[0:20]))
	return nil, remainingGas, nil
}

// RequiredGas returns the gas the given calldata costs up front.
func (c *TaxContract) RequiredGas(input []byte) uint64 {
	if len(input) < contract.SelectorLen {
		return 0
	}
	selector := input[:contract.SelectorLen]

	switch {
	case bytes.Equal(selector, dex.SigBeforeSwap):
		return GasAssess
	case bytes.Equal(selector, dex.SigAfterSwap):
		return GasSettle
	case bytes.Equal(selector, priceInfoSelector),
		bytes.Equal(selector, pendingOfSelector),
		bytes.Equal(selector, missedSettlementsSelector):
		return GasAdminRead
	case bytes.Equal(selector, setCheckpointSelector),
		bytes.Equal(selector, setAdminSelector):
		return GasAdminWrite
	}
	return 0
}

// Admin principal. While the admin slot is zero, setCheckpoint and
// setAdmin are open; the first setAdmin call closes them.
var adminStoreKey = storageKey(configPrefix, []byte("admin"))

func getAdmin(stateDB dex.StateDB) common.Address {
	word := stateDB.GetState(taxAddr, adminStoreKey)
	return common.BytesToAddress(word[12:32])
}

func setAdminInternal(stateDB dex.StateDB, admin common.Address) {
	stateDB.SetState(taxAddr, adminStoreKey, common.BytesToHash(admin.Bytes()))
}

func isAdmin(stateDB dex.StateDB, caller common.Address) bool {
	admin := getAdmin(stateDB)
	if admin == (common.Address{}) {
		return true
	}
	return caller == admin
}

// Calldata builders for the admin surface.

// PackPriceInfoInput builds calldata for the priceInfo view.
func PackPriceInfoInput(key dex.PoolKey) []byte {
	data := make([]byte, 0, 4+66)
	data = append(data, priceInfoSelector...)
	data = append(data, key.ToBytes()...)
	return data
}

// PackSetCheckpointInput builds calldata for setCheckpoint.
func PackSetCheckpointInput(key dex.PoolKey, priceFixed *big.Int) []byte {
	data := make([]byte, 0, 4+66+32)
	data = append(data, setCheckpointSelector...)
	data = append(data, key.ToBytes()...)

	word := make([]byte, 32)
	if priceFixed != nil {
		priceFixed.FillBytes(word)
	}
	return append(data, word...)
}

// PackPendingOfInput builds calldata for the pendingOf view.
func PackPendingOfInput(trader common.Address, key dex.PoolKey) []byte {
	data := make([]byte, 0, 4+20+66)
	data = append(data, pendingOfSelector...)
	data = append(data, trader.Bytes()...)
	data = append(data, key.ToBytes()...)
	return data
}

// PackMissedSettlementsInput builds calldata for the missedSettlements view.
func PackMissedSettlementsInput() []byte {
	return append([]byte{}, missedSettlementsSelector...)
}

// PackSetAdminInput builds calldata for setAdmin.
func PackSetAdminInput(admin common.Address) []byte {
	data := make([]byte, 0, 4+20)
	data = append(data, setAdminSelector...)
	data = append(data, admin.Bytes()...)
	return data
}
