// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the framework stateful precompiles are built on:
// the state surface they run against, the execution context the EVM hands
// them, and the configurator hooks used to activate a precompile at a
// network upgrade.
package contract

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/levislee/pancakeswap-hooks-dynctax/precompileconfig"
)

// StateDB is the EVM state surface precompiles read and write.
type StateDB interface {
	GetState(common.Address, common.Hash) common.Hash
	// SetState stores value under (addr, key) and returns the previous value.
	SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash

	GetBalance(common.Address) *uint256.Int
	// AddBalance and SubBalance return the previous balance.
	AddBalance(common.Address, *uint256.Int, tracing.BalanceChangeReason) uint256.Int
	SubBalance(common.Address, *uint256.Int, tracing.BalanceChangeReason) uint256.Int

	GetBalanceMultiCoin(common.Address, common.Hash) *big.Int
	AddBalanceMultiCoin(common.Address, common.Hash, *big.Int)
	SubBalanceMultiCoin(common.Address, common.Hash, *big.Int)

	GetNonce(common.Address) uint64
	SetNonce(common.Address, uint64, tracing.NonceChangeReason)

	CreateAccount(common.Address)
	Exist(common.Address) bool

	AddLog(*ethtypes.Log)
	Logs() []*ethtypes.Log

	GetPredicateStorageSlots(address common.Address, index int) ([]byte, bool)
	TxHash() common.Hash

	Snapshot() int
	RevertToSnapshot(int)
}

// ConfigurationBlockContext is the block surface available while a
// precompile is being configured at an upgrade boundary.
type ConfigurationBlockContext interface {
	Number() *big.Int
	Timestamp() uint64
}

// BlockContext is the block surface available during precompile execution.
type BlockContext interface {
	ConfigurationBlockContext
}

// AccessibleState is the execution context handed to a precompile's Run.
type AccessibleState interface {
	GetStateDB() StateDB
	GetBlockContext() BlockContext
	GetChainConfig() precompileconfig.ChainConfig
}

// StatefulPrecompiledContract is implemented by every precompile in this
// repository. Run executes the call and returns the output alongside the
// gas remaining from suppliedGas.
type StatefulPrecompiledContract interface {
	Run(accessibleState AccessibleState, caller common.Address, addr common.Address, input []byte, suppliedGas uint64, readOnly bool) (ret []byte, remainingGas uint64, err error)
}

// Configurator seeds a precompile's initial state when its network upgrade
// activates.
type Configurator interface {
	MakeConfig() precompileconfig.Config
	Configure(chainConfig precompileconfig.ChainConfig, precompileConfig precompileconfig.Config, state StateDB, blockContext ConfigurationBlockContext) error
}
