// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testutils

import (
	"math/big"

	"github.com/levislee/pancakeswap-hooks-dynctax/contract"
	"github.com/levislee/pancakeswap-hooks-dynctax/precompileconfig"
)

// MockBlockContext implements contract.BlockContext with fixed values.
type MockBlockContext struct {
	BlockNumber *big.Int
	Time        uint64
}

func (m *MockBlockContext) Number() *big.Int {
	if m.BlockNumber == nil {
		return big.NewInt(0)
	}
	return m.BlockNumber
}

func (m *MockBlockContext) Timestamp() uint64 { return m.Time }

// MockChainConfig implements precompileconfig.ChainConfig with every
// upgrade active.
type MockChainConfig struct {
	ID *big.Int
}

func (m *MockChainConfig) ChainID() *big.Int {
	if m.ID == nil {
		return big.NewInt(1)
	}
	return m.ID
}

func (m *MockChainConfig) IsUpgradeActivated(uint64) bool { return true }

// MockAccessibleState bundles the fakes behind contract.AccessibleState.
type MockAccessibleState struct {
	StateDB contract.StateDB
	Block   *MockBlockContext
	Chain   *MockChainConfig
}

// NewMockAccessibleState builds an accessible state over a fresh MockStateDB
// at block 1, timestamp 0.
func NewMockAccessibleState() *MockAccessibleState {
	return &MockAccessibleState{
		StateDB: NewMockStateDB(),
		Block:   &MockBlockContext{BlockNumber: big.NewInt(1)},
		Chain:   &MockChainConfig{},
	}
}

func (m *MockAccessibleState) GetStateDB() contract.StateDB { return m.StateDB }

func (m *MockAccessibleState) GetBlockContext() contract.BlockContext { return m.Block }

func (m *MockAccessibleState) GetChainConfig() precompileconfig.ChainConfig { return m.Chain }
