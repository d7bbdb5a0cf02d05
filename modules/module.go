// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules is the registry of stateful precompile modules. Each
// precompile registers itself in an init() with its config key, its fixed
// address, its contract, and the configurator that seeds its state at
// upgrade activation.
package modules

import (
	"bytes"

	"github.com/luxfi/geth/common"

	"github.com/levislee/pancakeswap-hooks-dynctax/contract"
)

// Module ties one stateful precompile to its address and configuration.
type Module struct {
	// ConfigKey names this precompile's config in upgrade JSON.
	ConfigKey string
	// Address is the fixed address the precompile executes at.
	Address common.Address
	// Contract handles calls made to Address.
	Contract contract.StatefulPrecompiledContract

	contract.Configurator
}

type moduleArray []Module

func (m moduleArray) Len() int      { return len(m) }
func (m moduleArray) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address.Bytes(), m[j].Address.Bytes()) < 0
}
