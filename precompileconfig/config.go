// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompileconfig defines the upgrade configuration primitives
// shared by every stateful precompile: a Config carries the JSON settings a
// network upgrade activates a precompile with, and Upgrade carries the
// activation timestamp and disable switch common to all of them.
package precompileconfig

import "math/big"

// Config is implemented by each precompile's upgrade configuration.
type Config interface {
	// Key returns the unique name this config is registered under.
	Key() string
	// Timestamp returns the activation time, nil meaning never.
	Timestamp() *uint64
	// IsDisabled reports whether this upgrade disables the precompile.
	IsDisabled() bool
	// Equal reports deep equality with another config of the same key.
	Equal(Config) bool
	// Verify checks the config for well-formedness before activation.
	Verify(ChainConfig) error
}

// ChainConfig is the subset of the chain configuration visible to
// precompile config verification.
type ChainConfig interface {
	ChainID() *big.Int
	IsUpgradeActivated(timestamp uint64) bool
}

// Upgrade is embedded in every precompile Config.
type Upgrade struct {
	BlockTimestamp *uint64 `json:"blockTimestamp,omitempty"`
	Disable        bool    `json:"disable,omitempty"`
}

// Timestamp returns the activation time, nil meaning never.
func (u *Upgrade) Timestamp() *uint64 {
	return u.BlockTimestamp
}

// Equal reports whether both upgrades share the same activation time and
// disable switch.
func (u *Upgrade) Equal(other *Upgrade) bool {
	if other == nil {
		return false
	}
	return u.Disable == other.Disable && equalPtr(u.BlockTimestamp, other.BlockTimestamp)
}

func equalPtr(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
