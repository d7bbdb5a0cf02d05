// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"encoding/binary"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
)

// Storage prefixes for the module's state, all rooted under its own
// contract address.
var (
	checkpointPrefix = []byte("ckpt")
	pendingPrefix    = []byte("pend")
	configPrefix     = []byte("conf")
	statsPrefix      = []byte("stat")
)

// storageKey derives a deterministic slot for a prefixed identifier.
func storageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)

	var out [32]byte
	h.Digest().Read(out[:])
	return common.BytesToHash(out[:])
}

// PriceCheckpoint is the per-pool reference sample that sell-side loss is
// measured against. A zero price means no checkpoint has been recorded.
type PriceCheckpoint struct {
	SampleTime uint64
	PriceFixed *big.Int
}

// Set reports whether the checkpoint holds a recorded sample.
func (cp PriceCheckpoint) Set() bool {
	return cp.PriceFixed != nil && cp.PriceFixed.Sign() > 0
}

func checkpointTimeKey(poolID [32]byte) common.Hash {
	return storageKey(checkpointPrefix, append(poolID[:], []byte("time")...))
}

func checkpointPriceKey(poolID [32]byte) common.Hash {
	return storageKey(checkpointPrefix, append(poolID[:], []byte("price")...))
}

// ReadCheckpoint loads a pool's checkpoint. Pools with no recorded sample
// come back with a zero price.
func ReadCheckpoint(stateDB dex.StateDB, poolID [32]byte) PriceCheckpoint {
	timeWord := stateDB.GetState(taxAddr, checkpointTimeKey(poolID))
	priceWord := stateDB.GetState(taxAddr, checkpointPriceKey(poolID))

	return PriceCheckpoint{
		SampleTime: binary.BigEndian.Uint64(timeWord[24:32]),
		PriceFixed: new(big.Int).SetBytes(priceWord[:]),
	}
}

// WriteCheckpoint stores a pool's checkpoint unconditionally.
func WriteCheckpoint(stateDB dex.StateDB, poolID [32]byte, cp PriceCheckpoint) {
	var timeWord common.Hash
	binary.BigEndian.PutUint64(timeWord[24:32], cp.SampleTime)
	stateDB.SetState(taxAddr, checkpointTimeKey(poolID), timeWord)

	var priceWord common.Hash
	if cp.PriceFixed != nil {
		cp.PriceFixed.FillBytes(priceWord[:])
	}
	stateDB.SetState(taxAddr, checkpointPriceKey(poolID), priceWord)
}

// MaybeUpdateCheckpoint records a fresh sample when the recording
// interval allows it: recording is off entirely while the interval is
// zero, a pool with no checkpoint yet always qualifies, and otherwise a
// full interval must have elapsed since the last sample. Reports whether
// a sample was written.
func MaybeUpdateCheckpoint(stateDB dex.StateDB, poolID [32]byte, priceFixed *big.Int, sampleTime, recordInterval uint64) bool {
	if recordInterval == 0 {
		return false
	}
	if priceFixed == nil || priceFixed.Sign() <= 0 {
		return false
	}

	cp := ReadCheckpoint(stateDB, poolID)
	if cp.Set() {
		if sampleTime < cp.SampleTime || sampleTime-cp.SampleTime < recordInterval {
			return false
		}
	}

	WriteCheckpoint(stateDB, poolID, PriceCheckpoint{SampleTime: sampleTime, PriceFixed: priceFixed})
	return true
}
