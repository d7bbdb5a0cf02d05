// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"encoding/binary"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
)

// PendingSettlement holds the sell-side amounts reserved before a swap
// for one (trader, pool) pair, to be routed once the swap has executed.
type PendingSettlement struct {
	InputAsset dex.Currency
	RecvAmount *big.Int
	BurnAmount *big.Int
}

// Total returns the combined charge the trader owes for this entry.
func (p PendingSettlement) Total() *big.Int {
	total := new(big.Int)
	if p.RecvAmount != nil {
		total.Add(total, p.RecvAmount)
	}
	if p.BurnAmount != nil {
		total.Add(total, p.BurnAmount)
	}
	return total
}

func pendingID(trader common.Address, poolID [32]byte, field string) []byte {
	id := make([]byte, 0, 20+32+len(field))
	id = append(id, trader.Bytes()...)
	id = append(id, poolID[:]...)
	id = append(id, field...)
	return id
}

func pendingAssetKey(trader common.Address, poolID [32]byte) common.Hash {
	return storageKey(pendingPrefix, pendingID(trader, poolID, "asset"))
}

func pendingRecvKey(trader common.Address, poolID [32]byte) common.Hash {
	return storageKey(pendingPrefix, pendingID(trader, poolID, "recv"))
}

func pendingBurnKey(trader common.Address, poolID [32]byte) common.Hash {
	return storageKey(pendingPrefix, pendingID(trader, poolID, "burn"))
}

// Reserve writes (or overwrites) the pending settlement for a trader and
// pool. The asset word carries a marker byte so an explicit entry is
// distinguishable from an empty slot.
func Reserve(stateDB dex.StateDB, trader common.Address, poolID [32]byte, entry PendingSettlement) {
	var assetWord common.Hash
	assetWord[0] = 1
	copy(assetWord[12:32], entry.InputAsset.ToBytes())
	stateDB.SetState(taxAddr, pendingAssetKey(trader, poolID), assetWord)

	var recvWord common.Hash
	if entry.RecvAmount != nil {
		entry.RecvAmount.FillBytes(recvWord[:])
	}
	stateDB.SetState(taxAddr, pendingRecvKey(trader, poolID), recvWord)

	var burnWord common.Hash
	if entry.BurnAmount != nil {
		entry.BurnAmount.FillBytes(burnWord[:])
	}
	stateDB.SetState(taxAddr, pendingBurnKey(trader, poolID), burnWord)
}

// PendingOf reads the entry for a trader and pool without clearing it.
// Absent entries come back zeroed with found == false.
func PendingOf(stateDB dex.StateDB, trader common.Address, poolID [32]byte) (PendingSettlement, bool) {
	assetWord := stateDB.GetState(taxAddr, pendingAssetKey(trader, poolID))
	recvWord := stateDB.GetState(taxAddr, pendingRecvKey(trader, poolID))
	burnWord := stateDB.GetState(taxAddr, pendingBurnKey(trader, poolID))

	entry := PendingSettlement{
		InputAsset: dex.CurrencyFromBytes(assetWord[12:32]),
		RecvAmount: new(big.Int).SetBytes(recvWord[:]),
		BurnAmount: new(big.Int).SetBytes(burnWord[:]),
	}
	return entry, assetWord[0] == 1
}

// ConsumeAndClear removes and returns the entry for a trader and pool.
// The slots are cleared whether or not an entry was present, so a stale
// reservation can never settle twice.
func ConsumeAndClear(stateDB dex.StateDB, trader common.Address, poolID [32]byte) (PendingSettlement, bool) {
	entry, found := PendingOf(stateDB, trader, poolID)

	stateDB.SetState(taxAddr, pendingAssetKey(trader, poolID), common.Hash{})
	stateDB.SetState(taxAddr, pendingRecvKey(trader, poolID), common.Hash{})
	stateDB.SetState(taxAddr, pendingBurnKey(trader, poolID), common.Hash{})

	return entry, found
}

var missedSettlementsKey = storageKey(statsPrefix, []byte("missedSettlements"))

// MissedSettlements returns how many sell settlements found no pending
// entry to consume. Zero-charge sells reserve nothing, so the count
// includes untaxed sells (no checkpoint yet, or no price decline) as
// well as genuinely lost reservations.
func MissedSettlements(stateDB dex.StateDB) uint64 {
	word := stateDB.GetState(taxAddr, missedSettlementsKey)
	return binary.BigEndian.Uint64(word[24:32])
}

func bumpMissedSettlements(stateDB dex.StateDB) uint64 {
	n := MissedSettlements(stateDB) + 1
	var word common.Hash
	binary.BigEndian.PutUint64(word[24:32], n)
	stateDB.SetState(taxAddr, missedSettlementsKey, word)
	return n
}
