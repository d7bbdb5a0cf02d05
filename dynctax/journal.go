// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dynctax

import (
	"encoding/binary"
	"math/big"
	"sync/atomic"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
)

// Journal key prefixes.
var (
	journalCheckpointPrefix = []byte("jckpt/")
	journalSettlementPrefix = []byte("jstl/")
)

const settlementRecordLen = 1 + 20 + 32 + 20 + 32 + 32

// Recorder journals checkpoint and settlement activity to a node-local
// database for operational inspection. It is write-only on the hot path
// and never fails a trade: journal errors are logged and dropped. A nil
// database disables recording.
type Recorder struct {
	db     database.Database
	logger *zap.Logger
	seq    atomic.Uint64
}

// NewRecorder wraps db; either argument may be nil. The settlement
// sequence resumes past any records already in the database.
func NewRecorder(db database.Database, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{db: db, logger: logger}

	if db != nil {
		iter := db.NewIteratorWithPrefix(journalSettlementPrefix)
		var last uint64
		for iter.Next() {
			key := iter.Key()
			if len(key) == len(journalSettlementPrefix)+8 {
				last = binary.BigEndian.Uint64(key[len(journalSettlementPrefix):])
			}
		}
		iter.Release()
		r.seq.Store(last)
	}
	return r
}

// CheckpointRecord is one journaled checkpoint sample.
type CheckpointRecord struct {
	PoolID     [32]byte
	SampleTime uint64
	PriceFixed *big.Int
}

// SettlementRecord is one journaled tax settlement.
type SettlementRecord struct {
	Kind       TradeKind
	Trader     common.Address
	PoolID     [32]byte
	Asset      dex.Currency
	RecvAmount *big.Int
	BurnAmount *big.Int
}

// RecordCheckpoint journals a checkpoint write.
func (r *Recorder) RecordCheckpoint(poolID [32]byte, priceFixed *big.Int, sampleTime uint64) {
	if r == nil || r.db == nil {
		return
	}

	key := make([]byte, 0, len(journalCheckpointPrefix)+32+8)
	key = append(key, journalCheckpointPrefix...)
	key = append(key, poolID[:]...)
	key = binary.BigEndian.AppendUint64(key, sampleTime)

	value := make([]byte, 32)
	priceFixed.FillBytes(value)

	if err := r.db.Put(key, value); err != nil {
		r.logger.Warn("journal checkpoint write failed", zap.Error(err))
	}
}

// CheckpointHistory returns a pool's journaled samples in time order.
func (r *Recorder) CheckpointHistory(poolID [32]byte) ([]CheckpointRecord, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	prefix := make([]byte, 0, len(journalCheckpointPrefix)+32)
	prefix = append(prefix, journalCheckpointPrefix...)
	prefix = append(prefix, poolID[:]...)

	iter := r.db.NewIteratorWithPrefix(prefix)
	defer iter.Release()

	var out []CheckpointRecord
	for iter.Next() {
		key := iter.Key()
		if len(key) != len(prefix)+8 {
			continue
		}
		out = append(out, CheckpointRecord{
			PoolID:     poolID,
			SampleTime: binary.BigEndian.Uint64(key[len(prefix):]),
			PriceFixed: new(big.Int).SetBytes(iter.Value()),
		})
	}
	return out, iter.Error()
}

// RecordSettlement journals one settlement.
func (r *Recorder) RecordSettlement(rec SettlementRecord) {
	if r == nil || r.db == nil {
		return
	}

	key := make([]byte, 0, len(journalSettlementPrefix)+8)
	key = append(key, journalSettlementPrefix...)
	key = binary.BigEndian.AppendUint64(key, r.seq.Add(1))

	value := make([]byte, 0, settlementRecordLen)
	value = append(value, byte(rec.Kind))
	value = append(value, rec.Trader.Bytes()...)
	value = append(value, rec.PoolID[:]...)
	value = append(value, rec.Asset.ToBytes()...)

	word := make([]byte, 32)
	rec.RecvAmount.FillBytes(word)
	value = append(value, word...)
	word = make([]byte, 32)
	rec.BurnAmount.FillBytes(word)
	value = append(value, word...)

	if err := r.db.Put(key, value); err != nil {
		r.logger.Warn("journal settlement write failed", zap.Error(err))
	}
}

// Settlements returns all journaled settlements in write order.
func (r *Recorder) Settlements() ([]SettlementRecord, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	iter := r.db.NewIteratorWithPrefix(journalSettlementPrefix)
	defer iter.Release()

	var out []SettlementRecord
	for iter.Next() {
		value := iter.Value()
		if len(value) != settlementRecordLen {
			continue
		}
		rec := SettlementRecord{Kind: TradeKind(value[0])}
		rec.Trader = common.BytesToAddress(value[1:21])
		copy(rec.PoolID[:], value[21:53])
		rec.Asset = dex.CurrencyFromBytes(value[53:73])
		rec.RecvAmount = new(big.Int).SetBytes(value[73:105])
		rec.BurnAmount = new(big.Int).SetBytes(value[105:137])
		out = append(out, rec)
	}
	return out, iter.Error()
}
