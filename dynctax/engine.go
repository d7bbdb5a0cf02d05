// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dynctax implements a directional transaction tax precompile
// that plugs into the DEX pool manager as a beforeSwap+afterSwap hook.
// Swaps buying the configured target asset owe a flat input-side charge;
// swaps selling it owe a loss-tiered charge split between a recipient and
// a burn sink, measured against per-pool price checkpoints the module
// records on a configured interval.
package dynctax

import (
	"encoding/binary"
	"math/big"

	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/levislee/pancakeswap-hooks-dynctax/dex"
)

// Engine assesses tax around swaps. Before the swap it quotes the
// input-side charge the host escrows from the trader; after the swap it
// routes buy proceeds, settles reserved sell charges and refreshes the
// pool's price checkpoint.
type Engine struct {
	logger  *zap.Logger
	journal *Recorder
}

// NewEngine returns an engine logging through logger. A nil logger
// disables logging; the journal stays disabled until a database is
// attached.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, journal: NewRecorder(nil, nil)}
}

// TaxParams is the operative configuration the engine reads from module
// storage. Configure persists it when the precompile activates.
type TaxParams struct {
	TargetAsset           dex.Currency
	BuyTaxBps             uint64
	RecordIntervalSeconds uint64
	BuyFeeReceiver        common.Address
	SellFeeReceiver       common.Address
	SellBurnReceiver      common.Address
}

var (
	paramsTargetKey       = storageKey(configPrefix, []byte("targetAsset"))
	paramsBuyTaxKey       = storageKey(configPrefix, []byte("buyTaxBps"))
	paramsIntervalKey     = storageKey(configPrefix, []byte("recordInterval"))
	paramsBuyReceiverKey  = storageKey(configPrefix, []byte("buyFeeReceiver"))
	paramsSellReceiverKey = storageKey(configPrefix, []byte("sellFeeReceiver"))
	paramsBurnReceiverKey = storageKey(configPrefix, []byte("sellBurnReceiver"))
)

func storeTaxParams(stateDB dex.StateDB, params TaxParams) {
	var target common.Hash
	target[0] = 1
	copy(target[12:32], params.TargetAsset.ToBytes())
	stateDB.SetState(taxAddr, paramsTargetKey, target)

	var buyWord common.Hash
	binary.BigEndian.PutUint64(buyWord[24:32], params.BuyTaxBps)
	stateDB.SetState(taxAddr, paramsBuyTaxKey, buyWord)

	var intervalWord common.Hash
	binary.BigEndian.PutUint64(intervalWord[24:32], params.RecordIntervalSeconds)
	stateDB.SetState(taxAddr, paramsIntervalKey, intervalWord)

	stateDB.SetState(taxAddr, paramsBuyReceiverKey, common.BytesToHash(params.BuyFeeReceiver.Bytes()))
	stateDB.SetState(taxAddr, paramsSellReceiverKey, common.BytesToHash(params.SellFeeReceiver.Bytes()))
	stateDB.SetState(taxAddr, paramsBurnReceiverKey, common.BytesToHash(params.SellBurnReceiver.Bytes()))
}

// loadTaxParams reads the stored configuration. The second return is
// false while the module has never been configured, in which case every
// swap passes through unassessed.
func loadTaxParams(stateDB dex.StateDB) (TaxParams, bool) {
	target := stateDB.GetState(taxAddr, paramsTargetKey)
	if target[0] != 1 {
		return TaxParams{}, false
	}

	buyWord := stateDB.GetState(taxAddr, paramsBuyTaxKey)
	intervalWord := stateDB.GetState(taxAddr, paramsIntervalKey)
	buyRecv := stateDB.GetState(taxAddr, paramsBuyReceiverKey)
	sellRecv := stateDB.GetState(taxAddr, paramsSellReceiverKey)
	burnRecv := stateDB.GetState(taxAddr, paramsBurnReceiverKey)

	return TaxParams{
		TargetAsset:           dex.CurrencyFromBytes(target[12:32]),
		BuyTaxBps:             binary.BigEndian.Uint64(buyWord[24:32]),
		RecordIntervalSeconds: binary.BigEndian.Uint64(intervalWord[24:32]),
		BuyFeeReceiver:        common.BytesToAddress(buyRecv[12:32]),
		SellFeeReceiver:       common.BytesToAddress(sellRecv[12:32]),
		SellBurnReceiver:      common.BytesToAddress(burnRecv[12:32]),
	}, true
}

// BeforeTrade quotes the input-side charge for a swap about to execute.
// Buys owe the flat rate. Sells owe the loss-tier charge, which is also
// reserved under (trader, pool) for settlement after the swap. Swaps
// that do not touch the taxed asset, and degenerate zero-amount swaps,
// pass through with zero charges.
func (e *Engine) BeforeTrade(stateDB dex.StateDB, call dex.BeforeSwapCall) (dex.BeforeSwapResult, error) {
	result := dex.BeforeSwapResult{
		SpecifiedCharge:   new(big.Int),
		UnspecifiedCharge: new(big.Int),
	}

	params, ok := loadTaxParams(stateDB)
	if !ok {
		return result, nil
	}

	cls, ok := Classify(call.Key, call.Params, params.TargetAsset)
	if !ok || cls.Kind == TradeNone {
		return result, nil
	}

	var charge *big.Int
	switch cls.Kind {
	case TradeBuy:
		charge = BuyTax(call.Params.AmountSpecified, params.BuyTaxBps)

	case TradeSell:
		poolID := call.Key.ID()
		current, live := PoolPriceFixed(stateDB, call.Key, params.TargetAsset)
		if !live {
			return result, nil
		}

		cp := ReadCheckpoint(stateDB, poolID)
		recvAmount, burnAmount := SellTax(call.Params.AmountSpecified, cp.PriceFixed, current)

		entry := PendingSettlement{
			InputAsset: cls.InputAsset,
			RecvAmount: recvAmount,
			BurnAmount: burnAmount,
		}
		charge = entry.Total()
		if charge.Sign() > 0 {
			Reserve(stateDB, call.Sender, poolID, entry)
		}
	}

	if cls.ChargeSpecified {
		result.SpecifiedCharge = charge
	} else {
		result.UnspecifiedCharge = charge
	}

	e.logger.Debug("assessed swap",
		zap.String("kind", cls.Kind.String()),
		zap.String("trader", call.Sender.Hex()),
		zap.String("charge", charge.String()),
	)
	return result, nil
}

// AfterTrade settles a swap that just executed: buy charges move to the
// buy fee receiver, reserved sell charges move to the sell receivers,
// and the pool's checkpoint is refreshed when the recording interval
// allows. A settlement failure aborts the trade; the host reverts it.
func (e *Engine) AfterTrade(stateDB dex.StateDB, call dex.AfterSwapCall) error {
	params, ok := loadTaxParams(stateDB)
	if !ok {
		return nil
	}

	cls, ok := Classify(call.Key, call.Params, params.TargetAsset)
	if !ok || cls.Kind == TradeNone {
		return nil
	}

	poolID := call.Key.ID()

	switch cls.Kind {
	case TradeBuy:
		charge := BuyTax(call.Params.AmountSpecified, params.BuyTaxBps)
		if charge.Sign() > 0 {
			if err := dex.VaultWithdraw(stateDB, taxAddr, cls.InputAsset, params.BuyFeeReceiver, charge); err != nil {
				return err
			}
			e.journal.RecordSettlement(SettlementRecord{
				Kind:       TradeBuy,
				Trader:     call.Sender,
				PoolID:     poolID,
				Asset:      cls.InputAsset,
				RecvAmount: charge,
				BurnAmount: new(big.Int),
			})
		}

	case TradeSell:
		entry, found := ConsumeAndClear(stateDB, call.Sender, poolID)
		if !found {
			missed := bumpMissedSettlements(stateDB)
			e.logger.Warn("sell settled without a reservation",
				zap.String("trader", call.Sender.Hex()),
				zap.Uint64("missedTotal", missed),
			)
			break
		}

		if entry.RecvAmount.Sign() > 0 {
			if err := dex.VaultWithdraw(stateDB, taxAddr, entry.InputAsset, params.SellFeeReceiver, entry.RecvAmount); err != nil {
				return err
			}
		}
		if entry.BurnAmount.Sign() > 0 {
			if err := dex.VaultWithdraw(stateDB, taxAddr, entry.InputAsset, params.SellBurnReceiver, entry.BurnAmount); err != nil {
				return err
			}
		}
		e.journal.RecordSettlement(SettlementRecord{
			Kind:       TradeSell,
			Trader:     call.Sender,
			PoolID:     poolID,
			Asset:      entry.InputAsset,
			RecvAmount: entry.RecvAmount,
			BurnAmount: entry.BurnAmount,
		})
	}

	if current, live := PoolPriceFixed(stateDB, call.Key, params.TargetAsset); live {
		sampleTime := stateDB.GetBlockTime()
		if MaybeUpdateCheckpoint(stateDB, poolID, current, sampleTime, params.RecordIntervalSeconds) {
			e.journal.RecordCheckpoint(poolID, current, sampleTime)
			e.logger.Debug("recorded price checkpoint",
				zap.String("price", current.String()),
				zap.Uint64("sampleTime", sampleTime),
			)
		}
	}

	return nil
}
