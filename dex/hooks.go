// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/math"
	"github.com/zeebo/blake3"
)

// HookPermissions contains the flags derived from a hook address
// Following Uniswap v4 pattern where hook address encodes capabilities
type HookPermissions struct {
	BeforeInitialize      bool
	AfterInitialize       bool
	BeforeAddLiquidity    bool
	AfterAddLiquidity     bool
	BeforeRemoveLiquidity bool
	AfterRemoveLiquidity  bool
	BeforeSwap            bool
	AfterSwap             bool
	BeforeDonate          bool
	AfterDonate           bool
	BeforeFlash           bool
	AfterFlash            bool
}

// Hook function signatures (4-byte selectors)
var (
	SigBeforeInitialize      = []byte{0x01, 0x00, 0x00, 0x01}
	SigAfterInitialize       = []byte{0x01, 0x00, 0x00, 0x02}
	SigBeforeAddLiquidity    = []byte{0x02, 0x00, 0x00, 0x01}
	SigAfterAddLiquidity     = []byte{0x02, 0x00, 0x00, 0x02}
	SigBeforeRemoveLiquidity = []byte{0x02, 0x00, 0x00, 0x03}
	SigAfterRemoveLiquidity  = []byte{0x02, 0x00, 0x00, 0x04}
	SigBeforeSwap            = []byte{0x03, 0x00, 0x00, 0x01}
	SigAfterSwap             = []byte{0x03, 0x00, 0x00, 0x02}
	SigBeforeDonate          = []byte{0x04, 0x00, 0x00, 0x01}
	SigAfterDonate           = []byte{0x04, 0x00, 0x00, 0x02}
	SigBeforeFlash           = []byte{0x05, 0x00, 0x00, 0x01}
	SigAfterFlash            = []byte{0x05, 0x00, 0x00, 0x02}
)

// Fixed layouts of the packed swap hook calls. Each call is the selector,
// then sender, pool key, direction flag and the 32-byte words; trailing
// bytes are opaque hook data.
const (
	beforeSwapFixedLen = 4 + 20 + 66 + 1 + 32 + 32      // 155
	afterSwapFixedLen  = 4 + 20 + 66 + 1 + 32 + 32 + 32 // 187

	// BeforeSwapReturnLen is the exact beforeSwap return size:
	// specified-side charge, unspecified-side charge, fee override word.
	BeforeSwapReturnLen = 32 + 32 + 32
)

// Hook errors
var (
	ErrHookNotRegistered  = errors.New("hook not registered")
	ErrHookInvalidAddress = errors.New("hook address doesn't match capabilities")
	ErrHookInvalidInput   = errors.New("malformed hook call input")
)

// ValidateHookAddress validates that a hook address encodes the claimed permissions
// Following Uniswap v4, the leading bits of the address encode hook capabilities
func ValidateHookAddress(addr common.Address, permissions HookPermissions) error {
	encoded := EncodeHookPermissions(permissions)

	// Check that the address prefix matches the permissions
	// First 2 bytes of address should match permission flags
	addrFlags := binary.BigEndian.Uint16(addr[0:2])

	if addrFlags != uint16(encoded) {
		return ErrHookInvalidAddress
	}

	return nil
}

// EncodeHookPermissions encodes permissions into a HookFlags bitmap
func EncodeHookPermissions(p HookPermissions) HookFlags {
	var flags HookFlags

	if p.BeforeInitialize {
		flags |= HookBeforeInitialize
	}
	if p.AfterInitialize {
		flags |= HookAfterInitialize
	}
	if p.BeforeAddLiquidity {
		flags |= HookBeforeAddLiquidity
	}
	if p.AfterAddLiquidity {
		flags |= HookAfterAddLiquidity
	}
	if p.BeforeRemoveLiquidity {
		flags |= HookBeforeRemoveLiquidity
	}
	if p.AfterRemoveLiquidity {
		flags |= HookAfterRemoveLiquidity
	}
	if p.BeforeSwap {
		flags |= HookBeforeSwap
	}
	if p.AfterSwap {
		flags |= HookAfterSwap
	}
	if p.BeforeDonate {
		flags |= HookBeforeDonate
	}
	if p.AfterDonate {
		flags |= HookAfterDonate
	}
	if p.BeforeFlash {
		flags |= HookBeforeFlash
	}
	if p.AfterFlash {
		flags |= HookAfterFlash
	}

	return flags
}

// DecodeHookPermissions decodes a HookFlags bitmap into permissions
func DecodeHookPermissions(flags HookFlags) HookPermissions {
	return HookPermissions{
		BeforeInitialize:      flags&HookBeforeInitialize != 0,
		AfterInitialize:       flags&HookAfterInitialize != 0,
		BeforeAddLiquidity:    flags&HookBeforeAddLiquidity != 0,
		AfterAddLiquidity:     flags&HookAfterAddLiquidity != 0,
		BeforeRemoveLiquidity: flags&HookBeforeRemoveLiquidity != 0,
		AfterRemoveLiquidity:  flags&HookAfterRemoveLiquidity != 0,
		BeforeSwap:            flags&HookBeforeSwap != 0,
		AfterSwap:             flags&HookAfterSwap != 0,
		BeforeDonate:          flags&HookBeforeDonate != 0,
		AfterDonate:           flags&HookAfterDonate != 0,
		BeforeFlash:           flags&HookBeforeFlash != 0,
		AfterFlash:            flags&HookAfterFlash != 0,
	}
}

// GetHookPermissionsFromAddress extracts permissions from hook address
func GetHookPermissionsFromAddress(addr common.Address) HookPermissions {
	flags := HookFlags(binary.BigEndian.Uint16(addr[0:2]))
	return DecodeHookPermissions(flags)
}

// HasPermission checks if an address has a specific hook permission
func HasPermission(addr common.Address, flag HookFlags) bool {
	addrFlags := HookFlags(binary.BigEndian.Uint16(addr[0:2]))
	return addrFlags&flag != 0
}

// GenerateHookAddress generates a valid hook address for given permissions
// Uses CREATE2-style address derivation
func GenerateHookAddress(deployer common.Address, salt [32]byte, permissions HookPermissions) common.Address {
	flags := EncodeHookPermissions(permissions)

	h := blake3.New()
	h.Write([]byte{0xff}) // CREATE2 prefix
	h.Write(deployer.Bytes())
	h.Write(salt[:])

	// Derive address
	var hash [32]byte
	h.Digest().Read(hash[:])

	// Set permission flags in first 2 bytes
	var addr common.Address
	copy(addr[:], hash[12:32])
	binary.BigEndian.PutUint16(addr[0:2], uint16(flags))

	return addr
}

// =========================================================================
// Swap Hook Wire Format
// =========================================================================

// BeforeSwapCall is a decoded beforeSwap hook invocation.
type BeforeSwapCall struct {
	Sender   common.Address
	Key      PoolKey
	Params   SwapParams
	HookData []byte
}

// AfterSwapCall is a decoded afterSwap hook invocation.
type AfterSwapCall struct {
	Sender   common.Address
	Key      PoolKey
	Params   SwapParams
	Delta    BalanceDelta
	HookData []byte
}

// BeforeSwapResult is a decoded beforeSwap hook return. Charges are the
// non-negative amounts the hook takes from the trader on each swap side.
// FeeOverride of zero leaves the pool's static fee untouched.
type BeforeSwapResult struct {
	SpecifiedCharge   *big.Int
	UnspecifiedCharge *big.Int
	FeeOverride       uint24
}

// putSigned writes a big.Int as a 32-byte two's complement word.
func putSigned(dst []byte, v *big.Int) []byte {
	word := math.U256Bytes(new(big.Int).Set(v))
	return append(dst, word...)
}

// readSigned interprets a 32-byte word as two's complement.
func readSigned(src []byte) *big.Int {
	return math.S256(new(big.Int).SetBytes(src))
}

// PackBeforeSwapParams packs parameters for a beforeSwap hook call
func PackBeforeSwapParams(sender common.Address, key PoolKey, params SwapParams, hookData []byte) []byte {
	data := make([]byte, 0, beforeSwapFixedLen+len(hookData))
	data = append(data, SigBeforeSwap...)
	data = append(data, sender.Bytes()...)
	data = append(data, key.ToBytes()...)

	if params.ZeroForOne {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}

	data = putSigned(data, params.AmountSpecified)

	priceLimitBytes := make([]byte, 32)
	if params.SqrtPriceLimitX96 != nil {
		params.SqrtPriceLimitX96.FillBytes(priceLimitBytes)
	}
	data = append(data, priceLimitBytes...)

	data = append(data, hookData...)
	return data
}

// UnpackBeforeSwapParams decodes a beforeSwap call. The input includes the
// selector; callers dispatch on it before decoding.
func UnpackBeforeSwapParams(input []byte) (BeforeSwapCall, error) {
	if len(input) < beforeSwapFixedLen {
		return BeforeSwapCall{}, ErrHookInvalidInput
	}

	var call BeforeSwapCall
	call.Sender = common.BytesToAddress(input[4:24])

	key, err := PoolKeyFromBytes(input[24:90])
	if err != nil {
		return BeforeSwapCall{}, ErrHookInvalidInput
	}
	call.Key = key

	call.Params.ZeroForOne = input[90] == 1
	call.Params.AmountSpecified = readSigned(input[91:123])
	call.Params.SqrtPriceLimitX96 = new(big.Int).SetBytes(input[123:155])
	call.HookData = input[beforeSwapFixedLen:]

	return call, nil
}

// PackAfterSwapParams packs parameters for an afterSwap hook call
func PackAfterSwapParams(sender common.Address, key PoolKey, params SwapParams, delta BalanceDelta, hookData []byte) []byte {
	data := make([]byte, 0, afterSwapFixedLen+len(hookData))
	data = append(data, SigAfterSwap...)
	data = append(data, sender.Bytes()...)
	data = append(data, key.ToBytes()...)

	if params.ZeroForOne {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}

	data = putSigned(data, params.AmountSpecified)
	data = putSigned(data, delta.Amount0)
	data = putSigned(data, delta.Amount1)

	data = append(data, hookData...)
	return data
}

// UnpackAfterSwapParams decodes an afterSwap call.
func UnpackAfterSwapParams(input []byte) (AfterSwapCall, error) {
	if len(input) < afterSwapFixedLen {
		return AfterSwapCall{}, ErrHookInvalidInput
	}

	var call AfterSwapCall
	call.Sender = common.BytesToAddress(input[4:24])

	key, err := PoolKeyFromBytes(input[24:90])
	if err != nil {
		return AfterSwapCall{}, ErrHookInvalidInput
	}
	call.Key = key

	call.Params.ZeroForOne = input[90] == 1
	call.Params.AmountSpecified = readSigned(input[91:123])
	call.Delta = NewBalanceDelta(readSigned(input[123:155]), readSigned(input[155:187]))
	call.HookData = input[afterSwapFixedLen:]

	return call, nil
}

// PackBeforeSwapReturn packs a hook's beforeSwap return value.
func PackBeforeSwapReturn(result BeforeSwapResult) []byte {
	data := make([]byte, BeforeSwapReturnLen)
	if result.SpecifiedCharge != nil {
		result.SpecifiedCharge.FillBytes(data[0:32])
	}
	if result.UnspecifiedCharge != nil {
		result.UnspecifiedCharge.FillBytes(data[32:64])
	}
	binary.BigEndian.PutUint32(data[92:96], result.FeeOverride)
	return data
}

// UnpackBeforeSwapReturn decodes and validates a hook's beforeSwap return.
func UnpackBeforeSwapReturn(data []byte) (BeforeSwapResult, error) {
	if len(data) != BeforeSwapReturnLen {
		return BeforeSwapResult{}, ErrInvalidHookResponse
	}

	result := BeforeSwapResult{
		SpecifiedCharge:   new(big.Int).SetBytes(data[0:32]),
		UnspecifiedCharge: new(big.Int).SetBytes(data[32:64]),
		FeeOverride:       binary.BigEndian.Uint32(data[92:96]),
	}

	// The fee override field only occupies the word's low four bytes
	for _, b := range data[64:92] {
		if b != 0 {
			return BeforeSwapResult{}, ErrInvalidHookResponse
		}
	}
	if result.FeeOverride > FeeMax {
		return BeforeSwapResult{}, ErrInvalidHookResponse
	}

	return result, nil
}

// PackAfterSwapReturn packs a hook's afterSwap acknowledgement word.
func PackAfterSwapReturn() []byte {
	return make([]byte, 32)
}

// UnpackAfterSwapReturn validates a hook's afterSwap return.
func UnpackAfterSwapReturn(data []byte) error {
	if len(data) != 32 {
		return ErrInvalidHookResponse
	}
	for _, b := range data {
		if b != 0 {
			return ErrInvalidHookResponse
		}
	}
	return nil
}
