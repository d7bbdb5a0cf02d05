// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"errors"

	luxcrypto "github.com/luxfi/crypto"
)

// SelectorLen is the length of the function-selector prefix on call input.
const SelectorLen = 4

var (
	ErrOutOfGas        = errors.New("out of gas")
	ErrInvalidSelector = errors.New("invalid function selector")
)

// CalculateFunctionSelector returns the first four bytes of the keccak256
// hash of a canonical signature such as "withdraw(address,address,uint256)".
func CalculateFunctionSelector(functionSignature string) []byte {
	hash := luxcrypto.Keccak256([]byte(functionSignature))
	return hash[:SelectorLen]
}

// DeductGas charges requiredGas against suppliedGas.
func DeductGas(suppliedGas uint64, requiredGas uint64) (uint64, error) {
	if suppliedGas < requiredGas {
		return 0, ErrOutOfGas
	}
	return suppliedGas - requiredGas, nil
}

// ParseSelector splits call input into its selector and argument bytes.
func ParseSelector(input []byte) ([SelectorLen]byte, []byte, error) {
	var sel [SelectorLen]byte
	if len(input) < SelectorLen {
		return sel, nil, ErrInvalidSelector
	}
	copy(sel[:], input[:SelectorLen])
	return sel, input[SelectorLen:], nil
}
