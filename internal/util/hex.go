package util

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// Hex2Bytes decodes a 0x-prefixed or bare hex string into bytes. Invalid
// input returns nil, matching the teacher's tolerant decode-and-ignore
// style for test-harness inputs.
func Hex2Bytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// ExtractGasCost computes gasUsed * effectiveGasPrice from a receipt's hex
// string fields.
func ExtractGasCost(gasUsedHex, effectiveGasPriceHex string) (*big.Int, error) {
	gasUsed := new(big.Int)
	if _, ok := gasUsed.SetString(strings.TrimPrefix(gasUsedHex, "0x"), 16); !ok {
		if _, ok := gasUsed.SetString(gasUsedHex, 10); !ok {
			return nil, errInvalidHexInt("gasUsed", gasUsedHex)
		}
	}
	gasPrice := new(big.Int)
	if _, ok := gasPrice.SetString(strings.TrimPrefix(effectiveGasPriceHex, "0x"), 16); !ok {
		if _, ok := gasPrice.SetString(effectiveGasPriceHex, 10); !ok {
			return nil, errInvalidHexInt("effectiveGasPrice", effectiveGasPriceHex)
		}
	}
	return new(big.Int).Mul(gasUsed, gasPrice), nil
}

type hexParseError struct {
	field, value string
}

func (e *hexParseError) Error() string {
	return "util: could not parse " + e.field + " value " + e.value + " as hex or decimal integer"
}

func errInvalidHexInt(field, value string) error {
	return &hexParseError{field: field, value: value}
}
