// Package colormark implements the 24-bit wallet color marker scheme.
//
// Every wallet carries a 6-hex-digit color that advances by one monotonic
// rule on each outbound transaction:
//
//	new_color = (old_color + hex_of(tx_hash)) mod 0x1000000
//
// hex_of splits the transaction hash's hex form into 6 equal substrings and
// reduces each to one hex digit by repeated digit summing. Validating a
// transition needs only the wallet's current color and the transaction hash,
// which is what lets a light client validate without replaying history.
package colormark

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SELF-HQ/self-chain-core/common"
)

// Initial is the color every new wallet starts from.
const Initial = "000000"

const (
	colorDigits = 6
	colorMod    = 0x1000000
)

var ErrInvalidColor = errors.New("colormark: color must be 6 hex characters")

// HexOf derives the 6-digit hex marker of a transaction hash.
func HexOf(txHash common.Hash) string {
	hexStr := strings.TrimPrefix(txHash.Hex(), "0x")
	partSize := len(hexStr) / colorDigits

	var out [colorDigits]byte
	for i := 0; i < colorDigits; i++ {
		start := i * partSize
		end := start + partSize
		if i == colorDigits-1 {
			end = len(hexStr) // last part absorbs the remainder
		}
		out[i] = reduceToHexDigit(hexStr[start:end])
	}
	return string(out[:])
}

// reduceToHexDigit sums the hex digit values of s repeatedly until the sum
// is a single hex digit (< 16), rendered uppercase.
func reduceToHexDigit(s string) byte {
	for {
		var sum uint64
		for _, c := range s {
			v, err := strconv.ParseUint(string(c), 16, 8)
			if err != nil {
				continue
			}
			sum += v
		}
		if sum < 16 {
			return strings.ToUpper(strconv.FormatUint(sum, 16))[0]
		}
		s = strconv.FormatUint(sum, 16)
	}
}

// NewColor advances old by the transaction marker, wrapping at 24 bits.
func NewColor(old, hexTx string) (string, error) {
	oldVal, err := parseColor(old)
	if err != nil {
		return "", err
	}
	txVal, err := parseColor(hexTx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06X", (oldVal+txVal)%colorMod), nil
}

// Advance computes the color that results from applying txHash to old.
func Advance(old string, txHash common.Hash) (string, error) {
	return NewColor(old, HexOf(txHash))
}

// ValidateTransition recomputes the transition from old via txHash and
// compares it to the claimed new color, case-insensitively.
func ValidateTransition(old, claimed string, txHash common.Hash) bool {
	want, err := Advance(old, txHash)
	if err != nil {
		return false
	}
	return strings.EqualFold(want, claimed)
}

func parseColor(s string) (uint64, error) {
	if len(s) != colorDigits {
		return 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return v, nil
}
