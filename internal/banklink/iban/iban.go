// Package iban implements the ISO 13616 mod-97 shape check used to warn
// about malformed receiver accounts. Warning-level only: banklink banks
// historically accepted domestic account numbers too.
package iban

import (
	"math/big"
	"strings"
)

var ninetySeven = big.NewInt(97)

// Valid reports whether s passes the IBAN mod-97 check.
func Valid(s string) bool {
	s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	if len(s) < 5 || len(s) > 34 {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' || s[1] < 'A' || s[1] > 'Z' {
		return false
	}

	rearranged := s[4:] + s[:4]
	var digits strings.Builder
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case c >= '0' && c <= '9':
			digits.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			digits.WriteString(big.NewInt(int64(c-'A') + 10).String())
		default:
			return false
		}
	}

	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, ninetySeven).Int64() == 1
}
