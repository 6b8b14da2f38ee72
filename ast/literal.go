package ast

import (
	"github.com/ggbclang/ggbc/token"
)

// parseIntToken converts a decimal or "0x"-prefixed hex literal token into
// a u16, wrapping on overflow to match the target's 16-bit arithmetic
// (spec.md §4.3). Digits are accumulated by hand (rather than
// strconv.ParseUint) so overflow wraps instead of erroring.
func parseIntToken(tok token.Token) (uint16, error) {
	base := uint16(10)
	s := tok.Val
	if tok.Kind == token.Hex {
		base = 16
		s = s[2:]
	}
	var v uint16
	for i := 0; i < len(s); i++ {
		v = v*base + uint16(digitValue(s[i]))
	}
	return v, nil
}

func digitValue(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10
	default:
		return 0
	}
}
