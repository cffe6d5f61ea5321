package types

import (
	"strconv"
	"strings"
)

// NormalizeName trims, collapses internal whitespace and upper-cases a
// person name so lookups and display are stable.
func NormalizeName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// TagCodeLen is the width of a tag code as read by the gate controllers
// (4 bytes, uppercase hex).
const TagCodeLen = 8

// NormalizeTagCode upper-cases and trims a tag code. Codes longer than
// TagCodeLen are cut to the first TagCodeLen characters and shorter
// hex codes are zero-padded, matching what the gate readers send.
func NormalizeTagCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if len(s) > TagCodeLen {
		return s[:TagCodeLen]
	}
	if isHex(s) && len(s) < TagCodeLen {
		return strings.Repeat("0", TagCodeLen-len(s)) + s
	}
	return s
}

// TagCodeFromUID renders a raw numeric reader UID as a tag code.
func TagCodeFromUID(uid uint64) string {
	return NormalizeTagCode(strings.ToUpper(strconv.FormatUint(uid, 16)))
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
