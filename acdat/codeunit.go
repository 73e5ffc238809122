package acdat

import (
	"unicode"
	"unicode/utf16"
)

// encodeUnits decodes s to runes and re-encodes it as UTF-16 code
// units, matching the native string representation patterns and input
// text are specified against. Astral code points become surrogate
// pairs; the pairs are never reassembled during matching, so matches
// spanning only one half of a surrogate pair are possible by design.
func encodeUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// foldUnits applies invariant upper-casing code-unit by code-unit, the
// same transform Builder.Add applies to an ignore_case pattern before
// insertion. Surrogate halves are outside Unicode's letter tables and
// pass through unchanged.
func foldUnits(units []uint16) []uint16 {
	out := make([]uint16, len(units))
	for i, u := range units {
		out[i] = uint16(unicode.ToUpper(rune(u)))
	}
	return out
}
