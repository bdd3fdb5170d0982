package ifc

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// formatCoord renders a coordinate with two decimals. Negative zero prints as 0.00.
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// quote returns s as a STEP string literal.
func quote(s string) string {
	return "'" + escape(s) + "'"
}

// optional returns '$' for an empty string and a quoted literal otherwise.
func optional(s string) string {
	if s == "" {
		return "$"
	}
	return quote(s)
}

// escape applies the ISO-10303-21 string encoding: apostrophes and
// backslashes are doubled, runs of non-ASCII characters are written as
// \X2\hhhh...\X0\ (or \X4\ for characters outside the BMP).
func escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '\'':
			b.WriteString("''")
		case r == '\\':
			b.WriteString(`\\`)
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// Control characters are not representable; drop them.
		default:
			j := i
			wide := false
			for j < len(s) {
				rr, n := utf8.DecodeRuneInString(s[j:])
				if rr < 0x80 {
					break
				}
				if rr > 0xffff {
					wide = true
				}
				j += n
			}
			run := s[i:j]
			if wide {
				b.WriteString(`\X4\`)
				for _, rr := range run {
					fmt.Fprintf(&b, "%08X", rr)
				}
			} else {
				b.WriteString(`\X2\`)
				for _, rr := range run {
					fmt.Fprintf(&b, "%04X", rr)
				}
			}
			b.WriteString(`\X0\`)
			i = j
			continue
		}
		i += size
	}
	return b.String()
}

const guidAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_$"

// GlobalID compresses a UUID into the 22 character IfcGloballyUniqueId form.
func GlobalID(u uuid.UUID) string {
	n := new(big.Int).SetBytes(u[:])
	base := big.NewInt(64)
	digit := new(big.Int)

	out := make([]byte, 22)
	for i := len(out) - 1; i >= 0; i-- {
		n.DivMod(n, base, digit)
		out[i] = guidAlphabet[digit.Int64()]
	}
	return string(out)
}
