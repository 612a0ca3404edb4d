package node

import (
	"errors"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

var (
	decimalLiteral = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)
	integerLiteral = regexp.MustCompile(`^[+-]?\d+$`)
	radixLiteral   = regexp.MustCompile(`^0(?:[xX][0-9a-fA-F]+|[oO][0-7]+|[bB][01]+)$`)
)

// Coerce infers a typed value from edited text. The first matching rule wins:
// a numeric literal becomes a number, "true"/"false" a bool, "null" nil, and
// anything else stays a string. Text that merely looks typed is converted,
// so a string field edited to "true" becomes a bool.
func Coerce(text string) any {
	if n, ok := ParseNumber(text); ok {
		return n
	}
	switch text {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	return text
}

// ParseNumber parses text as a numeric literal after trimming surrounding
// whitespace. Integral decimal literals that fit in int64 yield int64; every
// other literal yields float64. Blank text is not numeric.
func ParseNumber(text string) (any, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, false
	}
	switch {
	case integerLiteral.MatchString(s):
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !isRangeErr(err) {
			return nil, false
		}
		return f, true
	case decimalLiteral.MatchString(s):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !isRangeErr(err) {
			return nil, false
		}
		return f, true
	case radixLiteral.MatchString(s):
		base := 16
		switch s[1] {
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		n, ok := new(big.Int).SetString(s[2:], base)
		if !ok {
			return nil, false
		}
		if n.IsInt64() {
			return n.Int64(), true
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	case s == "Infinity" || s == "+Infinity":
		return math.Inf(1), true
	case s == "-Infinity":
		return math.Inf(-1), true
	}
	return nil, false
}

// ParseFloat reports overflow as ±Inf with ErrRange, which is the value we want.
func isRangeErr(err error) bool {
	return errors.Is(err, strconv.ErrRange)
}
