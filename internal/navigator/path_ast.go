package navigator

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is one parsed segment of a path expression.
// Path example: regions.asia.countries[0].city["postal-code"]
type Step interface{}

// Field represents a dotted field name. Numeric field names index arrays.
type Field struct {
	Name string
}

// QuotedKey represents a field accessed via a bracket-quoted key: ["key"]
type QuotedKey struct {
	Name string
}

// ArrayIndex represents an array index like [0]
type ArrayIndex struct {
	Index int
}

// ParsePath parses a path expression into steps. A leading root marker ($
// or _) is optional. Dots separate fields; brackets hold indices or quoted
// keys.
func ParsePath(input string) ([]Step, error) {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "$") || strings.HasPrefix(s, "_") && (len(s) == 1 || s[1] == '.' || s[1] == '[') {
		s = s[1:]
	}
	var steps []Step
	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
		case '[':
			step, next, err := parseBracket(s, i)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
			i = next
		default:
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			steps = append(steps, Field{Name: s[i:j]})
			i = j
		}
	}
	return steps, nil
}

// parseBracket parses the bracket segment starting at s[open] and returns the
// step plus the index just past the closing bracket.
func parseBracket(s string, open int) (Step, int, error) {
	i := open + 1
	if i < len(s) && (s[i] == '"' || s[i] == '\'') {
		quote := s[i]
		j := i + 1
		for j < len(s) && s[j] != quote {
			if s[j] == '\\' {
				j++
			}
			j++
		}
		if j >= len(s) || j+1 >= len(s) || s[j+1] != ']' {
			return nil, 0, fmt.Errorf("unterminated quoted key at offset %d", open)
		}
		raw := s[i+1 : j]
		name := raw
		if quote == '"' {
			if unq, err := strconv.Unquote(`"` + raw + `"`); err == nil {
				name = unq
			}
		}
		return QuotedKey{Name: name}, j + 2, nil
	}
	end := strings.IndexByte(s[i:], ']')
	if end == -1 {
		return nil, 0, fmt.Errorf("missing ']' at offset %d", open)
	}
	segment := strings.TrimSpace(s[i : i+end])
	n, err := strconv.Atoi(segment)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid index %q at offset %d", segment, open)
	}
	return ArrayIndex{Index: n}, i + end + 1, nil
}
