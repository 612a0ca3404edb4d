package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oakwood-commons/kvedit/internal/formatter"
)

// Format selects the text form used by NormalizeAs.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a display format name. Empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid display format %q (expected json or yaml)", s)
	}
}

// Extract returns the editable scalar fields of rows: every row that is not
// composite and has a key, in row order.
func Extract(rows []Row) *Fields {
	fields := NewFields()
	for _, row := range rows {
		if row.Type.IsComposite() || row.Key == "" {
			continue
		}
		fields.Set(row.Key, row.Value)
	}
	return fields
}

// IsEditable reports whether any row holds a scalar.
func IsEditable(rows []Row) bool {
	for _, row := range rows {
		if !row.Type.IsComposite() {
			return true
		}
	}
	return false
}

// Normalize renders rows as indented JSON for read-only display.
func Normalize(rows []Row) string {
	return NormalizeAs(rows, FormatJSON)
}

// NormalizeAs renders rows for read-only display. Empty input renders as an
// empty object and a single unnamed row renders as its bare value.
func NormalizeAs(rows []Row, format Format) string {
	if len(rows) == 0 {
		return "{}"
	}
	if len(rows) == 1 && rows[0].Key == "" {
		return StringifyValue(rows[0].Value)
	}
	fields := Extract(rows)
	if format == FormatYAML {
		if fields.Len() == 0 {
			return "{}"
		}
		out, err := formatter.FormatYAML(fields, formatter.YAMLFormatOptions{Indent: 2, LiteralBlockStrings: true})
		if err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	raw, err := fields.MarshalJSON()
	if err != nil {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// StringifyValue renders a scalar the way string interpolation would:
// strings as-is, nil as "null", and numbers in shortest form.
func StringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		return strings.Replace(s, "e-0", "e-", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
