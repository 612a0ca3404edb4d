package node

import (
	"reflect"
	"sort"
	"strconv"
)

// TypeOf returns the row tag for a parsed value.
func TypeOf(v any) RowType {
	switch v.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return TypeNumber
	case map[string]any:
		return TypeObject
	case []any:
		return TypeArray
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive // everything else is displayed as a string
	case reflect.Map, reflect.Struct:
		return TypeObject
	case reflect.Slice, reflect.Array:
		return TypeArray
	}
	return TypeString
}

// RowsFromValue decomposes a parsed value into rows. Objects produce one
// keyed row per entry in ascending key order, arrays one row per element
// keyed by its index, and scalars a single unnamed row. Composite children
// carry their element count as the row value.
func RowsFromValue(v any) []Row {
	return OrderedRows(v, nil)
}

// OrderedRows is RowsFromValue with object rows following order. Keys in
// order that the object lacks are skipped, and object keys missing from
// order follow in ascending order.
func OrderedRows(v any, order []string) []Row {
	switch t := v.(type) {
	case map[string]any:
		keys := OrderedKeys(t, order)
		rows := make([]Row, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, childRow(k, t[k]))
		}
		return rows
	case []any:
		rows := make([]Row, 0, len(t))
		for i, elem := range t {
			rows = append(rows, childRow(strconv.Itoa(i), elem))
		}
		return rows
	default:
		return []Row{{Value: v, Type: TypeOf(v)}}
	}
}

// OrderedKeys returns the keys of m, those listed in order first.
func OrderedKeys(m map[string]any, order []string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range order {
		if _, ok := m[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	rest := make([]string, 0, len(m)-len(keys))
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func childRow(key string, v any) Row {
	typ := TypeOf(v)
	if !typ.IsComposite() {
		return Row{Key: key, Value: v, Type: typ}
	}
	size := 0
	switch t := v.(type) {
	case map[string]any:
		size = len(t)
	case []any:
		size = len(t)
	}
	return Row{Key: key, Value: size, Type: typ}
}
