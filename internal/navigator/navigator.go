// Package navigator resolves path expressions and structural paths against
// parsed documents.
package navigator

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/oakwood-commons/kvedit/pkg/node"
)

// ErrNotFound is returned when a path does not lead to a value.
var ErrNotFound = errors.New("path not found")

// Resolve parses expr and walks it into root, returning the structural path
// of the target and the value found there. Dotted numeric fields index
// arrays; everything else addresses object keys.
func Resolve(root interface{}, expr string) (node.Path, interface{}, error) {
	steps, err := ParsePath(expr)
	if err != nil {
		return nil, nil, err
	}
	path := node.Path{}
	cur := root
	for _, step := range steps {
		seg, next, err := navigateStep(cur, step)
		if err != nil {
			return nil, nil, fmt.Errorf("at %s: %w", node.FormatPath(path), err)
		}
		path = path.Child(seg)
		cur = next
	}
	return path, cur, nil
}

// navigateStep descends one step into cur.
func navigateStep(cur interface{}, step Step) (node.Segment, interface{}, error) {
	switch t := cur.(type) {
	case map[string]interface{}:
		var key string
		switch s := step.(type) {
		case Field:
			key = s.Name
		case QuotedKey:
			key = s.Name
		case ArrayIndex:
			return node.Segment{}, nil, fmt.Errorf("%w: cannot index object with [%d]", ErrNotFound, s.Index)
		}
		v, ok := t[key]
		if !ok {
			return node.Segment{}, nil, fmt.Errorf("%w: key '%s' not found", ErrNotFound, key)
		}
		return node.Key(key), v, nil
	case []interface{}:
		var idx int
		switch s := step.(type) {
		case ArrayIndex:
			idx = s.Index
		case Field:
			n, err := strconv.Atoi(s.Name)
			if err != nil {
				return node.Segment{}, nil, fmt.Errorf("%w: expected numeric index into array but got '%s'", ErrNotFound, s.Name)
			}
			idx = n
		case QuotedKey:
			return node.Segment{}, nil, fmt.Errorf("%w: expected numeric index into array but got key '%s'", ErrNotFound, s.Name)
		}
		if idx < 0 || idx >= len(t) {
			return node.Segment{}, nil, fmt.Errorf("%w: index %d out of range", ErrNotFound, idx)
		}
		return node.Index(idx), t[idx], nil
	default:
		return node.Segment{}, nil, fmt.Errorf("%w: cannot descend into %s", ErrNotFound, node.TypeOf(cur))
	}
}

// ValueAt returns the value at path.
func ValueAt(root interface{}, path node.Path) (interface{}, error) {
	cur := root
	for i, seg := range path {
		next, err := child(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("at %s: %w", node.FormatPath(path[:i]), err)
		}
		cur = next
	}
	return cur, nil
}

func child(cur interface{}, seg node.Segment) (interface{}, error) {
	switch t := cur.(type) {
	case map[string]interface{}:
		if seg.IsIndex() {
			return nil, fmt.Errorf("%w: cannot index object with [%d]", ErrNotFound, seg.Position())
		}
		v, ok := t[seg.Name()]
		if !ok {
			return nil, fmt.Errorf("%w: key '%s' not found", ErrNotFound, seg.Name())
		}
		return v, nil
	case []interface{}:
		if !seg.IsIndex() {
			return nil, fmt.Errorf("%w: expected numeric index into array but got key '%s'", ErrNotFound, seg.Name())
		}
		if seg.Position() < 0 || seg.Position() >= len(t) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrNotFound, seg.Position())
		}
		return t[seg.Position()], nil
	default:
		return nil, fmt.Errorf("%w: cannot descend into %s", ErrNotFound, node.TypeOf(cur))
	}
}

// WalkFunc is called for every value visited by Walk. Returning false stops
// the walk.
type WalkFunc func(path node.Path, value interface{}) bool

// Walk visits root and every nested value depth-first, objects in ascending
// key order, arrays in index order.
func Walk(root interface{}, fn WalkFunc) {
	walk(node.Path{}, root, fn)
}

func walk(path node.Path, v interface{}, fn WalkFunc) bool {
	if !fn(path, v) {
		return false
	}
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !walk(path.Child(node.Key(k)), t[k], fn) {
				return false
			}
		}
	case []interface{}:
		for i, elem := range t {
			if !walk(path.Child(node.Index(i)), elem, fn) {
				return false
			}
		}
	}
	return true
}
