// Package node holds the row-based representation of a single document node
// and the pure functions that turn it into editable fields, display text, and
// a canonical path string.
package node

import (
	"strconv"
)

// RowType tags the kind of a Row.
type RowType string

const (
	TypeString  RowType = "string"
	TypeNumber  RowType = "number"
	TypeBoolean RowType = "boolean"
	TypeNull    RowType = "null"
	TypeArray   RowType = "array"
	TypeObject  RowType = "object"
)

// IsComposite reports whether rows of this type hold nested content rather than a scalar.
func (t RowType) IsComposite() bool {
	return t == TypeArray || t == TypeObject
}

// Row is one entry of a node's decomposed content. An empty Key means the
// row is unnamed (a bare scalar document root, for example).
type Row struct {
	Key   string
	Value any
	Type  RowType
}

// Segment is one step of a Path: an object key or an array index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns an object-key segment.
func Key(name string) Segment {
	return Segment{key: name}
}

// Index returns an array-index segment.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

// IsIndex reports whether the segment addresses an array element.
func (s Segment) IsIndex() bool {
	return s.isIndex
}

// Name returns the object key. It is empty for index segments.
func (s Segment) Name() string {
	return s.key
}

// Position returns the array index. It is zero for key segments.
func (s Segment) Position() int {
	return s.index
}

// String renders the segment the way it appears inside a bracket path.
func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return `"` + s.key + `"`
}

// Path locates a node inside a document. The empty, non-nil Path is the root;
// a nil Path means the location is unknown.
type Path []Segment

// Child returns a copy of p extended with seg.
func (p Path) Child(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// Equal reports whether p and q address the same location. A nil Path only
// equals another nil Path.
func (p Path) Equal(q Path) bool {
	if (p == nil) != (q == nil) || len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// String formats the path with FormatPath.
func (p Path) String() string {
	return FormatPath(p)
}

// Node is the selected unit of a document: its rows plus where it lives.
type Node struct {
	Rows []Row
	Path Path
}

// HasPath reports whether the node carries a structural location.
func (n *Node) HasPath() bool {
	return n != nil && n.Path != nil
}
