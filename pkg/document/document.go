// Package document is an in-memory document store. It owns a parsed
// document tree, tracks which node is selected, and applies field patches
// submitted by an edit session.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/kvedit/internal/cel"
	"github.com/oakwood-commons/kvedit/internal/navigator"
	"github.com/oakwood-commons/kvedit/pkg/loader"
	"github.com/oakwood-commons/kvedit/pkg/node"
)

var (
	// ErrNotFound is returned when a path or patch key does not exist.
	ErrNotFound = navigator.ErrNotFound
	// ErrNotContainer is returned when fields are patched into a scalar.
	ErrNotContainer = errors.New("node is not an object or array")
	// ErrCompositeField is returned when a patch touches or produces an
	// array or object value.
	ErrCompositeField = errors.New("array and object fields cannot be edited")
)

// Listener receives the newly selected node, or nil when the selection is
// cleared. It also fires after a patch changes the selected node.
type Listener func(n *node.Node)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the document logger.
func WithLogger(lgr logr.Logger) Option {
	return func(d *Document) {
		d.lgr = lgr
	}
}

// Document holds one parsed document. It is safe for concurrent use.
type Document struct {
	mu        sync.RWMutex
	root      interface{}
	format    loader.Format
	src       *loader.Source
	selected  node.Path
	dirty     bool
	listeners map[int]Listener
	nextID    int
	lgr       logr.Logger
}

// New wraps an already parsed root.
func New(root interface{}, format loader.Format, opts ...Option) *Document {
	d := &Document{
		root:      root,
		format:    format,
		listeners: map[int]Listener{},
		lgr:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Parse loads a document from data, detecting its format. JSON and YAML
// documents keep their key order, and YAML documents their comments, when
// written back.
func Parse(data []byte, opts ...Option) (*Document, error) {
	d := New(nil, "", opts...)
	root, format, err := loader.LoadWithLogger(data, d.lgr)
	if err != nil {
		return nil, err
	}
	d.root, d.format = root, format
	d.src = loader.ParseSource(data, format)
	return d, nil
}

// Open loads a document from a file.
func Open(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d := New(nil, "", opts...)
	root, format, err := loader.LoadNamed(path, data, d.lgr)
	if err != nil {
		return nil, err
	}
	d.root, d.format = root, format
	d.src = loader.ParseSource(data, format)
	return d, nil
}

// Root returns the document tree. Callers must not modify it.
func (d *Document) Root() interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// Format returns the source format.
func (d *Document) Format() loader.Format {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.format
}

// Dirty reports whether a patch has been applied since loading.
func (d *Document) Dirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// Select resolves a path expression such as customer[0].name or
// $["customer"][0]["name"] and selects the node found there.
func (d *Document) Select(expr string) (*node.Node, error) {
	d.mu.Lock()
	path, _, err := navigator.Resolve(d.root, expr)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.selected = path
	n := d.nodeAtLocked(path)
	d.mu.Unlock()

	d.lgr.V(1).Info("node selected", "path", node.FormatPath(path))
	d.notify(n)
	return n, nil
}

// SelectPath selects the node at a structural path.
func (d *Document) SelectPath(path node.Path) (*node.Node, error) {
	if path == nil {
		path = node.Path{}
	}
	d.mu.Lock()
	if _, err := navigator.ValueAt(d.root, path); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.selected = path
	n := d.nodeAtLocked(path)
	d.mu.Unlock()

	d.notify(n)
	return n, nil
}

// ClearSelection deselects the current node.
func (d *Document) ClearSelection() {
	d.mu.Lock()
	d.selected = nil
	d.mu.Unlock()
	d.notify(nil)
}

// SelectedNode returns a fresh view of the selected node, or nil.
func (d *Document) SelectedNode() *node.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.selected == nil {
		return nil
	}
	return d.nodeAtLocked(d.selected)
}

// Subscribe registers fn for selection changes and returns a function that
// removes it.
func (d *Document) Subscribe(fn Listener) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// ApplyPatch writes every field into the object or array at path. Keys of an
// array target are element indices. The patch is validated before anything
// is written, so a rejected patch leaves the document unchanged.
func (d *Document) ApplyPatch(ctx context.Context, path node.Path, fields *node.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	target, err := navigator.ValueAt(d.root, path)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if err := applyFields(target, fields); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("patch %s: %w", node.FormatPath(path), err)
	}
	if d.src != nil {
		if err := d.src.Apply(path, fields); err != nil {
			d.lgr.Info("source layout dropped; the document will be re-encoded on write", "path", node.FormatPath(path), "error", err.Error())
			d.src = nil
		}
	}
	if fields.Len() > 0 {
		d.dirty = true
	}
	var changed *node.Node
	if d.selected != nil && d.selected.Equal(path) {
		changed = d.nodeAtLocked(path)
	}
	d.mu.Unlock()

	d.lgr.V(1).Info("patch applied", "path", node.FormatPath(path), "fields", fields.Len())
	if changed != nil {
		d.notify(changed)
	}
	return nil
}

func applyFields(target interface{}, fields *node.Fields) error {
	keys := fields.Keys()
	switch t := target.(type) {
	case map[string]interface{}:
		for _, k := range keys {
			v, _ := fields.Get(k)
			if node.TypeOf(v).IsComposite() {
				return fmt.Errorf("%w: %q", ErrCompositeField, k)
			}
			if cur, ok := t[k]; ok && node.TypeOf(cur).IsComposite() {
				return fmt.Errorf("%w: %q", ErrCompositeField, k)
			}
		}
		for _, k := range keys {
			t[k], _ = fields.Get(k)
		}
	case []interface{}:
		indices := make([]int, len(keys))
		for i, k := range keys {
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 || idx >= len(t) {
				return fmt.Errorf("%w: element %q", ErrNotFound, k)
			}
			v, _ := fields.Get(k)
			if node.TypeOf(v).IsComposite() || node.TypeOf(t[idx]).IsComposite() {
				return fmt.Errorf("%w: element %d", ErrCompositeField, idx)
			}
			indices[i] = idx
		}
		for i, k := range keys {
			t[indices[i]], _ = fields.Get(k)
		}
	default:
		if len(keys) > 0 {
			return ErrNotContainer
		}
	}
	return nil
}

// Find returns the paths of every node for which the CEL predicate expr is
// true, in document order. Nodes on which the predicate fails to evaluate
// are skipped.
func (d *Document) Find(ctx context.Context, expr string) ([]node.Path, error) {
	eval, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	pred, err := eval.Compile(expr)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	var (
		matches []node.Path
		ctxErr  error
	)
	navigator.Walk(d.root, func(path node.Path, v interface{}) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		ok, err := pred.Match(v)
		if err != nil {
			d.lgr.V(2).Info("predicate skipped node", "path", node.FormatPath(path), "error", err.Error())
			return true
		}
		if ok {
			matches = append(matches, path)
		}
		return true
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	return matches, nil
}

// Encode serializes the document in its source format.
func (d *Document) Encode() ([]byte, error) {
	return d.EncodeAs(d.Format())
}

// EncodeAs serializes the document in the given format.
func (d *Document) EncodeAs(format loader.Format) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return loader.EncodeSource(d.root, d.src, format)
}

// WriteFile encodes the document in its source format and writes it to
// path, keeping the existing file mode when the file already exists.
func (d *Document) WriteFile(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	d.mu.Lock()
	d.dirty = false
	d.mu.Unlock()
	d.lgr.V(1).Info("document written", "path", path, "format", d.Format(), "bytes", len(data))
	return nil
}

func (d *Document) nodeAtLocked(path node.Path) *node.Node {
	v, err := navigator.ValueAt(d.root, path)
	if err != nil {
		return nil
	}
	p := make(node.Path, len(path))
	copy(p, path)
	return &node.Node{Rows: node.OrderedRows(v, d.src.Keys(path)), Path: p}
}

func (d *Document) notify(n *node.Node) {
	d.mu.RLock()
	ids := make([]int, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.listeners[id])
	}
	d.mu.RUnlock()
	for _, fn := range fns {
		fn(n)
	}
}
