// Package session coordinates viewing and editing of the selected document
// node. A Session holds a scratch copy of the node's editable fields and
// proposes them to the document store as a single patch on save; it never
// mutates the document itself.
//
// A Session is not safe for concurrent use. Drive it from one goroutine,
// such as a bubbletea Update loop.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/kvedit/pkg/node"
)

var (
	// ErrInvalidField is returned when an edit targets a key that is not in
	// the working fields.
	ErrInvalidField = errors.New("invalid field")
	// ErrNoPath is returned when saving a node that has no structural path.
	ErrNoPath = errors.New("node has no path")
	// ErrNotEditing is returned when a field edit arrives outside Editing.
	ErrNotEditing = errors.New("session is not editing")
)

// Mode is the state of a Session.
type Mode int

const (
	Viewing Mode = iota
	Editing
)

func (m Mode) String() string {
	switch m {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Selector exposes the node currently selected in the document.
type Selector interface {
	SelectedNode() *node.Node
}

// Patcher applies a set of field updates to the node at path.
type Patcher interface {
	ApplyPatch(ctx context.Context, path node.Path, fields *node.Fields) error
}

// Store is the document boundary a Session reads from and writes to.
type Store interface {
	Selector
	Patcher
}

// SavedFunc is notified after a patch has been applied.
type SavedFunc func(path node.Path, fields *node.Fields)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for state transitions.
func WithLogger(lgr logr.Logger) Option {
	return func(s *Session) {
		s.lgr = lgr
	}
}

// WithOnSaved registers a callback that runs after a successful save.
func WithOnSaved(fn SavedFunc) Option {
	return func(s *Session) {
		s.onSaved = fn
	}
}

// WithDisplayFormat selects the text form returned by DisplayText.
func WithDisplayFormat(f node.Format) Option {
	return func(s *Session) {
		s.format = f
	}
}

// Session is the view/edit state machine for one panel.
type Session struct {
	store   Store
	lgr     logr.Logger
	onSaved SavedFunc
	format  node.Format

	current *node.Node
	mode    Mode
	working *node.Fields
	closed  bool
	saving  node.Path
}

// New creates a Session bound to store. It starts in Viewing with no node;
// call Open to load the store's current selection.
func New(store Store, opts ...Option) *Session {
	s := &Session{
		store:   store,
		lgr:     logr.Discard(),
		format:  node.FormatJSON,
		working: node.NewFields(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open (re)opens the panel on the store's selected node, discarding any
// unsaved edits.
func (s *Session) Open() {
	var n *node.Node
	if s.store != nil {
		n = s.store.SelectedNode()
	}
	s.Select(n)
}

// Select switches the session to n. Whatever the current mode, the session
// returns to Viewing with working fields extracted from n.
func (s *Session) Select(n *node.Node) {
	if s.mode == Editing && !s.refreshesSave(n) {
		s.lgr.V(1).Info("discarding unsaved edits on selection change", "path", s.PathText())
	}
	s.current = n
	s.mode = Viewing
	s.closed = false
	s.working = node.Extract(s.rows())
	s.lgr.V(1).Info("node selected", "path", s.PathText(), "fields", s.working.Len())
}

// BeginEdit enters Editing. It does nothing, and returns false, when the
// node has no scalar content or an edit is already in progress.
func (s *Session) BeginEdit() bool {
	if s.mode == Editing || !s.Editable() {
		return false
	}
	s.mode = Editing
	s.lgr.V(1).Info("edit started", "path", s.PathText())
	return true
}

// SetField stores the coerced form of text under key.
func (s *Session) SetField(key, text string) error {
	if s.mode != Editing {
		return ErrNotEditing
	}
	if !s.working.Has(key) {
		return fmt.Errorf("%w: %q", ErrInvalidField, key)
	}
	s.working.Set(key, node.Coerce(text))
	return nil
}

// Cancel abandons the edit and restores the working fields from the node.
func (s *Session) Cancel() {
	if s.mode != Editing {
		return
	}
	s.working = node.Extract(s.rows())
	s.mode = Viewing
	s.lgr.V(1).Info("edit cancelled", "path", s.PathText())
}

// Save submits the working fields as one patch for the node's path. On
// failure the session stays in Editing so the caller can keep the panel
// open; store errors are returned unchanged.
func (s *Session) Save(ctx context.Context) error {
	if s.mode != Editing {
		return ErrNotEditing
	}
	if !s.current.HasPath() {
		return ErrNoPath
	}
	path := s.current.Path
	fields := s.working.Clone()
	s.saving = path
	err := s.store.ApplyPatch(ctx, path, fields)
	s.saving = nil
	if err != nil {
		s.lgr.Error(err, "patch rejected", "path", node.FormatPath(path))
		return err
	}
	s.mode = Viewing
	s.closed = true
	s.lgr.V(1).Info("patch applied", "path", node.FormatPath(path), "fields", fields.Len())
	if s.onSaved != nil {
		s.onSaved(path, fields)
	}
	return nil
}

// Close ends the session without saving.
func (s *Session) Close() {
	s.mode = Viewing
	s.closed = true
}

// Closed reports whether the session ended through Save or Close.
func (s *Session) Closed() bool {
	return s.closed
}

// Mode returns the current state.
func (s *Session) Mode() Mode {
	return s.mode
}

// Node returns the selected node, or nil.
func (s *Session) Node() *node.Node {
	return s.current
}

// Editable reports whether the selected node has scalar content.
func (s *Session) Editable() bool {
	return node.IsEditable(s.rows())
}

// WorkingFields returns a copy of the working fields.
func (s *Session) WorkingFields() *node.Fields {
	return s.working.Clone()
}

// DisplayText renders the selected node for read-only display.
func (s *Session) DisplayText() string {
	return node.NormalizeAs(s.rows(), s.format)
}

// PathText renders the selected node's path.
func (s *Session) PathText() string {
	if s.current == nil {
		return node.FormatPath(nil)
	}
	return node.FormatPath(s.current.Path)
}

// refreshesSave reports whether n is the store echoing back the node that
// is being saved.
func (s *Session) refreshesSave(n *node.Node) bool {
	return s.saving != nil && n.HasPath() && n.Path.Equal(s.saving)
}

func (s *Session) rows() []node.Row {
	if s.current == nil {
		return nil
	}
	return s.current.Rows
}
