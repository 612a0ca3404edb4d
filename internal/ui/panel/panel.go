// Package panel renders a node's content and path and lets the user edit
// its scalar fields in place.
package panel

import (
	"context"
	"errors"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/oakwood-commons/kvedit/internal/formatter"
	"github.com/oakwood-commons/kvedit/pkg/node"
	"github.com/oakwood-commons/kvedit/pkg/session"
)

const (
	contentTitle = "Content"
	pathTitle    = "JSON Path"

	defaultWidth  = 60
	minInputWidth = 10
)

// SelectMsg switches the panel to another node. Unsaved edits are dropped.
type SelectMsg struct {
	Node *node.Node
}

// PathSelector moves the document selection.
type PathSelector interface {
	SelectPath(path node.Path) (*node.Node, error)
}

// Option configures a Model.
type Option func(*Model)

// WithStyles sets the render styles.
func WithStyles(s formatter.Styles) Option {
	return func(m *Model) {
		m.styles = s
	}
}

// WithWidth sets the panel width in cells.
func WithWidth(w int) Option {
	return func(m *Model) {
		if w > 0 {
			m.width = w
		}
	}
}

// WithEditing enables or disables the edit key.
func WithEditing(enabled bool) Option {
	return func(m *Model) {
		m.editEnabled = enabled
	}
}

// WithMatches lets n and p step through paths, selecting each via sel.
func WithMatches(sel PathSelector, paths []node.Path) Option {
	return func(m *Model) {
		m.selector = sel
		m.matches = paths
	}
}

// WithContext sets the context passed to saves.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		m.ctx = ctx
	}
}

// Model is the bubbletea model for the node panel.
type Model struct {
	sess        *session.Session
	ctx         context.Context
	styles      formatter.Styles
	width       int
	editEnabled bool

	keys    []string
	inputs  []textinput.Model
	escaped []bool
	focus   int

	selector PathSelector
	matches  []node.Path
	match    int

	err      error
	quitting bool
}

// New builds a panel over sess. The session should already be open.
func New(sess *session.Session, opts ...Option) *Model {
	m := &Model{
		sess:        sess,
		ctx:         context.Background(),
		styles:      formatter.NewStyles(formatter.Colors{}, false),
		width:       defaultWidth,
		editEnabled: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 && msg.Width < m.width {
			m.width = msg.Width
			m.resizeInputs()
		}
		return m, nil
	case SelectMsg:
		m.sess.Select(msg.Node)
		m.resetInputs()
		return m, nil
	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			m.sess.Close()
			m.quitting = true
			return m, tea.Quit
		}
		if m.sess.Mode() == session.Editing {
			return m.updateEditing(msg)
		}
		return m.updateViewing(msg)
	}
	return m, nil
}

func (m *Model) updateViewing(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.sess.Close()
		m.quitting = true
		return m, tea.Quit
	case "e", "enter":
		if !m.editEnabled || !m.sess.BeginEdit() {
			return m, nil
		}
		m.err = nil
		m.buildInputs()
		if len(m.inputs) == 0 {
			return m, nil
		}
		return m, m.inputs[0].Focus()
	case "n":
		m.stepMatch(1)
	case "p":
		m.stepMatch(-1)
	}
	return m, nil
}

func (m *Model) updateEditing(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.sess.Cancel()
		m.err = nil
		m.resetInputs()
		return m, nil
	case "ctrl+s":
		if err := m.sess.Save(m.ctx); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.resetInputs()
		m.quitting = true
		return m, tea.Quit
	case "tab", "down", "enter":
		return m, m.moveFocus(1)
	case "shift+tab", "up":
		return m, m.moveFocus(-1)
	}
	if len(m.inputs) == 0 {
		return m, nil
	}

	in := &m.inputs[m.focus]
	before := in.Value()
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	if text := in.Value(); text != before {
		if m.escaped[m.focus] {
			text = formatter.UnescapeLineBreaks(text)
		}
		if err := m.sess.SetField(m.keys[m.focus], text); err != nil {
			m.err = err
		}
	}
	return m, cmd
}

func (m *Model) moveFocus(delta int) tea.Cmd {
	if len(m.inputs) == 0 {
		return nil
	}
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

func (m *Model) stepMatch(delta int) {
	if m.selector == nil || len(m.matches) < 2 {
		return
	}
	next := (m.match + delta + len(m.matches)) % len(m.matches)
	n, err := m.selector.SelectPath(m.matches[next])
	if err != nil {
		m.err = err
		return
	}
	m.match = next
	m.err = nil
	m.sess.Select(n)
}

func (m *Model) buildInputs() {
	fields := m.sess.WorkingFields()
	m.keys = fields.Keys()
	m.inputs = make([]textinput.Model, len(m.keys))
	m.escaped = make([]bool, len(m.keys))
	for i, k := range m.keys {
		v, _ := fields.Get(k)
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 0
		if v == nil {
			ti.Placeholder = "null"
		}
		text, escaped := formatter.FieldText(v, node.StringifyValue)
		ti.SetValue(text)
		m.inputs[i] = ti
		m.escaped[i] = escaped
	}
	m.focus = 0
	m.resizeInputs()
}

func (m *Model) resetInputs() {
	m.keys = nil
	m.inputs = nil
	m.escaped = nil
	m.focus = 0
}

func (m *Model) resizeInputs() {
	w := m.width - formatter.MaxWidth(m.keys) - 2
	if w < minInputWidth {
		w = minInputWidth
	}
	for i := range m.inputs {
		m.inputs[i].SetWidth(w)
	}
}

// Closed reports whether the panel has finished.
func (m *Model) Closed() bool {
	return m.quitting
}

// Err returns the last save or edit error, if any.
func (m *Model) Err() error {
	return m.err
}

// Render returns the panel as plain styled text.
func (m *Model) Render() string {
	if m.quitting {
		return ""
	}
	if m.sess.Mode() == session.Editing {
		return m.renderEditing()
	}
	return m.renderViewing()
}

// View implements tea.Model.
func (m *Model) View() tea.View {
	v := tea.NewView(m.Render())
	v.AltScreen = true
	v.KeyboardEnhancements.ReportEventTypes = true
	return v
}

func (m *Model) renderViewing() string {
	var b strings.Builder
	b.WriteString(m.styles.Section(contentTitle, m.sess.DisplayText(), m.styles.Value))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Section(pathTitle, m.sess.PathText(), m.styles.Path))
	b.WriteString("\n")
	m.writeError(&b)
	b.WriteString(m.styles.Rule(m.width))
	b.WriteString("\n")

	hints := []string{}
	if m.editEnabled && m.sess.Editable() {
		hints = append(hints, "e edit")
	}
	if m.selector != nil && len(m.matches) > 1 {
		hints = append(hints, "n/p next/prev match")
	}
	hints = append(hints, "q close")
	b.WriteString(m.styles.Separator.Render(strings.Join(hints, " · ")))
	return b.String()
}

func (m *Model) renderEditing() string {
	var b strings.Builder
	b.WriteString(m.styles.Heading.Render("Edit " + m.sess.PathText()))
	b.WriteString("\n")
	labelWidth := formatter.MaxWidth(m.keys)
	for i, k := range m.keys {
		label := formatter.PadRight(k, labelWidth)
		marker := "  "
		if i == m.focus {
			marker = "> "
		}
		b.WriteString(marker)
		b.WriteString(m.styles.Label.Render(label))
		b.WriteString(" ")
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	m.writeError(&b)
	b.WriteString(m.styles.Rule(m.width))
	b.WriteString("\n")
	b.WriteString(m.styles.Separator.Render("tab next · shift+tab prev · ctrl+s save · esc cancel"))
	return b.String()
}

func (m *Model) writeError(b *strings.Builder) {
	if m.err == nil {
		return
	}
	msg := m.err.Error()
	if errors.Is(m.err, session.ErrNoPath) {
		msg = "cannot save: node has no path"
	}
	b.WriteString(m.styles.Error.Render("error: " + msg))
	b.WriteString("\n")
}
