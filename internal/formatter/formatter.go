package formatter

import (
	"image/color"
	"strings"

	"charm.land/lipgloss/v2"
	runewidth "github.com/mattn/go-runewidth"
)

var (
	defaultHeadingColor   = lipgloss.Color("12")
	defaultLabelColor     = lipgloss.Color("14")
	defaultValueColor     = lipgloss.Color("248")
	defaultPathColor      = lipgloss.Color("11")
	defaultSeparatorColor = lipgloss.Color("240")
	defaultErrorColor     = lipgloss.Color("9")
)

// Colors controls the rendered colors for panel text.
// Empty fields fall back to defaults (ANSI 256 codes).
type Colors struct {
	Heading   color.Color
	Label     color.Color
	Value     color.Color
	Path      color.Color
	Separator color.Color
	Error     color.Color
}

// Styles is the set of lipgloss styles used to render the node panel and
// the non-interactive output.
type Styles struct {
	NoColor   bool
	Heading   lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Path      lipgloss.Style
	Separator lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles builds styles from colors. With noColor every style renders plain text.
func NewStyles(c Colors, noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{NoColor: true, Heading: plain, Label: plain, Value: plain, Path: plain, Separator: plain, Error: plain}
	}
	pick := func(c, def color.Color) color.Color {
		if c == nil {
			return def
		}
		return c
	}
	return Styles{
		Heading:   lipgloss.NewStyle().Bold(true).Foreground(pick(c.Heading, defaultHeadingColor)),
		Label:     lipgloss.NewStyle().Foreground(pick(c.Label, defaultLabelColor)),
		Value:     lipgloss.NewStyle().Foreground(pick(c.Value, defaultValueColor)),
		Path:      lipgloss.NewStyle().Foreground(pick(c.Path, defaultPathColor)),
		Separator: lipgloss.NewStyle().Foreground(pick(c.Separator, defaultSeparatorColor)),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(pick(c.Error, defaultErrorColor)),
	}
}

// Section renders a heading followed by a styled body block. Each body line
// is styled on its own, so lines keep their own width.
func (s Styles) Section(title, body string, bodyStyle lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(s.Heading.Render(title))
	for _, line := range strings.Split(body, "\n") {
		b.WriteString("\n")
		b.WriteString(bodyStyle.Render(line))
	}
	return b.String()
}

// Rule renders a horizontal separator of the given display width.
func (s Styles) Rule(width int) string {
	if width <= 0 {
		width = 40
	}
	return s.Separator.Render(strings.Repeat("─", width))
}

// FieldText converts a field value into single-line input text. nil becomes
// the empty string. Text containing line breaks goes through
// EscapeLineBreaks, and escaped reports that it did.
func FieldText(v any, stringify func(any) string) (text string, escaped bool) {
	if v == nil {
		return "", false
	}
	text = stringify(v)
	if !strings.ContainsAny(text, "\r\n") {
		return text, false
	}
	return EscapeLineBreaks(text), true
}

var lineBreakEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

// EscapeLineBreaks makes s single-line: backslashes are doubled and line
// breaks become \n and \r.
func EscapeLineBreaks(s string) string {
	return lineBreakEscaper.Replace(s)
}

// UnescapeLineBreaks reverses EscapeLineBreaks. A backslash before any other
// character is kept as typed.
func UnescapeLineBreaks(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 'r':
				b.WriteByte('\r')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// MaxWidth returns the widest display width among values.
func MaxWidth(values []string) int {
	widest := 0
	for _, v := range values {
		if w := runewidth.StringWidth(v); w > widest {
			widest = w
		}
	}
	return widest
}

// PadRight pads s with spaces to the given display width, truncating with an
// ellipsis when s is wider.
func PadRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	w := runewidth.StringWidth(s)
	if w > width {
		return runewidth.Truncate(s, width, "…")
	}
	return s + strings.Repeat(" ", width-w)
}
