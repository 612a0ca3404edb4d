package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/kvedit/pkg/node"
)

// ErrSourceMismatch is returned when an edit cannot be mirrored into a Source.
var ErrSourceMismatch = errors.New("source layout cannot mirror edit")

// Source is the yaml.Node tree a JSON or YAML document was parsed from. It
// keeps key order and comments, so an edited document can be written back
// without reformatting the rest of the file.
type Source struct {
	doc    *yaml.Node
	format Format
}

// ParseSource parses data into a Source. It returns nil for TOML and for
// input that is not a single JSON or YAML document.
func ParseSource(data []byte, format Format) *Source {
	if format != FormatJSON && format != FormatYAML {
		return nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil
	}
	return &Source{doc: &doc, format: format}
}

func (s *Source) root() *yaml.Node {
	if s == nil {
		return nil
	}
	return s.doc.Content[0]
}

// Keys returns the object keys at path in document order, or nil when the
// source has no object there. A nil Source has no keys.
func (s *Source) Keys(path node.Path) []string {
	n := s.root()
	for _, seg := range path {
		n = child(n, seg)
	}
	return mappingKeys(n)
}

// Apply writes a patch that has already been applied to the document values
// into the source. Containers and values that are anchored or aliased are
// shared with other parts of the file and are refused with
// ErrSourceMismatch; so are paths the source does not have.
func (s *Source) Apply(path node.Path, fields *node.Fields) error {
	target := s.root()
	for _, seg := range path {
		if shared(target) {
			return fmt.Errorf("%w: %s is shared", ErrSourceMismatch, node.FormatPath(path))
		}
		target = entry(target, seg)
	}
	if target == nil || shared(target) {
		return fmt.Errorf("%w: %s", ErrSourceMismatch, node.FormatPath(path))
	}
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		repl, err := scalarNode(v)
		if err != nil {
			return err
		}
		switch target.Kind {
		case yaml.MappingNode:
			dst := entry(target, node.Key(k))
			if dst == nil {
				var key yaml.Node
				if err := key.Encode(k); err != nil {
					return err
				}
				target.Content = append(target.Content, &key, repl)
				continue
			}
			if err := replaceScalar(dst, repl); err != nil {
				return fmt.Errorf("%w: key %q", err, k)
			}
		case yaml.SequenceNode:
			idx, err := strconv.Atoi(k)
			if err != nil {
				return fmt.Errorf("%w: element %q", ErrSourceMismatch, k)
			}
			dst := entry(target, node.Index(idx))
			if dst == nil {
				return fmt.Errorf("%w: element %q", ErrSourceMismatch, k)
			}
			if err := replaceScalar(dst, repl); err != nil {
				return fmt.Errorf("%w: element %d", err, idx)
			}
		default:
			return fmt.Errorf("%w: %s is not a container", ErrSourceMismatch, node.FormatPath(path))
		}
	}
	return nil
}

// EncodeSource serializes v like Encode, with object keys in the order src
// recorded. A YAML document parsed from YAML is written from src itself, so
// src must already hold every edit made to v.
func EncodeSource(v interface{}, src *Source, format Format) ([]byte, error) {
	switch {
	case format == FormatJSON:
		return encodeJSON(v, src.root())
	case format == FormatYAML && src != nil && src.format == FormatYAML:
		return encodeYAML(src.doc)
	default:
		return Encode(v, format)
	}
}

func encodeJSON(v interface{}, layout *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, layout, 0); err != nil {
		return nil, fmt.Errorf("encode JSON: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v interface{}, layout *yaml.Node, depth int) error {
	switch t := v.(type) {
	case map[string]interface{}:
		if len(t) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteByte('{')
		for i, k := range node.OrderedKeys(t, mappingKeys(layout)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			indent(buf, depth+1)
			if err := writeJSONScalar(buf, k); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := writeJSON(buf, t[k], child(layout, node.Key(k)), depth+1); err != nil {
				return err
			}
		}
		indent(buf, depth)
		buf.WriteByte('}')
	case []interface{}:
		if len(t) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			indent(buf, depth+1)
			if err := writeJSON(buf, elem, child(layout, node.Index(i)), depth+1); err != nil {
				return err
			}
		}
		indent(buf, depth)
		buf.WriteByte(']')
	default:
		return writeJSONScalar(buf, v)
	}
	return nil
}

func indent(buf *bytes.Buffer, depth int) {
	buf.WriteByte('\n')
	buf.WriteString(strings.Repeat("  ", depth))
}

// writeJSONScalar writes v without HTML escaping. Non-finite numbers have no
// JSON form and are written as null.
func writeJSONScalar(buf *bytes.Buffer, v interface{}) error {
	if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		buf.WriteString("null")
		return nil
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// finite returns v with every non-finite number replaced by nil.
func finite(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return nil
		}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, c := range t {
			out[k] = finite(c)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, c := range t {
			out[i] = finite(c)
		}
		return out
	}
	return v
}

func scalarNode(v interface{}) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(finite(v)); err != nil {
		return nil, fmt.Errorf("encode YAML value: %w", err)
	}
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%w: %T is not a scalar", ErrSourceMismatch, v)
	}
	return &n, nil
}

const quotedStyles = yaml.DoubleQuotedStyle | yaml.SingleQuotedStyle | yaml.LiteralStyle | yaml.FoldedStyle

// replaceScalar swaps the value of dst for repl in place, keeping the
// comments around it. A string replacing a quoted or block string keeps
// that style.
func replaceScalar(dst, repl *yaml.Node) error {
	if dst.Kind != yaml.ScalarNode || shared(dst) {
		return ErrSourceMismatch
	}
	style := repl.Style
	if dst.Style&quotedStyles != 0 && repl.Tag == "!!str" {
		style = dst.Style &^ yaml.TaggedStyle
	}
	dst.Tag = repl.Tag
	dst.Value = repl.Value
	dst.Style = style
	return nil
}

func shared(n *yaml.Node) bool {
	return n != nil && (n.Kind == yaml.AliasNode || n.Anchor != "")
}

// entry returns the child of n at seg without following aliases.
func entry(n *yaml.Node, seg node.Segment) *yaml.Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		if seg.IsIndex() {
			return nil
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			if k := n.Content[i]; k.Kind == yaml.ScalarNode && k.Tag != "!!merge" && k.Value == seg.Name() {
				return n.Content[i+1]
			}
		}
	case yaml.SequenceNode:
		if seg.IsIndex() && seg.Position() >= 0 && seg.Position() < len(n.Content) {
			return n.Content[seg.Position()]
		}
	}
	return nil
}

// child is entry for reading: aliases resolve to their anchored node.
func child(n *yaml.Node, seg node.Segment) *yaml.Node {
	return resolve(entry(resolve(n), seg))
}

func resolve(n *yaml.Node) *yaml.Node {
	if n != nil && n.Kind == yaml.AliasNode {
		return n.Alias
	}
	return n
}

func mappingKeys(n *yaml.Node) []string {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i]; k.Kind == yaml.ScalarNode && k.Tag != "!!merge" {
			keys = append(keys, k.Value)
		}
	}
	return keys
}
