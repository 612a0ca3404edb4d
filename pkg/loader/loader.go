// Package loader parses JSON, YAML, and TOML documents into plain Go values
// (map[string]any, []any, string, int64, float64, bool, nil) and writes them
// back in the same format. A Source keeps the layout of JSON and YAML input
// so edits can be written back in place.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies a document syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown document format %q (expected json, yaml, or toml)", s)
	}
}

// FormatFromExtension maps a file extension to a format.
func FormatFromExtension(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	default:
		return "", false
	}
}

// Detect guesses the format of input. Valid JSON wins, then TOML by
// heuristic, and YAML is the fallback.
func Detect(input string) Format {
	trimmed := strings.TrimSpace(input)
	if json.Valid([]byte(trimmed)) {
		return FormatJSON
	}
	// TOML [section] headers look like JSON arrays, so check after JSON validity.
	if isLikelyTOML(trimmed) {
		return FormatTOML
	}
	return FormatYAML
}

// Load parses data, auto-detecting its format.
func Load(data []byte) (interface{}, Format, error) {
	return LoadWithLogger(data, logr.Discard())
}

// LoadWithLogger is like Load but records the detected format.
func LoadWithLogger(data []byte, lgr logr.Logger) (interface{}, Format, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, "", fmt.Errorf("empty input")
	}
	format := Detect(string(data))
	lgr.V(1).Info("detected input format", "format", format, "bytes", len(data))
	return loadWithFallback(data, format, lgr)
}

// loadWithFallback parses data as first and, when that fails, tries the
// remaining formats in JSON, YAML, TOML order. The first error is reported
// if nothing parses.
func loadWithFallback(data []byte, first Format, lgr logr.Logger) (interface{}, Format, error) {
	root, firstErr := LoadAs(data, first)
	if firstErr == nil {
		return root, first, nil
	}
	for _, f := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		if f == first {
			continue
		}
		lgr.V(1).Info("retrying parse with another format", "failed", first, "next", f, "error", firstErr.Error())
		if root, err := LoadAs(data, f); err == nil {
			return root, f, nil
		}
	}
	return nil, "", firstErr
}

// LoadAs parses data as the given format.
func LoadAs(data []byte, format Format) (interface{}, error) {
	var (
		raw interface{}
		err error
	)
	switch format {
	case FormatJSON:
		raw, err = decodeJSON(data)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
		if err != nil {
			err = fmt.Errorf("invalid YAML: %w", err)
		}
	case FormatTOML:
		var m map[string]interface{}
		err = toml.Unmarshal(data, &m)
		if err != nil {
			err = fmt.Errorf("invalid TOML: %w", err)
		}
		raw = m
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return normalize(raw), nil
}

// LoadFile reads and parses a file. A known extension decides the format;
// otherwise the content is sniffed.
func LoadFile(path string) (interface{}, Format, error) {
	return LoadFileWithLogger(path, logr.Discard())
}

// LoadFileWithLogger is like LoadFile but records extension-based dispatch.
func LoadFileWithLogger(path string, lgr logr.Logger) (interface{}, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return LoadNamed(path, data, lgr)
}

// LoadNamed parses data that was read from path. A known extension decides
// the format; otherwise the content is sniffed.
func LoadNamed(path string, data []byte, lgr logr.Logger) (interface{}, Format, error) {
	if format, ok := FormatFromExtension(path); ok {
		lgr.V(1).Info("format from file extension", "path", path, "format", format)
		root, got, err := loadWithFallback(data, format, lgr)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		return root, got, nil
	}
	return LoadWithLogger(data, lgr)
}

// Encode serializes v in the given format with object keys sorted. JSON
// and YAML use two-space indentation and write non-finite numbers as null;
// output always ends with a newline.
func Encode(v interface{}, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return encodeJSON(v, nil)
	case FormatYAML:
		return encodeYAML(finite(v))
	case FormatTOML:
		if _, ok := v.(map[string]interface{}); !ok {
			return nil, fmt.Errorf("encode TOML: document root must be a table, got %T", v)
		}
		b, err := toml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode TOML: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
}

func encodeYAML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	var extra interface{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON: unexpected data after document")
	}
	return v, nil
}

// normalize converts decoder-specific values into the plain set of types the
// rest of kvedit works with.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			t[k] = normalize(child)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = normalize(child)
		}
		return out
	case []interface{}:
		for i, child := range t {
			t[i] = normalize(child)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		if t <= 1<<63-1 {
			return int64(t)
		}
		return float64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case toml.LocalDate:
		return t.String()
	case toml.LocalTime:
		return t.String()
	case toml.LocalDateTime:
		return t.String()
	default:
		return v
	}
}

var (
	// Section headers: [server], [[items]], ["table name"], [database.credentials]
	tomlSectionPattern = regexp.MustCompile(`^\s*\[{1,2}(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+')+(?:\.(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+'))*\]{1,2}\s*$`)
	// key = value (not key: value, which is YAML)
	tomlKeyValuePattern = regexp.MustCompile(`^\s*(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+')+(?:\.(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+'))*\s*=\s*.+$`)
)

// isLikelyTOML returns true when input has a TOML section header or when most
// lines are key = value assignments.
func isLikelyTOML(input string) bool {
	sections, assignments, nonEmpty := 0, 0, 0
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		nonEmpty++
		if tomlSectionPattern.MatchString(line) {
			sections++
		}
		if tomlKeyValuePattern.MatchString(line) {
			assignments++
		}
	}
	if sections > 0 {
		return true
	}
	return nonEmpty > 0 && assignments > nonEmpty/2
}
