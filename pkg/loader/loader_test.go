package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	root, format, err := Load([]byte(`{"name": "alice", "age": 30, "score": 9.5, "tags": ["a", "b"], "nested": {"ok": true, "none": null}}`))
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, format)
	m, ok := root.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", m["name"])
	assert.Equal(t, int64(30), m["age"])
	assert.Equal(t, 9.5, m["score"])
	assert.Equal(t, []interface{}{"a", "b"}, m["tags"])
	assert.Equal(t, map[string]interface{}{"ok": true, "none": nil}, m["nested"])
}

func TestLoadJSONScalarRoot(t *testing.T) {
	root, format, err := Load([]byte("42"))
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, format)
	assert.Equal(t, int64(42), root)
}

func TestLoadYAML(t *testing.T) {
	root, format, err := Load([]byte("name: test\ncount: 3\nratio: 0.5\nitems:\n  - one\n  - two\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, format)
	m, ok := root.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test", m["name"])
	assert.Equal(t, int64(3), m["count"])
	assert.Equal(t, 0.5, m["ratio"])
	assert.Equal(t, []interface{}{"one", "two"}, m["items"])
}

func TestLoadYAMLNonStringKeys(t *testing.T) {
	root, _, err := Load([]byte("codes:\n  200: ok\n  404: missing\n"))
	require.NoError(t, err)
	codes := root.(map[string]interface{})["codes"]
	assert.Equal(t, map[string]interface{}{"200": "ok", "404": "missing"}, codes)
}

func TestLoadTOML(t *testing.T) {
	root, format, err := Load([]byte("title = \"demo\"\n\n[server]\nhost = \"localhost\"\nport = 8080\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatTOML, format)
	m := root.(map[string]interface{})
	assert.Equal(t, "demo", m["title"])
	assert.Equal(t, map[string]interface{}{"host": "localhost", "port": int64(8080)}, m["server"])
}

func TestLoadEmpty(t *testing.T) {
	_, _, err := Load([]byte("  \n"))
	require.Error(t, err)
}

func TestLoadJSONTrailingData(t *testing.T) {
	_, err := LoadAs([]byte(`{"a":1} {"b":2}`), FormatJSON)
	require.Error(t, err)
}

func TestIsLikelyTOML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "section header", input: "[server]\nhost = \"localhost\"", want: true},
		{name: "array of tables", input: "[[items]]\nname = \"item1\"", want: true},
		{name: "key-value assignments", input: "name = \"test\"\nvalue = 42\nenabled = true", want: true},
		{name: "YAML syntax", input: "name: test\nvalue: 42", want: false},
		{name: "JSON object", input: `{"name": "test"}`, want: false},
		{name: "YAML list", input: "- item1\n- item2", want: false},
		{name: "quoted key assignment", input: "\"table name\" = \"value\"\n\"another-key\" = 42", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLikelyTOML(tt.input))
		})
	}
}

func TestLoadFallsThrough(t *testing.T) {
	t.Run("YAML with indented JSON arrays not misdetected as TOML", func(t *testing.T) {
		input := `items:
  - when: arch == "2.0"
    expression: |
      ["legacy"]
  - when: arch == "3.0"
    expression: |
      ["modern"]`

		root, format, err := Load([]byte(input))
		require.NoError(t, err)
		assert.Equal(t, FormatYAML, format)
		assert.IsType(t, map[string]interface{}{}, root)
	})

	t.Run("wrong extension falls back to correct parser", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "oops.toml")
		require.NoError(t, os.WriteFile(path, []byte(`{"key":"val"}`), 0o644))

		root, format, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, FormatJSON, format)
		assert.Equal(t, "val", root.(map[string]interface{})["key"])
	})
}

func TestLoadFileHonorsExtension(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		file    string
		content string
		want    Format
	}{
		{file: "data.yml", content: "name: test\n", want: FormatYAML},
		{file: "data.json", content: `{"name":"test"}`, want: FormatJSON},
		{file: "data.toml", content: "name = \"test\"\n", want: FormatTOML},
		{file: "data.txt", content: "name: test\n", want: FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			root, format, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, format)
			assert.Equal(t, "test", root.(map[string]interface{})["name"])
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestEncodeRoundTrip(t *testing.T) {
	doc := map[string]interface{}{
		"name":  "alice",
		"age":   int64(30),
		"admin": true,
		"tags":  []interface{}{"x"},
	}
	for _, f := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		t.Run(string(f), func(t *testing.T) {
			data, err := Encode(doc, f)
			require.NoError(t, err)
			back, err := LoadAs(data, f)
			require.NoError(t, err)
			assert.Equal(t, doc, back)
		})
	}
}

func TestEncodeJSONIndentAndNoHTMLEscape(t *testing.T) {
	data, err := Encode(map[string]interface{}{"q": "a<b"}, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"q\": \"a<b\"\n}\n", string(data))
}

func TestEncodeTOMLRequiresTable(t *testing.T) {
	_, err := Encode([]interface{}{1}, FormatTOML)
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	require.Error(t, err)
}
