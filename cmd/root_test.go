package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/kvedit/internal/formatter"
	"github.com/oakwood-commons/kvedit/pkg/document"
	"github.com/oakwood-commons/kvedit/pkg/session"
	"github.com/oakwood-commons/kvedit/pkg/settings"
)

const customersJSON = `{
  "customer": [
    {"name": "alice", "age": 30},
    {"name": "bob", "age": 41, "tags": ["x"]}
  ]
}
`

func setupTerminal(t *testing.T) {
	t.Helper()
	origOut := stdoutIsTerminal
	stdoutIsTerminal = func() bool { return false }
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Cleanup(func() { stdoutIsTerminal = origOut })
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestViewSelectedNode(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.json", customersJSON)

	out, err := execute(t, "", path, "-p", "customer[0]")
	require.NoError(t, err)
	assert.Equal(t, "Content\n{\n  \"name\": \"alice\",\n  \"age\": 30\n}\n\nJSON Path\n$[\"customer\"][0]\n", out)
}

func TestViewYAMLOutput(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.json", customersJSON)

	out, err := execute(t, "", path, "-p", "customer.1", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Content\nname: bob\nage: 41\n\nJSON Path\n$[\"customer\"][1]")
}

func TestViewFromStdin(t *testing.T) {
	setupTerminal(t)
	out, err := execute(t, "name: demo\nreplicas: 3\n", "-p", "$")
	require.NoError(t, err)
	assert.Contains(t, out, "\"replicas\": 3")
	assert.Contains(t, out, "JSON Path\n$")
}

func TestWhereSelectsFirstMatch(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.json", customersJSON)

	out, err := execute(t, "", path, "--where", `has(_.age) && _.age > 35`)
	require.NoError(t, err)
	assert.Contains(t, out, `$["customer"][1]`)

	_, err = execute(t, "", path, "--where", `has(_.age) && _.age > 99`)
	require.ErrorIs(t, err, document.ErrNotFound)
	assert.Equal(t, 1, ExitCode(err))

	_, err = execute(t, "", path, "--where", `_.age >`)
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestSetAndWrite(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.yaml", "server:\n  host: localhost\n  port: 8080\n  tls: false\n")

	out, err := execute(t, "", path, "-p", "server", "--set", "port=9090", "--set", "tls=true", "--write")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "server:\n  host: localhost\n  port: 9090\n  tls: true\n", string(data))
}

func TestSetAndWriteKeepsCommentsAndOrder(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "service.yaml", "# service config\nzeta: 1\nalpha: 2\nmid: 3\n")

	out, err := execute(t, "", path, "-p", "$")
	require.NoError(t, err)
	assert.Contains(t, out, "Content\n{\n  \"zeta\": 1,\n  \"alpha\": 2,\n  \"mid\": 3\n}")

	_, err = execute(t, "", path, "--set", "mid=4", "--write")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# service config\nzeta: 1\nalpha: 2\nmid: 4\n", string(data))
}

func TestSetInfinityWritesNull(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.json", `{"a": 1, "b": "keep"}`)

	_, err := execute(t, "", path, "--set", "a=Infinity", "--write")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": null,\n  \"b\": \"keep\"\n}\n", string(data))

	_, err = execute(t, "", path, "--set", "a=1e999", "--write")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a": null`)
}

func TestSetWithoutWritePrintsDocument(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.json", customersJSON)

	out, err := execute(t, "", path, "-p", "customer[1]", "--set", "name=null")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": null`)
	assert.Contains(t, out, `"tags": [`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, customersJSON, string(data), "input file is untouched without --write")
}

func TestSetErrors(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.json", customersJSON)

	_, err := execute(t, "", path, "-p", "customer[1]", "--set", "tags=1")
	require.ErrorIs(t, err, session.ErrInvalidField)
	assert.Contains(t, err.Error(), "editable: name, age")

	_, err = execute(t, "", path, "-p", "customer[1]", "--set", "novalue")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	_, err = execute(t, "", path, "-p", "$", "--set", "a=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no editable fields")
}

func TestUsageErrors(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.json", customersJSON)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "bad_output", args: []string{path, "-o", "xml"}},
		{name: "write_without_file", stdin: `{"a": 1}`, args: []string{"--set", "a=2", "--write"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Equal(t, 2, ExitCode(err))
		})
	}

	_, err := execute(t, "", path, "-p", "customer[5]")
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestConfigFileDisablesEditing(t *testing.T) {
	setupTerminal(t)
	path := writeFile(t, "data.json", customersJSON)
	cfg := writeFile(t, "config.yaml", "edit:\n  enabled: false\ndisplay:\n  format: yaml\n")

	_, err := execute(t, "", path, "--config-file", cfg, "-p", "customer[0]", "--set", "age=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "editing is disabled")

	out, err := execute(t, "", path, "--config-file", cfg, "-p", "customer[0]")
	require.NoError(t, err)
	assert.Contains(t, out, "age: 30")

	out, err = execute(t, "", path, "--config-file", cfg, "-p", "customer[0]", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"age": 30`, "flags override the config file")
}

func TestResolveRunLogSettings(t *testing.T) {
	setupTerminal(t)
	cfg := writeFile(t, "config.yaml", "log:\n  level: warn\n  format: console\n")

	run, _, err := resolveRun(NewRootCmd(), &rootOptions{configFile: cfg})
	require.NoError(t, err)
	assert.Equal(t, int8(1), run.MinLogLevel)
	assert.True(t, run.LogConsole)

	run, _, err = resolveRun(NewRootCmd(), &rootOptions{configFile: cfg, debug: true})
	require.NoError(t, err)
	assert.Equal(t, int8(-2), run.MinLogLevel, "--debug wins over log.level")

	bad := writeFile(t, "bad.yaml", "log:\n  level: loud\n")
	_, _, err = resolveRun(NewRootCmd(), &rootOptions{configFile: bad})
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestPanelModelUsesRunSettings(t *testing.T) {
	doc, err := document.Parse([]byte(customersJSON))
	require.NoError(t, err)
	_, err = doc.Select("customer[0]")
	require.NoError(t, err)
	sess := session.New(doc)
	sess.Open()
	styles := formatter.NewStyles(formatter.Colors{}, true)

	run := settings.NewCliParams()
	run.EditEnabled = false
	run.PanelWidth = 12
	ctx := settings.IntoContext(context.Background(), run)
	out := newPanelModel(ctx, sess, doc, nil, styles).Render()
	assert.NotContains(t, out, "e edit")
	assert.Contains(t, out, strings.Repeat("─", 12)+"\n")
	assert.NotContains(t, out, strings.Repeat("─", 13))

	out = newPanelModel(context.Background(), sess, doc, nil, styles).Render()
	assert.Contains(t, out, "e edit", "defaults apply without run settings")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "kvedit v0.0.0-nightly (commit unknown"))
}

func TestParseSets(t *testing.T) {
	edits, err := parseSets([]string{"a=1", " b =x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, []fieldEdit{{key: "a", text: "1"}, {key: "b", text: "x=y"}, {key: "c", text: ""}}, edits)

	_, err = parseSets([]string{"=1"})
	require.Error(t, err)
	_, err = parseSets([]string{"plain"})
	require.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(usageErrorf("bad flag")))
}

func TestProgramOptionsPipedUsesTerminal(t *testing.T) {
	origPiped, origOpen := stdinIsPiped, openTerminalIOFn
	defer func() { stdinIsPiped, openTerminalIOFn = origPiped, origOpen }()

	dir := t.TempDir()
	in, err := os.Create(filepath.Join(dir, "in"))
	require.NoError(t, err)
	out, err := os.Create(filepath.Join(dir, "out"))
	require.NoError(t, err)

	stdinIsPiped = func() bool { return true }
	openTerminalIOFn = func() (*os.File, *os.File, error) { return in, out, nil }

	opts, cleanup := programOptions()
	require.GreaterOrEqual(t, len(opts), 2)
	cleanup()
	require.Error(t, in.Close(), "cleanup closes the terminal handles")
	require.Error(t, out.Close())
}

func TestProgramOptionsNotPiped(t *testing.T) {
	origPiped, origOpen := stdinIsPiped, openTerminalIOFn
	defer func() { stdinIsPiped, openTerminalIOFn = origPiped, origOpen }()

	stdinIsPiped = func() bool { return false }
	openTerminalIOFn = func() (*os.File, *os.File, error) {
		return nil, nil, errors.New("should not be called")
	}
	_, cleanup := programOptions()
	assert.NotPanics(t, cleanup)
}

func TestTerminalDeviceNames(t *testing.T) {
	in, out := terminalDeviceNames("windows")
	assert.Equal(t, "CONIN$", in)
	assert.Equal(t, "CONOUT$", out)
	in, out = terminalDeviceNames("linux")
	assert.Equal(t, "/dev/tty", in)
	assert.Equal(t, "/dev/tty", out)
}
