package cmd

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"runtime"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/oakwood-commons/kvedit/internal/formatter"
	"github.com/oakwood-commons/kvedit/pkg/document"
	"github.com/oakwood-commons/kvedit/pkg/logger"
	"github.com/oakwood-commons/kvedit/pkg/node"
	"github.com/oakwood-commons/kvedit/pkg/session"
	"github.com/oakwood-commons/kvedit/pkg/settings"
)

// errShowHelp is returned when no input is given on an interactive stdin.
var errShowHelp = errors.New("no input provided")

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

type rootOptions struct {
	path        string
	where       string
	sets        []string
	write       bool
	output      string
	interactive bool
	noColor     bool
	debug       bool
	configFile  string
}

// NewRootCmd builds the kvedit command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   settings.CliBinaryName + " [file]",
		Short: "View and edit one node of a JSON, YAML, or TOML document",
		Long: `kvedit selects a node in a structured document and shows its content and
path. Scalar fields of the node can be edited in an interactive panel or
with --set; values are coerced to numbers, booleans, and null when they
look like one.`,
		Example: "\n  kvedit config.yaml -p 'server'\n" +
			"  kvedit data.json -p 'customer[0]' --set age=31 --write\n" +
			"  kvedit data.json --where '_.name == \"alice\"' -i\n" +
			"  cat data.json | kvedit -p '$[\"meta\"]' -o yaml\n",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runRoot(cmd, opts, args)
			if errors.Is(err, errShowHelp) {
				return cmd.Help()
			}
			return err
		},
	}

	f := root.Flags()
	f.StringVarP(&opts.path, "path", "p", "$", "path of the node to select, e.g. customer[0] or $[\"customer\"][0]")
	f.StringVar(&opts.where, "where", "", "CEL predicate with '_' bound to each node; selects the first match")
	f.StringArrayVar(&opts.sets, "set", nil, "set a field of the selected node (key=value, repeatable)")
	f.BoolVarP(&opts.write, "write", "w", false, "write changes back to the input file")
	f.StringVarP(&opts.output, "output", "o", "", "content format: json|yaml (default from config)")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "open the interactive panel (default when stdout is a terminal)")
	f.BoolVar(&opts.noColor, "no-color", false, "disable color output")
	f.BoolVar(&opts.debug, "debug", false, "enable debug logging (overrides log.level)")
	f.StringVar(&opts.configFile, "config-file", "", "path to a YAML config file")
	root.MarkFlagsMutuallyExclusive("path", "where")

	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print kvedit version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return err
		},
	}
}

func versionString() string {
	v := settings.VersionInformation
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", settings.CliBinaryName, v.BuildVersion, v.Commit, v.BuildTime, runtime.Version())
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func runRoot(cmd *cobra.Command, opts *rootOptions, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	run, styles, err := resolveRun(cmd, opts)
	if err != nil {
		return err
	}
	base := logger.Get(logger.Options{Level: run.MinLogLevel, Console: run.LogConsole})
	ctx = logger.WithLogger(ctx, logger.WithValues(base, logger.RootCommandKey, settings.CliBinaryName, logger.SubCommandKey, cmd.Name()))
	ctx = settings.IntoContext(ctx, run)
	lgr := *logger.FromContext(ctx)
	displayFormat, err := node.ParseFormat(run.DisplayFormat)
	if err != nil {
		return usageErrorf("--output: %v", err)
	}
	if opts.write && len(args) == 0 {
		return usageErrorf("--write needs an input file")
	}
	if len(opts.sets) > 0 && !run.EditEnabled {
		return usageErrorf("--set: editing is disabled by configuration")
	}
	edits, err := parseSets(opts.sets)
	if err != nil {
		return usageErrorf("--set: %v", err)
	}

	if len(args) == 1 {
		lgr = lgr.WithValues(logger.FileKey, args[0])
	}
	doc, err := loadDocument(cmd, args, lgr)
	if err != nil {
		return err
	}

	matches, err := selectNode(ctx, doc, opts)
	if err != nil {
		return err
	}

	sess := session.New(doc,
		session.WithLogger(lgr),
		session.WithDisplayFormat(displayFormat),
		session.WithOnSaved(func(p node.Path, f *node.Fields) {
			lgr.V(1).Info("node saved", "path", node.FormatPath(p), "fields", f.Len())
		}),
	)
	unsubscribe := doc.Subscribe(sess.Select)
	defer unsubscribe()
	sess.Open()

	if len(edits) > 0 {
		if err := applySets(ctx, sess, edits); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if run.Interactive {
		if err := runPanel(ctx, sess, doc, matches, styles); err != nil {
			return err
		}
	} else if len(edits) == 0 {
		if _, err := fmt.Fprintln(out, renderNode(sess, styles)); err != nil {
			return err
		}
	}

	return flushDocument(doc, opts, args, out, lgr)
}

// resolveRun merges the config file under explicitly set flags.
func resolveRun(cmd *cobra.Command, opts *rootOptions) (*settings.Run, formatter.Styles, error) {
	cfg, err := settings.LoadConfig(settings.ResolveConfigPath(opts.configFile))
	if err != nil {
		return nil, formatter.Styles{}, usageErrorf("config: %v", err)
	}
	run := settings.NewCliParams()
	run.Apply(cfg)

	f := cmd.Flags()
	if opts.debug {
		run.MinLogLevel = -2
	}
	if f.Changed("no-color") {
		run.NoColor = opts.noColor
	}
	if f.Changed("output") {
		run.DisplayFormat = opts.output
	}
	if f.Changed("interactive") {
		run.Interactive = opts.interactive
	} else {
		run.Interactive = len(opts.sets) == 0 && stdoutIsTerminal()
	}
	if !run.Interactive && !stdoutIsTerminal() {
		run.NoColor = true
	}
	return run, formatter.NewStyles(colorsFromConfig(cfg.Display.Colors), run.NoColor), nil
}

func colorsFromConfig(c settings.ColorConfig) formatter.Colors {
	var out formatter.Colors
	for _, m := range []struct {
		src string
		dst *color.Color
	}{
		{c.Heading, &out.Heading},
		{c.Label, &out.Label},
		{c.Value, &out.Value},
		{c.Path, &out.Path},
		{c.Separator, &out.Separator},
		{c.Error, &out.Error},
	} {
		if m.src != "" {
			*m.dst = lipgloss.Color(m.src)
		}
	}
	return out
}

func loadDocument(cmd *cobra.Command, args []string, lgr logr.Logger) (*document.Document, error) {
	if len(args) == 1 {
		return document.Open(args[0], document.WithLogger(lgr))
	}
	in := cmd.InOrStdin()
	if in == os.Stdin && !stdinIsPiped() {
		return nil, errShowHelp
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errShowHelp
	}
	return document.Parse(data, document.WithLogger(lgr))
}

// selectNode selects the node named by --path, or the first --where match.
// It returns every match so the panel can step through them.
func selectNode(ctx context.Context, doc *document.Document, opts *rootOptions) ([]node.Path, error) {
	if opts.where == "" {
		if _, err := doc.Select(opts.path); err != nil {
			return nil, fmt.Errorf("select %q: %w", opts.path, err)
		}
		return nil, nil
	}
	matches, err := doc.Find(ctx, opts.where)
	if err != nil {
		return nil, usageErrorf("--where: %v", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("--where %q: %w", opts.where, document.ErrNotFound)
	}
	if _, err := doc.SelectPath(matches[0]); err != nil {
		return nil, err
	}
	return matches, nil
}

// flushDocument writes a changed document back to its file with --write,
// or prints it otherwise.
func flushDocument(doc *document.Document, opts *rootOptions, args []string, out io.Writer, lgr logr.Logger) error {
	if !doc.Dirty() {
		return nil
	}
	if opts.write {
		if err := doc.WriteFile(args[0]); err != nil {
			return fmt.Errorf("write %s: %w", args[0], err)
		}
		lgr.Info("document written", "format", string(doc.Format()))
		return nil
	}
	data, err := doc.Encode()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
