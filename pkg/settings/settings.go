// Package settings provides build metadata, per-run options, and the
// configuration file used by the kvedit CLI.
package settings

import (
	"fmt"
	"strings"
)

// CliBinaryName is the canonical binary name for this tool.
const CliBinaryName = "kvedit"

// VersionInformation is populated at build time via ldflags.
var VersionInformation = VersionInfo{
	Commit:       "unknown",
	BuildVersion: "v0.0.0-nightly",
	BuildTime:    "unknown",
}

// VersionInfo holds metadata about the build.
type VersionInfo struct {
	Commit       string
	BuildVersion string
	BuildTime    string
}

// Run holds the options for a single execution, after flags and the
// configuration file have been merged.
type Run struct {
	MinLogLevel   int8
	LogConsole    bool
	NoColor       bool
	Interactive   bool
	EditEnabled   bool
	DisplayFormat string
	PanelWidth    int
}

// NewCliParams returns the defaults for a CLI run.
func NewCliParams() *Run {
	return &Run{
		MinLogLevel:   0,
		LogConsole:    false,
		NoColor:       false,
		Interactive:   false,
		EditEnabled:   true,
		DisplayFormat: "json",
		PanelWidth:    60,
	}
}

// Apply copies values set in cfg onto r.
func (r *Run) Apply(cfg Config) {
	if cfg.Display.Format != "" {
		r.DisplayFormat = cfg.Display.Format
	}
	if cfg.Display.NoColor != nil {
		r.NoColor = *cfg.Display.NoColor
	}
	if cfg.Edit.Enabled != nil {
		r.EditEnabled = *cfg.Edit.Enabled
	}
	if cfg.Panel.Width > 0 {
		r.PanelWidth = cfg.Panel.Width
	}
	if level, err := ParseLogLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		r.MinLogLevel = level
	}
	if cfg.Log.Format != "" {
		r.LogConsole = strings.EqualFold(cfg.Log.Format, "console")
	}
}

// ParseLogLevel maps a level name onto a zap level. debug also enables the
// verbose V(2) messages.
func ParseLogLevel(name string) (int8, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return -2, nil
	case "", "info":
		return 0, nil
	case "warn", "warning":
		return 1, nil
	case "error":
		return 2, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", name)
	}
}
