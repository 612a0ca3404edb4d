package settings

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var embeddedDefaultConfig []byte

// Config is the on-disk configuration file.
type Config struct {
	Display DisplayConfig `yaml:"display"`
	Edit    EditConfig    `yaml:"edit"`
	Panel   PanelConfig   `yaml:"panel"`
	Log     LogConfig     `yaml:"log"`
}

// DisplayConfig controls how node content is rendered.
type DisplayConfig struct {
	Format  string      `yaml:"format"`
	NoColor *bool       `yaml:"no_color"`
	Colors  ColorConfig `yaml:"colors"`
}

// ColorConfig holds ANSI codes or hex colors for panel text.
type ColorConfig struct {
	Heading   string `yaml:"heading"`
	Label     string `yaml:"label"`
	Value     string `yaml:"value"`
	Path      string `yaml:"path"`
	Separator string `yaml:"separator"`
	Error     string `yaml:"error"`
}

// EditConfig controls whether nodes may be edited.
type EditConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// PanelConfig controls the interactive panel.
type PanelConfig struct {
	Width int `yaml:"width"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfigYAML returns a copy of the embedded default configuration.
func DefaultConfigYAML() []byte {
	return append([]byte(nil), embeddedDefaultConfig...)
}

// DefaultConfig parses the embedded default configuration.
func DefaultConfig() (Config, error) {
	cfg, err := ParseConfig(embeddedDefaultConfig)
	if err != nil {
		return Config{}, fmt.Errorf("decode default config: %w", err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a configuration document. Unknown keys
// are rejected.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configured values.
func (c Config) Validate() error {
	switch strings.ToLower(c.Display.Format) {
	case "", "json", "yaml", "yml":
	default:
		return fmt.Errorf("display.format: unsupported format %q (expected json or yaml)", c.Display.Format)
	}
	if c.Panel.Width < 0 {
		return fmt.Errorf("panel.width: must not be negative, got %d", c.Panel.Width)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format: unsupported format %q (expected json or console)", c.Log.Format)
	}
	return nil
}

// Merge returns c with every value set in override applied on top.
func (c Config) Merge(override Config) Config {
	out := c
	if override.Display.Format != "" {
		out.Display.Format = override.Display.Format
	}
	if override.Display.NoColor != nil {
		out.Display.NoColor = override.Display.NoColor
	}
	mergeColor(&out.Display.Colors.Heading, override.Display.Colors.Heading)
	mergeColor(&out.Display.Colors.Label, override.Display.Colors.Label)
	mergeColor(&out.Display.Colors.Value, override.Display.Colors.Value)
	mergeColor(&out.Display.Colors.Path, override.Display.Colors.Path)
	mergeColor(&out.Display.Colors.Separator, override.Display.Colors.Separator)
	mergeColor(&out.Display.Colors.Error, override.Display.Colors.Error)
	if override.Edit.Enabled != nil {
		out.Edit.Enabled = override.Edit.Enabled
	}
	if override.Panel.Width > 0 {
		out.Panel.Width = override.Panel.Width
	}
	if override.Log.Level != "" {
		out.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		out.Log.Format = override.Log.Format
	}
	return out
}

func mergeColor(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// LoadConfig returns the default configuration merged with the file at
// path. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	user, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.Merge(user), nil
}

// ResolveConfigPath returns explicit when set, otherwise
// $XDG_CONFIG_HOME/kvedit/config.yaml or ~/.config/kvedit/config.yaml when
// that file exists, otherwise "".
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidate := ""
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidate = filepath.Join(xdg, CliBinaryName, "config.yaml")
	} else if home, err := os.UserHomeDir(); err == nil {
		candidate = filepath.Join(home, ".config", CliBinaryName, "config.yaml")
	}
	if candidate != "" {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return ""
}
