// Package config loads build and run settings from an optional bonsai.toml
// and the BONSAI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml"
	"github.com/xyproto/env/v2"
)

// FileName is the configuration file looked up next to the source file.
const FileName = "bonsai.toml"

// Output formats accepted by the build command.
const (
	FormatAsmJS = "asmjs"
	FormatWast  = "wast"
	FormatWasm  = "wasm"
	FormatLLVM  = "ll"
)

var formats = map[string]bool{FormatAsmJS: true, FormatWast: true, FormatWasm: true, FormatLLVM: true}

var logLevels = map[string]bool{"silent": true, "error": true, "warning": true, "verbose": true}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

type Build struct {
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	ModuleName string `toml:"module-name"`
}

type Run struct {
	Entry    string `toml:"entry"`
	MaxSteps int64  `toml:"max-steps"`
}

type Log struct {
	Level string `toml:"level"`
}

// Config is the merged configuration. Path is the file it was read from, or
// empty when only defaults and the environment apply.
type Config struct {
	Build Build `toml:"build"`
	Run   Run   `toml:"run"`
	Log   Log   `toml:"log"`

	Path string `toml:"-"`
}

func Default() *Config {
	return &Config{
		Build: Build{Format: FormatWast, ModuleName: "module"},
		Run:   Run{Entry: "main", MaxSteps: 10_000_000},
		Log:   Log{Level: "verbose"},
	}
}

// Load reads bonsai.toml from dir, falling back to the working directory,
// then applies environment overrides. A missing file is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()

	candidates := []string{filepath.Join(dir, FileName)}
	if wd, err := os.Getwd(); err == nil && wd != dir {
		candidates = append(candidates, filepath.Join(wd, FileName))
	}
	for _, path := range candidates {
		buff, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("error reading config file at `%s`: %w", path, err)
		}
		if err := toml.Unmarshal(buff, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file at `%s`: %w", path, err)
		}
		cfg.Path = path
		break
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	// env caches os.Environ on first use; reload so each Load sees the current environment.
	env.Load()
	c.Build.Format = env.Str("BONSAI_FORMAT", c.Build.Format)
	c.Log.Level = env.Str("BONSAI_LOG_LEVEL", c.Log.Level)
	c.Run.Entry = env.Str("BONSAI_ENTRY", c.Run.Entry)
}

// Validate rejects unknown formats and log levels.
func (c *Config) Validate() error {
	if !formats[c.Build.Format] {
		return fmt.Errorf("unknown output format `%s`", c.Build.Format)
	}
	if !logLevels[c.Log.Level] {
		return fmt.Errorf("unknown log level `%s`", c.Log.Level)
	}
	if !identifier.MatchString(c.Build.ModuleName) {
		return fmt.Errorf("module name `%s` must be a valid identifier", c.Build.ModuleName)
	}
	if c.Run.Entry == "" {
		return errors.New("missing entry function name")
	}
	if c.Run.MaxSteps < 0 {
		return fmt.Errorf("max-steps must not be negative, got %d", c.Run.MaxSteps)
	}
	return nil
}

// IsTextFormat reports whether format produces printable output.
func IsTextFormat(format string) bool {
	return format != FormatWasm
}
