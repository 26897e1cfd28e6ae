package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func writeConfig(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[build]
format = "asmjs"
module-name = "calc"
output = "calc.js"

[run]
entry = "start"
max-steps = 500

[log]
level = "error"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := &Config{
		Build: Build{Format: FormatAsmJS, Output: "calc.js", ModuleName: "calc"},
		Run:   Run{Entry: "start", MaxSteps: 500},
		Log:   Log{Level: "error"},
		Path:  path,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	writeConfig(t, dir, "[build]\nformat = \"ll\"\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Build.Format != FormatLLVM || cfg.Run.Entry != "main" || cfg.Log.Level != "verbose" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	writeConfig(t, dir, "[build]\nformat = \"ll\"\n")
	t.Setenv("BONSAI_FORMAT", "wasm")
	t.Setenv("BONSAI_LOG_LEVEL", "silent")
	t.Setenv("BONSAI_ENTRY", "fib")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Build.Format != FormatWasm || cfg.Log.Level != "silent" || cfg.Run.Entry != "fib" {
		t.Errorf("environment not applied: %+v", cfg)
	}
}

func TestEnvironmentChangesBetweenLoads(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Setenv("BONSAI_FORMAT", "wasm")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Build.Format != FormatWasm {
		t.Errorf("format after Setenv = %q, want %q", cfg.Build.Format, FormatWasm)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"Malformed", "[build\nformat = "},
		{"Unknown Format", "[build]\nformat = \"exe\"\n"},
		{"Unknown Level", "[log]\nlevel = \"loud\"\n"},
		{"Bad Module Name", "[build]\nmodule-name = \"1st\"\n"},
		{"Negative Steps", "[run]\nmax-steps = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			dir := t.TempDir()
			writeConfig(t, dir, tt.text)
			if _, err := Load(dir); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
