package logging

import (
	"errors"
	"testing"

	"bonsaic/pkg/diag"
)

func TestLevelFromName(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"silent", LogLevelSilent},
		{"error", LogLevelError},
		{"warning", LogLevelWarning},
		{"verbose", LogLevelVerbose},
		{"loud", LogLevelVerbose},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelFromName(tt.name); got != tt.want {
				t.Errorf("LevelFromName(%q) = %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestSilentLoggerCounts(t *testing.T) {
	Initialize("silent")
	if !ShouldProceed() {
		t.Fatalf("fresh logger reports errors")
	}

	err := diag.AtLine(diag.New(diag.TypeMismatch, "assignment", "int = double"), 2)
	ReportCompileError("a.c", "int x;\nx = y;\n", err)
	ReportCompileError("a.c", "", errors.New("plain"))
	ReportWarning("unused variable")
	Finish()

	if ShouldProceed() {
		t.Errorf("ShouldProceed after errors")
	}
	if n := Current().ErrorCount(); n != 2 {
		t.Errorf("ErrorCount = %d, want 2", n)
	}
	if n := Current().WarningCount(); n != 1 {
		t.Errorf("WarningCount = %d, want 1", n)
	}
}

func TestPlural(t *testing.T) {
	if plural(1, "error", "errors") != "error" || plural(0, "error", "errors") != "errors" {
		t.Errorf("plural picked the wrong form")
	}
}
