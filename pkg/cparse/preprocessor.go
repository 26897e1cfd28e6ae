package cparse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Preprocess expands `#include "file"` and object-like `#define NAME value`
// directives. Directive lines become blank lines so that line numbers in the
// including file stay stable.
func Preprocess(src string, baseDir string) (string, error) {
	pp := &preprocessor{
		defines: make(map[string]string),
		done:    make(map[string]bool),
	}
	return pp.run(src, baseDir, map[string]bool{})
}

type preprocessor struct {
	defines map[string]string
	done    map[string]bool // files already expanded once
}

func (pp *preprocessor) run(src, baseDir string, stack map[string]bool) (string, error) {
	var out strings.Builder
	for n, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "#define"):
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "#define"))
			if rest == "" {
				return "", fmt.Errorf("line %d: #define without a name", n+1)
			}
			name, value, _ := strings.Cut(rest, " ")
			if strings.ContainsRune(name, '(') {
				return "", fmt.Errorf("line %d: function-like macro %q is not supported", n+1, name)
			}
			pp.defines[name] = pp.expand(strings.TrimSpace(value))
			out.WriteString("\n")

		case strings.HasPrefix(trimmed, "#include"):
			text, err := pp.include(trimmed, baseDir, stack)
			if err != nil {
				return "", fmt.Errorf("line %d: %w", n+1, err)
			}
			out.WriteString(text)
			out.WriteString("\n")

		case strings.HasPrefix(trimmed, "#"):
			return "", fmt.Errorf("line %d: unsupported directive %q", n+1, trimmed)

		default:
			out.WriteString(pp.expand(line))
			out.WriteString("\n")
		}
	}
	return out.String(), nil
}

func (pp *preprocessor) include(directive, baseDir string, stack map[string]bool) (string, error) {
	parts := strings.SplitN(directive, "\"", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid include directive: %s", directive)
	}
	filename := parts[1]

	// Relative to the including file first, then to the working directory.
	fullPath := filepath.Join(baseDir, filename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		if _, err := os.Stat(filename); err == nil {
			fullPath = filename
		}
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	if stack[absPath] {
		return "", fmt.Errorf("circular include detected: %s", filename)
	}
	if pp.done[absPath] {
		return "", nil
	}
	pp.done[absPath] = true

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read included file %s: %w", filename, err)
	}

	inner := make(map[string]bool, len(stack)+1)
	for k := range stack {
		inner[k] = true
	}
	inner[absPath] = true
	return pp.run(string(content), filepath.Dir(fullPath), inner)
}

// expand substitutes defined names on identifier boundaries.
func (pp *preprocessor) expand(line string) string {
	if len(pp.defines) == 0 {
		return line
	}
	var sb strings.Builder
	rs := []rune(line)
	for i := 0; i < len(rs); {
		if !isIdentStart(rs[i]) {
			// Skip whole numeric lexemes so 1e5 never expands "e5".
			if rs[i] >= '0' && rs[i] <= '9' {
				start := i
				for i < len(rs) && (isIdentPart(rs[i]) || rs[i] == '.') {
					i++
				}
				sb.WriteString(string(rs[start:i]))
				continue
			}
			sb.WriteRune(rs[i])
			i++
			continue
		}
		start := i
		for i < len(rs) && isIdentPart(rs[i]) {
			i++
		}
		word := string(rs[start:i])
		if value, ok := pp.defines[word]; ok {
			sb.WriteString(value)
		} else {
			sb.WriteString(word)
		}
	}
	return sb.String()
}
