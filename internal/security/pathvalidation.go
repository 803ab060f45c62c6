// Package security guards the file paths that analyses write and the run
// browser serves.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxNameLen caps sanitized artifact names.
const maxNameLen = 128

// canonical returns the absolute, symlink-resolved form of path. For a path
// that does not exist yet the deepest existing ancestor is resolved and the
// remaining components appended, so a new file beneath a symlinked
// directory still resolves to where it would really be written.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	rest := ""
	dir := abs
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// RelWithin returns path relative to dir in slash form. It fails when path,
// after resolving symlinks, lies outside dir. dir must exist.
func RelWithin(path, dir string) (string, error) {
	canonicalPath, err := canonical(path)
	if err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory path: %w", err)
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return "", fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return filepath.ToSlash(rel), nil
}

// ValidatePathWithinDirectory reports an error when filePath would resolve
// outside safeDir, including through symlinks.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	_, err := RelWithin(filePath, safeDir)
	return err
}

// SanitizeFilename turns an artifact name into a file name. Runs of
// characters other than ASCII letters, digits, '.', '_' and '-' collapse to
// one underscore, leading and trailing dots and underscores are dropped and
// the result is capped at maxNameLen bytes. A name with nothing left
// becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		if isNameRune(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > maxNameLen {
		out = out[:maxNameLen]
	}
	if out == "" {
		return "unknown"
	}
	return out
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
