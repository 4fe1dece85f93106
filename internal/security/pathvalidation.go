// Package security validates externally supplied file paths before the
// loaders touch them. Manifests are data, not trusted input: a raster path
// must never reach outside the directory the manifest lives in.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports an error unless path resolves to a
// location inside dir. Symlinks are resolved first so a link cannot smuggle
// the path out of dir; for paths that do not exist yet the nearest existing
// ancestor is resolved instead.
func ValidatePathWithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}

	canonical, err := canonicalize(absPath)
	if err != nil {
		return err
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolving directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonical)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal: %s escapes %s", path, dir)
	}
	return nil
}

// canonicalize resolves symlinks in path. When the path does not exist it
// resolves the nearest existing ancestor and rejoins the remainder, so a
// symlinked parent directory is still caught.
func canonicalize(absPath string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}
	for check := absPath; ; {
		parent := filepath.Dir(check)
		if parent == check {
			return absPath, nil
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, err := filepath.Rel(parent, absPath)
			if err != nil {
				return "", fmt.Errorf("resolving path against %s: %w", parent, err)
			}
			return filepath.Join(resolved, rel), nil
		}
		check = parent
	}
}
