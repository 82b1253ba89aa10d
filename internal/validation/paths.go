package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxPathLength = 4096

// ValidateHandle checks an opaque file handle (such as an image file name)
// that must name a file directly inside a storage directory.
func ValidateHandle(name string) error {
	if name == "" {
		return fmt.Errorf("handle cannot be empty")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid handle %q", name)
	}
	return validateCharacters(name)
}

// ResolveWithin joins name onto base and verifies the result stays inside base.
func ResolveWithin(base, name string) (string, error) {
	if err := ValidateHandle(name); err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("cannot resolve base directory: %w", err)
	}
	full := filepath.Join(absBase, name)
	rel, err := filepath.Rel(absBase, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path traversal denied")
	}
	return full, nil
}

// ValidateDestination validates a caller-chosen output file path. It expands
// a leading ~/, makes the path absolute, and requires the parent directory to
// exist and the path itself not to be a directory.
func ValidateDestination(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if len(path) > maxPathLength {
		return "", fmt.Errorf("path too long (max %d characters)", maxPathLength)
	}
	if err := validateCharacters(path); err != nil {
		return "", err
	}

	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}

	parent := filepath.Dir(expanded)
	info, err := os.Stat(parent)
	if err != nil {
		return "", fmt.Errorf("checking parent directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("parent is not a directory: %s", parent)
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", expanded)
	}
	return expanded, nil
}

// ExpandPath expands ~ to the home directory and converts to an absolute, clean path.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	} else if strings.HasPrefix(path, "~") {
		return "", fmt.Errorf("invalid tilde usage")
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("cannot make path absolute: %w", err)
		}
		path = abs
	}
	return filepath.Clean(path), nil
}

func validateCharacters(path string) error {
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null bytes")
	}
	for _, char := range path {
		if char < 32 && char != '\t' {
			return fmt.Errorf("path contains control characters")
		}
	}
	return nil
}
