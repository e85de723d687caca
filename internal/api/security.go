package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forTEXT/catma-go/internal/validation"
)

var (
	// ErrPathTraversal is returned when path traversal is detected.
	ErrPathTraversal = errors.New("path traversal detected")
	// ErrInvalidPath is returned when the path is invalid.
	ErrInvalidPath = errors.New("invalid path")
	// ErrPathOutsideBase is returned when a path escapes the base
	// directory.
	ErrPathOutsideBase = errors.New("path outside allowed directory")
)

// ValidatePath validates a user-supplied path against baseDir and
// returns the cleaned relative path. Traversal attempts, absolute
// paths, and paths resolving outside baseDir are rejected.
func ValidatePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	if strings.Contains(userPath, "..") {
		return "", fmt.Errorf("%w: path contains '..'", ErrPathTraversal)
	}

	cleanPath := filepath.Clean(userPath)
	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("%w: path contains '..' after cleaning", ErrPathTraversal)
	}
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}

	safePath, err := validation.SanitizePath(baseDir, cleanPath)
	if err != nil {
		if errors.Is(err, validation.ErrPathTraversal) {
			return "", fmt.Errorf("%w: %v", ErrPathTraversal, err)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, safePath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: path resolution failed", ErrPathOutsideBase)
	}
	if strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("%w: path escapes base directory", ErrPathOutsideBase)
	}

	return safePath, nil
}

// ValidateID validates a resource ID used in URL paths and translated
// to filenames or database keys.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidPath)
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: ID cannot contain path separators", ErrInvalidPath)
	}
	if err := validation.ValidateFilename(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if cleaned := filepath.Base(filepath.Clean(id)); cleaned != id {
		return fmt.Errorf("%w: ID normalization changed value", ErrInvalidPath)
	}
	return nil
}
