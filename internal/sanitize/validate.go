// Package sanitize validates untrusted identifiers and file paths.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Validation errors for security checks.
var (
	// ErrPathTraversal indicates a path contains directory traversal sequences.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrIsDirectory indicates a file path names an existing directory.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrInvalidSessionID indicates the session ID format is invalid.
	ErrInvalidSessionID = errors.New("invalid session ID format")
)

// MaxSessionIDLength bounds session IDs. Generated IDs are 36-char UUIDs.
const MaxSessionIDLength = 64

// sessionIDPattern is the format the logging context accepts.
var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidatePath checks a path for security issues:
//   - No directory traversal (..)
//   - Resolves to absolute path and validates it stays within expected root
//   - Returns the cleaned, absolute path or an error
//
// If allowedRoot is empty, only traversal checks are performed.
func ValidatePath(path, allowedRoot string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("%w: contains '..'", ErrPathTraversal)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if allowedRoot != "" {
		absRoot, err := filepath.Abs(allowedRoot)
		if err != nil {
			return "", fmt.Errorf("failed to resolve allowed root: %w", err)
		}
		rel, err := filepath.Rel(absRoot, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("%w: path escapes allowed root", ErrPathTraversal)
		}
	}

	return absPath, nil
}

// OutputFile validates a path a document is about to be written to. The
// path must be free of traversal and must not name an existing directory.
func OutputFile(path string) (string, error) {
	abs, err := ValidatePath(path, "")
	if err != nil {
		return "", err
	}
	base := filepath.Base(abs)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: invalid path base", ErrPathTraversal)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, abs)
	}
	return abs, nil
}

// ValidateSessionID checks that a caller-supplied session ID could have
// been issued by the session service.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidSessionID, MaxSessionIDLength)
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: must be alphanumeric with dashes or underscores", ErrInvalidSessionID)
	}
	return nil
}
