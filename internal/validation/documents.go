// Package validation provides input validation for picked documents.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/firstbutton/docucal/internal/constants"
)

// ErrUnsupportedType is returned for files the picker does not accept.
var ErrUnsupportedType = errors.New("unsupported document type")

// ValidateFilename validates a base name before it is sent as the multipart
// file name.
//
// Returns an error if the filename:
//   - Is empty
//   - Contains path separators (/ or \)
//   - Is the literal ".."
//   - Contains null bytes
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}

	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}

	// Names like "scan..v2.pdf" are fine; only the parent reference is rejected
	if filename == ".." {
		return fmt.Errorf("filename cannot be '..'")
	}

	return nil
}

// IsAcceptedDocument reports whether name has one of the accepted extensions
// (.jpg, .jpeg, .png, .pdf), ignoring case.
func IsAcceptedDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range constants.AcceptedExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}

// ValidateDocument checks a picked file's name: a valid base name with an
// accepted extension.
func ValidateDocument(name string) error {
	if err := ValidateFilename(name); err != nil {
		return err
	}
	if !IsAcceptedDocument(name) {
		return fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupportedType, name,
			strings.Join(constants.AcceptedExtensions, ", "))
	}
	return nil
}
