// Package api provides error types for backend responses.
package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthRequired indicates the backend rejected the credential (HTTP 401).
// The caller should send the user through sign-in again.
var ErrAuthRequired = errors.New("login required")

// UploadError describes why one document was not accepted.
// StatusCode is 0 when no response was received.
type UploadError struct {
	File       string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	switch {
	case e.StatusCode == 401:
		return fmt.Sprintf("%s: %v", e.File, ErrAuthRequired)
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: upload failed: status %d: %s", e.File, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: upload failed: status %d", e.File, e.StatusCode)
	default:
		return fmt.Sprintf("%s: upload failed: %v", e.File, e.Err)
	}
}

func (e *UploadError) Unwrap() error {
	if e.StatusCode == 401 {
		return ErrAuthRequired
	}
	return e.Err
}

// LoginURLError is returned when the sign-in URL could not be obtained.
type LoginURLError struct {
	StatusCode int
	Err        error
}

func (e *LoginURLError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to get login URL: status %d", e.StatusCode)
	}
	return fmt.Sprintf("failed to get login URL: %v", e.Err)
}

func (e *LoginURLError) Unwrap() error {
	return e.Err
}

// IsAuthRequired checks if an error means the session is no longer valid.
//
// Detects:
//  1. Wrapped ErrAuthRequired
//  2. UploadError carrying HTTP 401
func IsAuthRequired(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthRequired) {
		return true
	}
	var ue *UploadError
	return errors.As(err, &ue) && ue.StatusCode == 401
}

// trimBody shortens a response body for error messages.
func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
