package constants

import (
	"time"
)

// Backend endpoints (relative to the configured base URL)
const (
	// LoginPath returns {"url": "..."} pointing at the external sign-in page
	LoginPath = "/api/auth/login"

	// UploadPath accepts one multipart document per request
	UploadPath = "/api/schedule/upload"

	// DefaultBaseURL - backend address used when nothing is configured
	DefaultBaseURL = "http://localhost:8000"
)

// Multipart form fields for UploadPath
const (
	FormFieldFile  = "uploaded_file"
	FormFieldColor = "event_color"
)

// Request headers
const (
	// HeaderRequestID - unique per submitted file
	HeaderRequestID = "X-Request-ID"

	// HeaderCommitID - shared by every request of one commit
	HeaderCommitID = "X-Commit-ID"
)

// Session cookie
const (
	// SessionCookieName - cookie holding the URL-encoded account email.
	// Its presence is the only signal that a user is signed in.
	SessionCookieName = "user_email"

	// SessionCookiePath - path scope used when writing and clearing the cookie
	SessionCookiePath = "/"
)

// AcceptedExtensions lists the document types the picker lets through (lower case, with dot)
var AcceptedExtensions = []string{".jpg", ".jpeg", ".png", ".pdf"}

// Event bus configuration
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - upper bound for caller-provided buffer sizes
	EventBusMaxBuffer = 4096
)

// Retry configuration for connection-level failures.
// Only dial errors are retried; a request that reached the server is never replayed.
const (
	// MaxDialRetries - retries after a failed connection attempt
	MaxDialRetries = 3

	// RetryWaitMin - initial backoff
	RetryWaitMin = 500 * time.Millisecond

	// RetryWaitMax - backoff ceiling
	RetryWaitMax = 5 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// DefaultRequestTimeout - per-request budget for one document upload.
	// Document processing on the backend can take a while.
	DefaultRequestTimeout = 300 * time.Second

	// LoginURLTimeout - budget for fetching the sign-in URL
	LoginURLTimeout = 15 * time.Second
)

// Log file rotation (lumberjack)
const (
	LogMaxSizeMB  = 10
	LogMaxBackups = 5
	LogMaxAgeDays = 30
)

// File permissions
const (
	// ConfigDirPerm - config directory is private to the user
	ConfigDirPerm = 0700

	// ConfigFilePerm - config and session files are private to the user
	ConfigFilePerm = 0600
)


// Upload streaming
const (
	// CopyBufferSize - buffer used when copying a document into the multipart body (256KB)
	CopyBufferSize = 256 * 1024
)
