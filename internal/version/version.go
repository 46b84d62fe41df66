// Package version provides build version information for the application.
// Kept separate so cli and api can both report it without an import cycle.
package version

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v0.3.0"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// UserAgent is sent with every backend request.
func UserAgent() string {
	return "docucal/" + Version
}
