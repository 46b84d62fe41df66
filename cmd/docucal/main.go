// docucal - stage documents and turn them into calendar events
package main

import (
	"os"

	"github.com/firstbutton/docucal/internal/cli"
	"github.com/firstbutton/docucal/internal/version"
)

// Version information, set by ldflags during build
var (
	Version   = "v0.3.0"
	BuildTime = "unknown"
)

func main() {
	// internal/version is the source for User-Agent; cli prints it
	version.Version = Version
	version.BuildTime = BuildTime
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
