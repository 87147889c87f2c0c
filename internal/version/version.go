// Package version provides version information for telecommand.
// The Version variable is set at build time via ldflags.
package version

import "strings"

// Version is the current version of telecommand.
// Set at build time via: -ldflags "-X github.com/xdg/telecommand/internal/version.Version=v1.0.0"
// Defaults to "dev" for development builds.
var Version = "dev"

// Product names telecommand in User-Agent headers.
const Product = "telecommand"

// IsDev reports whether this is a development build.
func IsDev() bool {
	return strings.Contains(Version, "dev")
}

// UserAgent is sent by the worker to the relay and the console collector.
func UserAgent() string {
	return Product + "/" + strings.TrimPrefix(Version, "v")
}
