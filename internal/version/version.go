// Package version carries the build-time version string.
package version

// Version is stamped by the release build via -ldflags.
var Version = "dev"
