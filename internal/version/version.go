// Package version exposes build version metadata.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"

// String returns the printable version line.
func String() string {
	return "knobd " + Version
}
