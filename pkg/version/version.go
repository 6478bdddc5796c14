// Package version exposes build metadata stamped at link time.
package version

// Populated via -ldflags at release time. The defaults identify a source
// build that was not stamped.
var (
	// Version is the semantic version of the axon binary.
	Version = "0.0.0-dev"

	// GitHash is the Git commit the binary was built from.
	GitHash = "<unknown>"

	// BuildDate is the UTC build timestamp, RFC 3339.
	BuildDate = "<unknown>"
)

// String renders the single version line printed by `axon version`.
func String() string {
	return Version + " (" + GitHash + ", built " + BuildDate + ")"
}
