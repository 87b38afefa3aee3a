package app

// Build information populated via -ldflags at build time.
var (
	// BuildVersion is the semantic version of the built binary.
	BuildVersion = "0.0.0-dev"
	// BuildCommit is the VCS commit SHA associated with the build.
	BuildCommit = "unknown"
	// BuildDate is the ISO-8601 timestamp of the build.
	BuildDate = "unknown"
)

// VersionString formats the build information for -version and the run
// manifest.
func VersionString() string {
	if BuildCommit == "unknown" {
		return BuildVersion
	}
	short := BuildCommit
	if len(short) > 12 {
		short = short[:12]
	}
	return BuildVersion + "+" + short
}
