package version

import "fmt"

var (
	// Version is the semantic version of the binary. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp. Overridden at build time.
	BuildDate = "unknown"
)

// UserAgent identifies this build to upstream APIs.
func UserAgent() string {
	return "cryptotracker/" + Version
}

// String summarises the build for the version command.
func String() string {
	return fmt.Sprintf("cryptotracker %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}
