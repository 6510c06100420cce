// Package version holds build metadata stamped in via -ldflags, for example:
//
//	go build -ldflags "-X github.com/banshee-data/sonar.report/internal/version.Version=v0.3.0"
package version

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
