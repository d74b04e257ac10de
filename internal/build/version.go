package build

import (
	"fmt"
	"strings"
)

// Version information. Commit and friends are injected at link time via
// -ldflags.
var (
	// Commit stores the current git tag or short hash, when built from a
	// release script.
	Commit string

	// CommitHash stores the full commit hash.
	CommitHash string

	// GoVersion stores the go version the binary was built with.
	GoVersion string

	// RawTags contains the comma-separated build tags.
	RawTags string
)

const (
	// appMajor defines the major version of this binary.
	appMajor uint = 0

	// appMinor defines the minor version of this binary.
	appMinor uint = 3

	// appPatch defines the application patch for this binary.
	appPatch uint = 0

	// appPreRelease MUST only contain characters from the semantic
	// version alphabet per the semver spec.
	appPreRelease = "beta"
)

// Version returns the application version as a properly formed string per
// the semantic versioning 2.0.0 spec (http://semver.org/).
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)

	if appPreRelease != "" {
		version = fmt.Sprintf("%s-%s", version, appPreRelease)
	}

	return version
}

// Tags returns the build tags the binary was compiled with.
func Tags() []string {
	if len(RawTags) == 0 {
		return nil
	}

	return strings.Split(RawTags, ",")
}
