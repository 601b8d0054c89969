// Package build holds version information injected at link time:
//
//	go build -ldflags "-X github.com/haivivi/maafw/cmd/maactl/internal/build.Version=v0.3.0 \
//	  -X github.com/haivivi/maafw/cmd/maactl/internal/build.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/haivivi/maafw/cmd/maactl/internal/build.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package build

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the build description printed by `maactl version`.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`

	// Library is the MaaFramework version, when the library could be loaded.
	Library string `json:"library,omitempty"`
}

func Current() Info {
	return Info{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
}

// String returns a one-line version string.
func String() string {
	return fmt.Sprintf("maactl %s (%s) built %s %s/%s",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
