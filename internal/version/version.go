// Package version reports build information for the sectorcast binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	unknownValue     = "unknown"
	commitHashLength = 7
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// BuildInfo contains build and dependency information
type BuildInfo struct {
	Version   string   `json:"version"`
	BuildDate string   `json:"build_date"`
	GitCommit string   `json:"git_commit"`
	GoVersion string   `json:"go_version"`
	Dirty     bool     `json:"dirty"`
	Module    string   `json:"module"`
	Deps      []Module `json:"deps"`
}

// Module represents a Go module with version information
type Module struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Info returns build information, including the dependency versions linked
// into the binary when the runtime has them.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Module = bi.Main.Path
		for _, dep := range bi.Deps {
			info.Deps = append(info.Deps, Module{Path: dep.Path, Version: dep.Version})
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.modified" && s.Value == "true" {
				info.Dirty = true
			}
		}
	}
	return info
}

// Dependency returns the linked version of the module at path, or "".
func (b BuildInfo) Dependency(path string) string {
	for _, d := range b.Deps {
		if d.Path == path {
			return d.Version
		}
	}
	return ""
}

// String returns the multi-line text printed by `sectorcast version`.
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("sectorcast\n")
	fmt.Fprintf(&sb, "Version: %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	if b.GitCommit != unknownValue {
		commit := strings.TrimSuffix(b.GitCommit, "-dirty")
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	if arrow := b.Dependency("github.com/apache/arrow-go/v18"); arrow != "" {
		fmt.Fprintf(&sb, "Arrow: %s\n", arrow)
	}
	return sb.String()
}

// IsRelease returns true if this is a tagged release build (not dev or a pre-release).
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}
