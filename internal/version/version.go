package version

import "runtime/debug"

var (
	// Version is the release version (set via -ldflags).
	Version = ""
	// Commit is the git commit hash (set via -ldflags).
	Commit = ""
)

// Resolve returns the ldflags version, falling back to the module version recorded
// in the binary's build info.
func Resolve() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func String() string {
	v := Resolve()
	if Commit == "" {
		return v
	}
	return v + " (" + shortCommit(Commit) + ")"
}

// UserAgent is sent on every outbound Hub and inference request.
func UserAgent() string {
	return "maskfill/" + Resolve()
}

func shortCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}
