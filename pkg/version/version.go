package version

// Version is the binary version injected by the build system via ldflags
var Version string

// GitCommit is the git commit sha the binary was built from, injected via ldflags
var GitCommit string

// GetVersion returns the version string, falling back to v0.1.0 when no
// ldflags were set, with the short commit hash appended if available.
func GetVersion() string {
	version := Version
	if version == "" {
		version = "v0.1.0"
	}

	commit := GitCommit
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		return version + "-" + commit
	}

	return version
}
