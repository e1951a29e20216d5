package common

// ImplementationVersion participates in CompilerIdentity so that a
// cache-format change invalidates every previously cached entry,
// exactly like a compiler upgrade does.
const ImplementationVersion = "clcache-4"

// ManifestFormatVersion is embedded in every persisted manifest file.
// Reading a manifest written by a different version yields "absent",
// per the Data Model invariant in spec.md.
const ManifestFormatVersion = 4

// version is provided by `go build -ldflags "-X ...version=..."`.
var version string

// GetVersion returns the build-time version string, or "dev" when not set.
func GetVersion() string {
	if len(version) == 0 {
		return "dev"
	}
	return version
}
