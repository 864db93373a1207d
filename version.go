package pagetree

// Version identifies this build of the file format and library, mirroring
// get_version(&maj, &min, &rev) from the design's public API surface (§6.2).
const (
	VersionMajor    = 1
	VersionMinor    = 0
	VersionRevision = 0
)

// GetVersion reports the library/file-format version.
func GetVersion() (major, minor, revision int) {
	return VersionMajor, VersionMinor, VersionRevision
}
