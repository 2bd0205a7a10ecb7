// Package turbopath teaches the Go type system about the path flavors that
// flow through the engine:
//   - AbsoluteSystemPath: absolute, volume included, system separators.
//   - AnchoredSystemPath: relative to some (unnamed) root, system separators.
//   - RelativeSystemPath: arbitrary relative segments, system separators.
//   - AbsoluteUnixPath / AnchoredUnixPath / RelativeUnixPath: the same three
//     shapes, but always forward-slash. This is the form that crosses into a
//     hash or a cache key, so that hashes stay stable across Windows/POSIX.
//
// Conversions between these are explicit; there is no implicit coercion, and
// joining two paths requires them to already agree on separator convention.
package turbopath

// stamp interfaces exist purely so the type system can refuse to mix up
// path flavors that are all, underneath, just strings.
type absoluteStamp interface{ absolutePathStamp() }
type anchoredStamp interface{ anchoredPathStamp() }
type relativeStamp interface{ relativePathStamp() }
type systemStamp interface{ systemPathStamp() }
type unixStamp interface{ unixPathStamp() }

// RelativeSystemPathArray enables bulk operations on slices of RelativeSystemPath.
type RelativeSystemPathArray []RelativeSystemPath

// ToStringArray renders every element to a plain string.
func (a RelativeSystemPathArray) ToStringArray() []string {
	out := make([]string, len(a))
	for i, p := range a {
		out[i] = p.ToString()
	}
	return out
}

// AnchoredSystemPathArray enables bulk operations on slices of AnchoredSystemPath.
type AnchoredSystemPathArray []AnchoredSystemPath

// ToStringArray renders every element to a plain string.
func (a AnchoredSystemPathArray) ToStringArray() []string {
	out := make([]string, len(a))
	for i, p := range a {
		out[i] = p.ToString()
	}
	return out
}

// The functions below import a bare string and stamp it as a particular path
// flavor without validation. They exist to mark the handful of places where a
// path string crosses in from outside (CLI flags, JSON config, OS APIs) into
// the safely-typed world, the way `unsafe` marks a trust boundary.

// AbsoluteSystemPathFromUpstream casts path without checking it is actually absolute.
func AbsoluteSystemPathFromUpstream(path string) AbsoluteSystemPath {
	return AbsoluteSystemPath(path)
}

// AnchoredSystemPathFromUpstream casts path without checking it is actually anchored.
func AnchoredSystemPathFromUpstream(path string) AnchoredSystemPath {
	return AnchoredSystemPath(path)
}

// AnchoredUnixPathFromUpstream casts path without checking it is unix-separated.
func AnchoredUnixPathFromUpstream(path string) AnchoredUnixPath {
	return AnchoredUnixPath(path)
}

// RelativeSystemPathFromUpstream casts path without checking it is relative.
func RelativeSystemPathFromUpstream(path string) RelativeSystemPath {
	return RelativeSystemPath(path)
}
