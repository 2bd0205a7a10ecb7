package turbopath

import "path/filepath"

// AnchoredSystemPath is "absolute, starting at some anchor" (a repo root, an
// os.dirFS, a package directory) using system separators. It carries no
// opinion about what the anchor actually is and is stored without a leading
// separator, matching io/fs conventions.
type AnchoredSystemPath string

func (AnchoredSystemPath) anchoredPathStamp() {}
func (AnchoredSystemPath) systemPathStamp()   {}

// ToString returns the plain string form.
func (p AnchoredSystemPath) ToString() string { return string(p) }

// ToUnixPath renders this path using forward slashes.
func (p AnchoredSystemPath) ToUnixPath() AnchoredUnixPath {
	return AnchoredUnixPath(filepath.ToSlash(string(p)))
}

// RestoreAnchor re-attaches this path to a concrete absolute root.
func (p AnchoredSystemPath) RestoreAnchor(root AbsoluteSystemPath) AbsoluteSystemPath {
	return root.UntypedJoin(string(p))
}

// AnchoredUnixPath is an AnchoredSystemPath rendered with forward slashes.
// This is the canonical form used inside hashes and cache archive entries.
type AnchoredUnixPath string

func (AnchoredUnixPath) anchoredPathStamp() {}
func (AnchoredUnixPath) unixPathStamp()     {}

// ToString returns the plain string form.
func (p AnchoredUnixPath) ToString() string { return string(p) }

// ToSystemPath converts back to the host's separator convention.
func (p AnchoredUnixPath) ToSystemPath() AnchoredSystemPath {
	return AnchoredSystemPath(filepath.FromSlash(string(p)))
}

// RestoreAnchor re-attaches this path to a concrete absolute root.
func (p AnchoredUnixPath) RestoreAnchor(root AbsoluteSystemPath) AbsoluteSystemPath {
	return root.UntypedJoin(p.ToSystemPath().ToString())
}
