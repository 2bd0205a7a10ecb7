package turbopath

import (
	"os"
	"path/filepath"
	"strings"
)

const dirPermissions = os.ModeDir | 0775

// AbsoluteSystemPath is an absolute, volume-included path using system separators.
type AbsoluteSystemPath string

func (AbsoluteSystemPath) absolutePathStamp() {}
func (AbsoluteSystemPath) systemPathStamp()   {}

// ToString returns the plain string form, for interfacing with stdlib APIs.
func (p AbsoluteSystemPath) ToString() string { return string(p) }

// ToUnixPath renders this path using forward slashes, still absolute.
func (p AbsoluteSystemPath) ToUnixPath() AbsoluteUnixPath {
	return AbsoluteUnixPath(filepath.ToSlash(string(p)))
}

// Join appends relative segments using system separators.
func (p AbsoluteSystemPath) Join(additional ...RelativeSystemPath) AbsoluteSystemPath {
	cast := RelativeSystemPathArray(additional)
	return AbsoluteSystemPath(filepath.Join(append([]string{string(p)}, cast.ToStringArray()...)...))
}

// UntypedJoin appends bare strings; used at the edges where callers have not
// yet been converted to typed relative paths.
func (p AbsoluteSystemPath) UntypedJoin(additional ...string) AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Join(append([]string{string(p)}, additional...)...))
}

// RelativeTo computes the relative, anchored path from basePath to p.
func (p AbsoluteSystemPath) RelativeTo(basePath AbsoluteSystemPath) (AnchoredSystemPath, error) {
	rel, err := filepath.Rel(basePath.ToString(), p.ToString())
	return AnchoredSystemPath(rel), err
}

// Dir returns the parent directory.
func (p AbsoluteSystemPath) Dir() AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Dir(string(p)))
}

// Base returns the final path element.
func (p AbsoluteSystemPath) Base() string { return filepath.Base(string(p)) }

// Ext returns the file extension, including the leading dot.
func (p AbsoluteSystemPath) Ext() string { return filepath.Ext(string(p)) }

// MkdirAll implements os.MkdirAll for this path.
func (p AbsoluteSystemPath) MkdirAll() error {
	return os.MkdirAll(string(p), dirPermissions|0644)
}

// EnsureDir makes sure the directory containing this file exists.
func (p AbsoluteSystemPath) EnsureDir() error {
	dir := filepath.Dir(string(p))
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		if info, statErr := os.Lstat(dir); statErr == nil && !info.IsDir() {
			if rmErr := os.Remove(dir); rmErr == nil {
				return os.MkdirAll(dir, dirPermissions)
			}
		}
		return err
	}
	return nil
}

// Open implements os.Open for this path.
func (p AbsoluteSystemPath) Open() (*os.File, error) { return os.Open(string(p)) }

// OpenFile implements os.OpenFile for this path.
func (p AbsoluteSystemPath) OpenFile(flags int, mode os.FileMode) (*os.File, error) {
	return os.OpenFile(string(p), flags, mode)
}

// Create implements os.Create for this path.
func (p AbsoluteSystemPath) Create() (*os.File, error) { return os.Create(string(p)) }

// Lstat implements os.Lstat for this path.
func (p AbsoluteSystemPath) Lstat() (os.FileInfo, error) { return os.Lstat(string(p)) }

// Stat implements os.Stat for this path.
func (p AbsoluteSystemPath) Stat() (os.FileInfo, error) { return os.Stat(string(p)) }

// FileExists reports whether the path exists and is a regular file.
func (p AbsoluteSystemPath) FileExists() bool {
	info, err := os.Lstat(string(p))
	return err == nil && !info.IsDir()
}

// DirExists reports whether the path exists and is a directory.
func (p AbsoluteSystemPath) DirExists() bool {
	info, err := os.Lstat(string(p))
	return err == nil && info.IsDir()
}

// ReadFile reads the whole file into memory.
func (p AbsoluteSystemPath) ReadFile() ([]byte, error) { return os.ReadFile(string(p)) }

// WriteFile writes contents, creating the file if needed.
func (p AbsoluteSystemPath) WriteFile(contents []byte, mode os.FileMode) error {
	return os.WriteFile(string(p), contents, mode)
}

// Remove implements os.Remove for this path.
func (p AbsoluteSystemPath) Remove() error { return os.Remove(string(p)) }

// RemoveAll implements os.RemoveAll for this path.
func (p AbsoluteSystemPath) RemoveAll() error { return os.RemoveAll(string(p)) }

// Rename implements os.Rename(p, dest) for this path.
func (p AbsoluteSystemPath) Rename(dest AbsoluteSystemPath) error {
	return os.Rename(string(p), string(dest))
}

// Symlink implements os.Symlink(target, p).
func (p AbsoluteSystemPath) Symlink(target string) error { return os.Symlink(target, string(p)) }

// Readlink implements os.Readlink(p).
func (p AbsoluteSystemPath) Readlink() (string, error) { return os.Readlink(string(p)) }

// ContainsPath reports whether p is an ancestor directory of other.
func (p AbsoluteSystemPath) ContainsPath(other AbsoluteSystemPath) (bool, error) {
	rel, err := filepath.Rel(string(p), string(other))
	if err != nil {
		return false, err
	}
	sentinel := ".." + string(filepath.Separator)
	return rel != ".." && !strings.HasPrefix(rel, sentinel), nil
}

// AbsoluteUnixPath is an absolute path always rendered with forward slashes.
// It is not portable to System; convert back through ToSystemPath.
type AbsoluteUnixPath string

func (AbsoluteUnixPath) absolutePathStamp() {}
func (AbsoluteUnixPath) unixPathStamp()     {}

// ToString returns the plain string form.
func (p AbsoluteUnixPath) ToString() string { return string(p) }

// ToSystemPath converts back to the host's separator convention.
func (p AbsoluteUnixPath) ToSystemPath() AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.FromSlash(string(p)))
}
