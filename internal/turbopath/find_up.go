package turbopath

import (
	"os"
	"path/filepath"
)

// FindupFrom walks upward from dir looking for a file named name, returning
// its full path the first time it is found, or "" if the filesystem root is
// reached without a match. Used to locate the repo root (package.json /
// turbo.json) from an arbitrary working directory.
func FindupFrom(name string, dir AbsoluteSystemPath) (AbsoluteSystemPath, error) {
	current := dir
	for {
		entries, err := os.ReadDir(current.ToString())
		if err != nil {
			return "", err
		}
		for _, entry := range entries {
			if entry.Name() == name {
				return current.UntypedJoin(name), nil
			}
		}
		parent := current.Dir()
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

// CheckedToAbsoluteSystemPath stamps raw as an AbsoluteSystemPath, first
// resolving it against the working directory when it is relative.
func CheckedToAbsoluteSystemPath(raw string) (AbsoluteSystemPath, error) {
	if !filepath.IsAbs(raw) {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return "", err
		}
		return AbsoluteSystemPath(abs), nil
	}
	return AbsoluteSystemPath(raw), nil
}
