// Adapted from https://github.com/thought-machine/please
// Copyright Thought Machine, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0
package cache

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DataDog/zstd"

	"github.com/turbine-build/turbine/internal/turbopath"
)

// canonicalMTime is stamped on every archive entry so two builds of
// identical content produce byte-identical archives regardless of
// wall-clock time (spec §4.G "File modes are clamped... to keep hashes
// portable across platforms").
var canonicalMTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	canonicalFileMode = 0o644
	canonicalDirMode  = 0o755
)

// writeArchive tars and zstd-compresses files (repo-relative, anchored at
// repoRoot) into w (spec §4.G "Archive format"). The task log file is
// archived only when the caller includes it in files.
func writeArchive(w io.Writer, repoRoot turbopath.AbsoluteSystemPath, files []turbopath.AnchoredSystemPath) error {
	zw := zstd.NewWriter(w)
	defer func() { _ = zw.Close() }()
	tw := tar.NewWriter(zw)
	defer func() { _ = tw.Close() }()

	for _, file := range files {
		if err := writeEntry(tw, repoRoot, file); err != nil {
			return fmt.Errorf("archiving %s: %w", file, err)
		}
	}
	return nil
}

func writeEntry(tw *tar.Writer, repoRoot turbopath.AbsoluteSystemPath, file turbopath.AnchoredSystemPath) error {
	abs := file.RestoreAnchor(repoRoot)
	info, err := os.Lstat(abs.ToString())
	if err != nil {
		return err
	}

	var linkTarget string
	if info.Mode()&os.ModeSymlink != 0 {
		linkTarget, err = os.Readlink(abs.ToString())
		if err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, filepath.ToSlash(linkTarget))
	if err != nil {
		return err
	}
	hdr.Name = file.ToUnixPath().ToString()
	hdr.ModTime, hdr.AccessTime, hdr.ChangeTime = canonicalMTime, canonicalMTime, canonicalMTime
	hdr.Uid, hdr.Gid, hdr.Uname, hdr.Gname = 0, 0, "", ""
	if info.IsDir() {
		hdr.Mode = canonicalDirMode
	} else {
		hdr.Mode = canonicalFileMode
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if info.IsDir() || linkTarget != "" {
		return nil
	}
	f, err := os.Open(abs.ToString())
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(tw, f)
	return err
}

// restoreArchive extracts r (a zstd-compressed tar stream) under repoRoot,
// refusing any entry whose canonical path would escape the root or
// overwrite a symlink (spec §4.G "Sandboxed restore").
func restoreArchive(r io.Reader, repoRoot turbopath.AbsoluteSystemPath) ([]turbopath.AnchoredSystemPath, error) {
	zr := zstd.NewReader(r)
	defer func() { _ = zr.Close() }()
	tr := tar.NewReader(zr)

	var restored []turbopath.AnchoredSystemPath
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, err
		}

		anchored := turbopath.AnchoredUnixPath(hdr.Name).ToSystemPath()
		if err := checkSandboxed(anchored); err != nil {
			return restored, err
		}
		abs := anchored.RestoreAnchor(repoRoot)

		if info, err := os.Lstat(abs.ToString()); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return restored, fmt.Errorf("refusing to overwrite symlink at %s", abs)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(abs.ToString(), canonicalDirMode); err != nil {
				return restored, err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(abs.ToString()), canonicalDirMode); err != nil {
				return restored, err
			}
			_ = os.Remove(abs.ToString())
			if err := os.Symlink(hdr.Linkname, abs.ToString()); err != nil {
				return restored, err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(abs.ToString()), canonicalDirMode); err != nil {
				return restored, err
			}
			out, err := os.OpenFile(abs.ToString(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, canonicalFileMode)
			if err != nil {
				return restored, err
			}
			_, copyErr := io.Copy(out, tr)
			closeErr := out.Close()
			if copyErr != nil {
				return restored, copyErr
			}
			if closeErr != nil {
				return restored, closeErr
			}
		}
		restored = append(restored, anchored)
	}
	return restored, nil
}

func checkSandboxed(p turbopath.AnchoredSystemPath) error {
	clean := filepath.Clean(p.ToString())
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("archive entry %q escapes the repository root", p)
	}
	return nil
}
