package cache

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/turbine-build/turbine/internal/turbopath"
)

// localLayer stores cache entries under a directory, one `<hash>.tar.zst`
// plus a `<hash>-meta.json` sidecar per entry (spec §4.H "Persisted
// state").
type localLayer struct {
	dir turbopath.AbsoluteSystemPath
}

func newLocalLayer(dir turbopath.AbsoluteSystemPath) *localLayer {
	return &localLayer{dir: dir}
}

type entryMeta struct {
	TaskID   string `json:"taskId"`
	Duration int    `json:"duration"`
}

func (l *localLayer) archivePath(hash string) string {
	return filepath.Join(l.dir.ToString(), hash+".tar.zst")
}

func (l *localLayer) metaPath(hash string) string {
	return filepath.Join(l.dir.ToString(), hash+"-meta.json")
}

// exists reports whether hash has a local entry, without reading it.
func (l *localLayer) exists(hash string) bool {
	_, err := os.Stat(l.archivePath(hash))
	return err == nil
}

// put writes files into the local layer atomically: written to a temp file
// in the same directory, then renamed into place, so a concurrent reader
// never observes a partial archive.
func (l *localLayer) put(repoRoot turbopath.AbsoluteSystemPath, hash string, duration int, taskID string, files []turbopath.AnchoredSystemPath) error {
	if err := os.MkdirAll(l.dir.ToString(), canonicalDirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(l.dir.ToString(), hash+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := writeArchive(tmp, repoRoot, files); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, l.archivePath(hash)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	meta, err := json.Marshal(entryMeta{TaskID: taskID, Duration: duration})
	if err != nil {
		return err
	}
	return os.WriteFile(l.metaPath(hash), meta, 0o644)
}

// fetch restores hash from the local layer into repoRoot.
func (l *localLayer) fetch(repoRoot turbopath.AbsoluteSystemPath, hash string) ([]turbopath.AnchoredSystemPath, bool, error) {
	f, err := os.Open(l.archivePath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	files, err := restoreArchive(f, repoRoot)
	if err != nil {
		return nil, false, err
	}
	return files, true, nil
}

// adopt writes remote-fetched bytes into the local layer, then restores
// them, implementing spec §4.G "on miss and when a remote is configured,
// streams the archive from the remote into the local layer, then
// restores."
func (l *localLayer) adopt(repoRoot turbopath.AbsoluteSystemPath, hash string, duration int, body []byte) ([]turbopath.AnchoredSystemPath, error) {
	if err := os.MkdirAll(l.dir.ToString(), canonicalDirMode); err != nil {
		return nil, err
	}
	if err := os.WriteFile(l.archivePath(hash), body, 0o644); err != nil {
		return nil, err
	}
	meta, err := json.Marshal(entryMeta{Duration: duration})
	if err == nil {
		_ = os.WriteFile(l.metaPath(hash), meta, 0o644)
	}
	return restoreArchive(bytes.NewReader(body), repoRoot)
}

// readBytes returns the raw archive bytes for hash, for when a caller needs
// to forward them (signature generation, remote upload) without a second
// tar pass.
func (l *localLayer) readBytes(hash string) ([]byte, error) {
	return os.ReadFile(l.archivePath(hash))
}

func (l *localLayer) clean() error {
	entries, err := os.ReadDir(l.dir.ToString())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(l.dir.ToString(), e.Name())); err != nil {
			return err
		}
	}
	return nil
}
