package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"

	"github.com/turbine-build/turbine/internal/fingerprint"
	"github.com/turbine-build/turbine/internal/globwalk"
	"github.com/turbine-build/turbine/internal/turbopath"
)

// ignoredDirs are never watched, mirroring the default exclusions applied
// to workspace discovery and source hashing.
var ignoredDirs = map[string]bool{".git": true, "node_modules": true, ".turbo": true}

// fileSnapshot is one file's recorded mtime and content hash, taken at the
// matching NotifyOutputsWritten call.
type fileSnapshot struct {
	modTime int64 // unix nanoseconds
	hash    fingerprint.Hash
}

// hashEntry is one hash's indexed output state: per requested glob, the
// snapshot of every file it matched when it was recorded (spec §4.I
// "{hash -> {glob_set, known_file_hashes}}").
type hashEntry struct {
	pkg   string // repo-relative package directory
	globs map[string]map[string]fileSnapshot
}

// watcher owns one recursive fsnotify watch per repo plus the indexed
// {hash -> {glob_set, known_file_hashes}} store GetChangedOutputs answers
// from (spec §4.I).
type watcher struct {
	repoRoot turbopath.AbsoluteSystemPath
	fsw      *fsnotify.Watcher

	mu       sync.RWMutex
	index    map[string]*hashEntry
	dirCount int
}

func newWatcher(repoRoot turbopath.AbsoluteSystemPath) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		repoRoot: repoRoot,
		fsw:      fsw,
		index:    map[string]*hashEntry{},
	}
	if err := w.addRecursive(repoRoot.ToString()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	go w.loop()
	return w, nil
}

// addRecursive walks root and adds an fsnotify watch to every directory,
// skipping ignoredDirs. Mirrors the teacher's filewatcher, which walks with
// godirwalk rather than stdlib filepath.WalkDir.
func (w *watcher) addRecursive(root string) error {
	return godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, info *godirwalk.Dirent) error {
			isDir, err := info.IsDirOrSymlinkToDir()
			if err != nil {
				return godirwalk.SkipThis
			}
			if !isDir {
				return nil
			}
			if ignoredDirs[filepath.Base(path)] {
				return godirwalk.SkipThis
			}
			w.mu.Lock()
			w.dirCount++
			w.mu.Unlock()
			return w.fsw.Add(path)
		},
		ErrorCallback: func(pathname string, err error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
	})
}

func (w *watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.invalidate(ev.Name)
			// A newly created directory needs its own watch, or its
			// contents would be invisible to us.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := filepath.EvalSymlinks(ev.Name); err == nil {
					_ = w.addRecursive(info)
				}
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// invalidate drops any recorded glob snapshot whose matched set includes
// absPath (spec §4.I "on watcher events inside a watched glob's match set,
// the daemon invalidates the relevant entry"). GetChangedOutputs reports a
// glob with no snapshot as changed, so after an invalidation that glob
// reads as changed until the next NotifyOutputsWritten records it again.
// Globs that keep their snapshot are compared against disk at query time,
// so a missed event does not hide a change.
func (w *watcher) invalidate(absPath string) {
	rel, err := filepath.Rel(w.repoRoot.ToString(), absPath)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "..") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, entry := range w.index {
		if entry.pkg != "" && !strings.HasPrefix(rel, entry.pkg+"/") && rel != entry.pkg {
			continue
		}
		pkgRel := strings.TrimPrefix(strings.TrimPrefix(rel, entry.pkg), "/")
		for glob := range entry.globs {
			if globwalk.Matches(pkgRel, []string{glob}) {
				delete(entry.globs, glob)
			}
		}
	}
}

// markWritten snapshots the files matched by each of globs under pkg
// (repo-relative package directory) and records them against hash (spec
// §4.I "NotifyOutputsWritten(hash, globs): enumerates the current
// contents of globs, records their hashes, and starts watching").
func (w *watcher) markWritten(hash, pkg string, globs []string) {
	entry := &hashEntry{pkg: pkg, globs: map[string]map[string]fileSnapshot{}}
	base := w.repoRoot.UntypedJoin(pkg)
	for _, g := range globs {
		files := map[string]fileSnapshot{}
		matched, err := globwalk.Enumerate(base.ToString(), []string{g})
		if err == nil {
			for _, relToPkg := range matched {
				if snap, err := snapshotFile(base.UntypedJoin(relToPkg).ToString()); err == nil {
					files[relToPkg] = snap
				}
			}
		}
		entry.globs[g] = files
	}

	w.mu.Lock()
	w.index[hash] = entry
	w.mu.Unlock()
}

// getChangedOutputs returns the subset of globs whose matched file set has
// changed (added, removed, or mtime/content differs) since the matching
// markWritten(hash, pkg, globs) call. An unknown hash reports every glob
// as changed, so the caller falls back to a full on-disk check (spec
// §4.I).
func (w *watcher) getChangedOutputs(hash, pkg string, globs []string) []string {
	w.mu.RLock()
	entry, ok := w.index[hash]
	w.mu.RUnlock()
	if !ok {
		return globs
	}

	base := w.repoRoot.UntypedJoin(pkg)
	var changed []string
	for _, g := range globs {
		w.mu.RLock()
		recorded, known := entry.globs[g]
		w.mu.RUnlock()
		if !known {
			changed = append(changed, g)
			continue
		}
		if globChanged(base, g, recorded) {
			changed = append(changed, g)
		}
	}
	return changed
}

func globChanged(base turbopath.AbsoluteSystemPath, glob string, recorded map[string]fileSnapshot) bool {
	matched, err := globwalk.Enumerate(base.ToString(), []string{glob})
	if err != nil {
		return true
	}
	if len(matched) != len(recorded) {
		return true
	}
	for _, relToPkg := range matched {
		prev, ok := recorded[relToPkg]
		if !ok {
			return true
		}
		snap, err := snapshotFile(base.UntypedJoin(relToPkg).ToString())
		if err != nil || snap.modTime != prev.modTime || snap.hash != prev.hash {
			return true
		}
	}
	return false
}

func snapshotFile(path string) (fileSnapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileSnapshot{}, err
	}
	h, err := fingerprint.HashFile(path)
	if err != nil {
		return fileSnapshot{}, err
	}
	return fileSnapshot{modTime: info.ModTime().UnixNano(), hash: h}, nil
}

func (w *watcher) watchedDirs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dirCount
}

func (w *watcher) Close() error {
	return w.fsw.Close()
}
