// Package globwalk implements the double-star glob matching used for task
// inputs, outputs, and the daemon's watched-output sets. It understands
// `**`, `*`, `?`, character classes, brace expansion, and leading `!`
// negation, and is careful never to follow a symlink out of the declared
// base directory.
package globwalk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultToken expands to "all tracked files in the package directory"; the
// expansion itself is the caller's responsibility (it requires the SCM
// capability to know what "tracked" means), globwalk only recognizes the
// literal token so callers can special-case it before compiling patterns.
const DefaultToken = "$TURBO_DEFAULT$"

// Split separates an ordered pattern list into inclusions and (`!`-prefixed)
// exclusions, preserving relative order within each group.
func Split(patterns []string) (inclusions []string, exclusions []string) {
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			exclusions = append(exclusions, p[1:])
		} else {
			inclusions = append(inclusions, p)
		}
	}
	return inclusions, exclusions
}

// compiledPattern matches a path segment by segment against one pattern,
// honoring `*`, `?`, character classes, and `{a,b}` alternation (already
// expanded by the time we build one of these).
type compiledPattern struct {
	segments []string // raw pattern segments, "**" kept literal
	glue     []glob.Glob
}

func compileSegment(seg string) (glob.Glob, error) {
	if seg == "**" {
		return nil, nil
	}
	return glob.Compile(seg)
}

func compile(pattern string) (*compiledPattern, error) {
	segs := strings.Split(filepath.ToSlash(pattern), "/")
	cp := &compiledPattern{segments: segs, glue: make([]glob.Glob, len(segs))}
	for i, s := range segs {
		g, err := compileSegment(s)
		if err != nil {
			return nil, err
		}
		cp.glue[i] = g
	}
	return cp, nil
}

// matches reports whether pathSegs (already split on '/') matches this
// compiled pattern, treating "**" as zero-or-more path segments.
func (cp *compiledPattern) matches(pathSegs []string) bool {
	return matchSegs(cp.segments, cp.glue, pathSegs)
}

func matchSegs(patSegs []string, patGlobs []glob.Glob, pathSegs []string) bool {
	for len(patSegs) > 0 {
		if patSegs[0] == "**" {
			if len(patSegs) == 1 {
				return true
			}
			// Try consuming 0..N path segments for the "**".
			for i := 0; i <= len(pathSegs); i++ {
				if matchSegs(patSegs[1:], patGlobs[1:], pathSegs[i:]) {
					return true
				}
			}
			return false
		}
		if len(pathSegs) == 0 {
			return false
		}
		if !patGlobs[0].Match(pathSegs[0]) {
			return false
		}
		patSegs, patGlobs, pathSegs = patSegs[1:], patGlobs[1:], pathSegs[1:]
	}
	return len(pathSegs) == 0
}

// expandBraces expands a single `{a,b,c}` group (not nested) into multiple
// literal patterns. Only one group is supported per pattern, which matches
// every usage in turbo.json inputs/outputs declarations.
func expandBraces(pattern string) []string {
	start := strings.IndexByte(pattern, '{')
	if start < 0 {
		return []string{pattern}
	}
	end := strings.IndexByte(pattern[start:], '}')
	if end < 0 {
		return []string{pattern}
	}
	end += start
	prefix, suffix := pattern[:start], pattern[end+1:]
	options := strings.Split(pattern[start+1:end], ",")
	out := make([]string, 0, len(options))
	for _, o := range options {
		out = append(out, prefix+o+suffix)
	}
	return out
}

// Matches reports whether path (repo- or package-relative, forward-slash)
// matches any of the glob patterns, honoring `!`-prefixed negation: a path
// that matches an inclusion but also matches a later negation is excluded.
// Used directly by the daemon to test individual filesystem events.
func Matches(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	pathSegs := strings.Split(path, "/")

	included := false
	for _, raw := range patterns {
		negate := strings.HasPrefix(raw, "!")
		pat := raw
		if negate {
			pat = raw[1:]
		}
		for _, expanded := range expandBraces(pat) {
			cp, err := compile(expanded)
			if err != nil {
				continue
			}
			if cp.matches(pathSegs) {
				included = !negate
			}
		}
	}
	return included
}

// Enumerate walks base (an absolute directory) and returns the sorted,
// de-duplicated set of repo/package-relative (forward-slash) file paths that
// match patterns, honoring leading-`!` negation. The walk never follows a
// symlink to a location outside base.
func Enumerate(base string, patterns []string) ([]string, error) {
	inclusions, exclusions := Split(patterns)
	if len(inclusions) == 0 {
		inclusions = []string{"**"}
	}

	incCompiled := make([]*compiledPattern, 0, len(inclusions))
	for _, raw := range inclusions {
		for _, expanded := range expandBraces(raw) {
			cp, err := compile(expanded)
			if err != nil {
				return nil, err
			}
			incCompiled = append(incCompiled, cp)
		}
	}
	excCompiled := make([]*compiledPattern, 0, len(exclusions))
	for _, raw := range exclusions {
		for _, expanded := range expandBraces(raw) {
			cp, err := compile(expanded)
			if err != nil {
				return nil, err
			}
			excCompiled = append(excCompiled, cp)
		}
	}

	resolvedBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		resolvedBase = base
	}

	var out []string
	err = filepath.WalkDir(base, func(walked string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if walked == base {
			return nil
		}
		rel, relErr := filepath.Rel(base, walked)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&os.ModeSymlink != 0 {
			target, evalErr := filepath.EvalSymlinks(walked)
			if evalErr != nil {
				return nil
			}
			if !isWithin(resolvedBase, target) {
				return nil
			}
		}

		if d.IsDir() {
			return nil
		}

		pathSegs := strings.Split(rel, "/")
		matched := false
		for _, cp := range incCompiled {
			if cp.matches(pathSegs) {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}
		for _, cp := range excCompiled {
			if cp.matches(pathSegs) {
				return nil
			}
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func isWithin(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
