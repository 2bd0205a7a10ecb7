// Package env implements environment-variable selection for task hashing
// and child-process construction (spec §4.F "hasher", env modes).
package env

import (
	"crypto/sha256"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Map is a set of environment variable names to their values.
type Map map[string]string

// Pairs is a deterministically ordered list of "k=v" strings.
type Pairs []string

// FromOSEnviron captures the current process environment.
func FromOSEnviron() Map {
	out := make(Map)
	for _, kv := range os.Environ() {
		if i := strings.Index(kv, "="); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// Union overwrites entries in m with those from other.
func (m Map) Union(other Map) {
	for k, v := range other {
		m[k] = v
	}
}

// Difference removes from m every key present in other.
func (m Map) Difference(other Map) {
	for k := range other {
		delete(m, k)
	}
}

// Names returns a sorted list of the map's keys.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (m Map) toPairs(transform func(k, v string) string) Pairs {
	if m == nil {
		return nil
	}
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, transform(k, v))
	}
	sort.Strings(pairs)
	return pairs
}

// ToHashable renders "name=value" pairs in deterministic order, for use as
// a direct hash input (spec §4.F.5 "env_var_values").
func (m Map) ToHashable() Pairs {
	return m.toPairs(func(k, v string) string { return fmt.Sprintf("%s=%s", k, v) })
}

// ToSecretHashable is like ToHashable but hashes the value, for cases where
// the value itself (a token, say) shouldn't be persisted in a run summary.
func (m Map) ToSecretHashable() Pairs {
	return m.toPairs(func(k, v string) string {
		if v == "" {
			return fmt.Sprintf("%s=", k)
		}
		sum := sha256.Sum256([]byte(v))
		return fmt.Sprintf("%s=%x", k, sum)
	})
}

// WildcardMaps splits a wildcard match into what it included and what it
// explicitly excluded, so exclusions can be re-applied after inclusions
// from another source are unioned in.
type WildcardMaps struct {
	Inclusions Map
	Exclusions Map
}

// Resolve collapses inclusions minus exclusions into one Map.
func (w WildcardMaps) Resolve() Map {
	out := Map{}
	out.Union(w.Inclusions)
	out.Difference(w.Exclusions)
	return out
}

const (
	wildcard        = '*'
	wildcardEscape  = '\\'
	regexSegment    = ".*"
)

// wildcardToRegexPattern converts one `env`-style wildcard entry (a literal
// string that may contain `*` and `\*`) into an anchored regex fragment.
func wildcardToRegexPattern(pattern string) string {
	var segments []string
	var previousIndex int
	var previousRune rune

	for i, r := range pattern {
		if r == wildcard {
			if previousRune == wildcardEscape {
				segments = append(segments, regexp.QuoteMeta(pattern[previousIndex:i-1]+"*"))
			} else {
				segments = append(segments, regexp.QuoteMeta(pattern[previousIndex:i]))
				if len(segments) == 0 || segments[len(segments)-1] != regexSegment {
					segments = append(segments, regexSegment)
				}
			}
			previousIndex = i + 1
		}
		previousRune = r
	}
	segments = append(segments, regexp.QuoteMeta(pattern[previousIndex:]))
	return strings.Join(segments, "")
}

// fromWildcards splits patterns into inclusion/exclusion (`!`-prefixed)
// groups and matches them against m.
func (m Map) fromWildcards(patterns []string) (WildcardMaps, error) {
	out := WildcardMaps{Inclusions: Map{}, Exclusions: Map{}}

	var includes, excludes []string
	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, "\\!"):
			includes = append(includes, wildcardToRegexPattern(p[1:]))
		case strings.HasPrefix(p, "!"):
			excludes = append(excludes, wildcardToRegexPattern(p[1:]))
		default:
			includes = append(includes, wildcardToRegexPattern(p))
		}
	}

	includeRe, err := regexp.Compile("^(" + strings.Join(includes, "|") + ")$")
	if err != nil {
		return out, err
	}
	excludeRe, err := regexp.Compile("^(" + strings.Join(excludes, "|") + ")$")
	if err != nil {
		return out, err
	}

	for name, value := range m {
		if len(includes) > 0 && includeRe.MatchString(name) {
			out.Inclusions[name] = value
		}
		if len(excludes) > 0 && excludeRe.MatchString(name) {
			out.Exclusions[name] = value
		}
	}
	return out, nil
}

// FromWildcards resolves patterns against m directly into one Map.
func (m Map) FromWildcards(patterns []string) (Map, error) {
	if patterns == nil {
		return nil, nil
	}
	resolved, err := m.fromWildcards(patterns)
	if err != nil {
		return nil, err
	}
	return resolved.Resolve(), nil
}

// FromWildcardsUnresolved is like FromWildcards but keeps inclusions and
// exclusions separate, so a caller merging several sources can apply
// exclusions last (spec: negations apply after defaults/inclusions).
func (m Map) FromWildcardsUnresolved(patterns []string) (WildcardMaps, error) {
	if patterns == nil {
		return WildcardMaps{}, nil
	}
	return m.fromWildcards(patterns)
}
