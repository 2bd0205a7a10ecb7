// Package config loads and resolves turbo.json/turbo.jsonc pipeline
// configuration into concrete TaskDefinitions (spec §4.E parts 1-2).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muhammadmuzzammil1998/jsonc"
	"github.com/pkg/errors"

	"github.com/turbine-build/turbine/internal/workspace"
)

// turboRootToken is replaced with a repo-relative empty anchor inside
// glob paths, per spec §4.E.2.
const turboRootToken = "$TURBO_ROOT$"

// RawTaskDefinition is the on-disk shape of one pipeline entry. Pointer
// fields distinguish "not set" (nil, inherit/default) from "set to the
// zero value", which the merge step in Resolve needs.
type RawTaskDefinition struct {
	Outputs        []string `json:"outputs,omitempty"`
	Cache          *bool    `json:"cache,omitempty"`
	DependsOn      []string `json:"dependsOn,omitempty"`
	Inputs         []string `json:"inputs,omitempty"`
	OutputMode     string   `json:"outputMode,omitempty"`
	Env            []string `json:"env,omitempty"`
	PassThroughEnv []string `json:"passThroughEnv,omitempty"`
	Persistent     *bool    `json:"persistent,omitempty"`
	Interactive    *bool    `json:"interactive,omitempty"`
}

// RootConfig is the root-level turbo.json/turbo.jsonc document (spec §6
// config surface table).
type RootConfig struct {
	Schema               string                       `json:"$schema,omitempty"`
	GlobalDependencies   []string                     `json:"globalDependencies,omitempty"`
	GlobalEnv            []string                     `json:"globalEnv,omitempty"`
	GlobalPassThroughEnv []string                     `json:"globalPassThroughEnv,omitempty"`
	GlobalDotEnv         []string                     `json:"globalDotEnv,omitempty"`
	Tasks                map[string]RawTaskDefinition `json:"tasks,omitempty"`
	RemoteCache          RemoteCacheConfig            `json:"remoteCache,omitempty"`
	UI                   string                       `json:"ui,omitempty"`
	Daemon               *bool                        `json:"daemon,omitempty"`
}

// RemoteCacheConfig is the remoteCache block of turbo.json.
type RemoteCacheConfig struct {
	Enabled   *bool `json:"enabled,omitempty"`
	Signature bool  `json:"signature,omitempty"`
	Preflight bool  `json:"preflight,omitempty"`
	Timeout   int   `json:"timeout,omitempty"`
}

// PackageConfig is a per-package turbo.json/turbo.jsonc document. Unlike
// the root, the document may declare a top-level `extends` list (only the
// root package is accepted there) to inherit root task definitions before
// applying its own overrides.
type PackageConfig struct {
	Extends []string                     `json:"extends,omitempty"`
	Tasks   map[string]RawTaskDefinition `json:"tasks,omitempty"`
}

// loadJSONC reads and unmarshals a turbo.json or turbo.jsonc file, rejecting
// the case where both exist in the same directory (spec §4.E.1).
func loadJSONC(dir string, out interface{}) (bool, error) {
	jsonPath := filepath.Join(dir, "turbo.json")
	jsoncPath := filepath.Join(dir, "turbo.jsonc")

	_, jsonErr := os.Stat(jsonPath)
	_, jsoncErr := os.Stat(jsoncPath)
	hasJSON := jsonErr == nil
	hasJSONC := jsoncErr == nil

	if hasJSON && hasJSONC {
		return false, &ConfigError{Msg: fmt.Sprintf("both turbo.json and turbo.jsonc present in %s", dir)}
	}
	if !hasJSON && !hasJSONC {
		return false, nil
	}

	path := jsonPath
	if hasJSONC {
		path = jsoncPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "reading %s", path)
	}
	if err := jsonc.Unmarshal(raw, out); err != nil {
		return false, &ConfigError{Msg: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	return true, nil
}

// LoadRootConfig loads the root turbo.json/turbo.jsonc from repoRoot.
func LoadRootConfig(repoRoot string) (*RootConfig, error) {
	cfg := &RootConfig{}
	found, err := loadJSONC(repoRoot, cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &ConfigError{Msg: fmt.Sprintf("no turbo.json or turbo.jsonc found at %s", repoRoot)}
	}
	for name, task := range cfg.Tasks {
		if err := validateRawEnvNames(task); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("task %q: %v", name, err)}
		}
	}
	return cfg, nil
}

// LoadPackageConfig loads a per-package turbo.json/turbo.jsonc, if any.
func LoadPackageConfig(pkgDir string) (*PackageConfig, error) {
	cfg := &PackageConfig{}
	found, err := loadJSONC(pkgDir, cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	for _, chain := range cfg.Extends {
		if chain != workspace.RootPackageName {
			return nil, &ConfigError{Msg: fmt.Sprintf("package turbo.json may only extend %q, got %q", workspace.RootPackageName, chain)}
		}
	}
	for name, task := range cfg.Tasks {
		if err := validateRawEnvNames(task); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("task %q: %v", name, err)}
		}
	}
	return cfg, nil
}

func validateRawEnvNames(task RawTaskDefinition) error {
	all := append(append([]string{}, task.Env...), task.PassThroughEnv...)
	for _, name := range all {
		if strings.HasPrefix(name, "$") {
			return fmt.Errorf("env var name %q must not start with '$'", name)
		}
	}
	return nil
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
