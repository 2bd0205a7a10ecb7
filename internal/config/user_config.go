package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// APIConfig holds remote-cache authentication, independent of any one
// run's turbo.json (spec §1 "remote-cache authentication... bearer token
// with a team slug").
type APIConfig struct {
	Token    string `json:"token,omitempty"`
	TeamID   string `json:"teamId,omitempty"`
	TeamSlug string `json:"teamSlug,omitempty"`
	APIURL   string `json:"apiUrl,omitempty"`
}

func defaultAPIConfig() *APIConfig {
	return &APIConfig{APIURL: "https://vercel.com/api"}
}

func userConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join("turborepo", "config.json"))
}

// ReadUserAPIConfig reads the user-global credential file (outside any
// repository), returning defaults if it does not exist.
func ReadUserAPIConfig() (*APIConfig, error) {
	path, err := userConfigPath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultAPIConfig(), nil
		}
		return nil, err
	}
	cfg := defaultAPIConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteUserAPIConfig persists the user-global credential file.
func WriteUserAPIConfig(cfg *APIConfig) error {
	path, err := userConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// readRepoAPIConfig reads the repo-local override file (.turbo/config.json),
// layered on top of the user-global one (last-write-wins per field).
func readRepoAPIConfig(repoRoot string) (*APIConfig, error) {
	path := filepath.Join(repoRoot, ".turbo", "config.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	cfg := &APIConfig{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveAPIConfig layers environment variables over the repo-local file
// over the user-global file (spec §6 "Environment variables"):
// TURBO_TOKEN/VERCEL_ARTIFACTS_TOKEN, TURBO_TEAM/VERCEL_ARTIFACTS_OWNER,
// TURBO_API.
func ResolveAPIConfig(repoRoot string, getenv func(string) string) (*APIConfig, error) {
	cfg, err := ReadUserAPIConfig()
	if err != nil {
		return nil, err
	}
	if repoCfg, err := readRepoAPIConfig(repoRoot); err != nil {
		return nil, err
	} else if repoCfg != nil {
		mergeAPIConfig(cfg, repoCfg)
	}

	if v := firstNonEmpty(getenv("TURBO_TOKEN"), getenv("VERCEL_ARTIFACTS_TOKEN")); v != "" {
		cfg.Token = v
	}
	if v := firstNonEmpty(getenv("TURBO_TEAM"), getenv("VERCEL_ARTIFACTS_OWNER")); v != "" {
		cfg.TeamSlug = v
	}
	if v := getenv("TURBO_API"); v != "" {
		cfg.APIURL = v
	}
	return cfg, nil
}

func mergeAPIConfig(base, override *APIConfig) {
	if override.Token != "" {
		base.Token = override.Token
	}
	if override.TeamID != "" {
		base.TeamID = override.TeamID
	}
	if override.TeamSlug != "" {
		base.TeamSlug = override.TeamSlug
	}
	if override.APIURL != "" {
		base.APIURL = override.APIURL
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
