package util

import "fmt"

// EnvMode selects how strictly the hasher and executor constrain which
// environment variables a task may see and may contribute to its hash
// (spec §4.F "env mode").
type EnvMode string

const (
	// StrictEnvMode hashes only the vars the task declares (directly or via
	// a matching `*` wildcard). hasher.SelectEnvVars also computes a strict
	// exposure set (declared vars, the PATH/SHELL/SYSTEMROOT allowlist and
	// passThroughEnv), but the executor starts every task with the full
	// parent environment whatever the mode.
	StrictEnvMode EnvMode = "strict"
	// LooseEnvMode passes through the entire parent environment, but only
	// hashes the vars the task declares.
	LooseEnvMode EnvMode = "loose"
	// InferEnvMode resolves per task (hasher.ResolveEnvMode) to strict when
	// the task or the root config declares a passThroughEnv list, and to
	// loose otherwise. No warning is printed for an inferred mode.
	InferEnvMode EnvMode = "infer"
)

// ParseEnvMode validates and converts a string flag/config value.
func ParseEnvMode(value string) (EnvMode, error) {
	switch EnvMode(value) {
	case StrictEnvMode, LooseEnvMode, InferEnvMode:
		return EnvMode(value), nil
	default:
		return "", fmt.Errorf("invalid env mode %q", value)
	}
}
