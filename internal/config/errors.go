package config

// ConfigError reports a malformed or contradictory configuration (spec
// §7 "ConfigError"): duplicate turbo.json/turbo.jsonc, bad extends chain,
// `$`-prefixed env names, and similar. Callers surface these with exit
// code 2.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }
