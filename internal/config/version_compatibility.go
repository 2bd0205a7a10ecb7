package config

import (
	"fmt"

	"github.com/Masterminds/semver"
)

// CheckVersionCompatibility validates the running turbine binary against the
// root package.json's "engines.turbine" constraint, if one is declared. A
// missing constraint is not an error.
func CheckVersionCompatibility(turbineVersion string, rootEngines map[string]string) error {
	constraint := rootEngines["turbine"]
	if constraint == "" {
		return nil
	}
	v, err := semver.NewVersion(turbineVersion)
	if err != nil {
		// Dev builds (version == "dev") and similar non-semver strings skip
		// the check rather than failing a run over tooling metadata.
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return &ConfigError{Msg: "package.json: the 'engines.turbine' constraint is not valid"}
	}
	if !c.Check(v) {
		return &ConfigError{Msg: fmt.Sprintf("package.json: turbine %s does not satisfy the 'engines.turbine' constraint %q", turbineVersion, constraint)}
	}
	return nil
}
