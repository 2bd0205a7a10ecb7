package lockfile

import "github.com/turbine-build/turbine/internal/fingerprint"

func hashPairs(pairs map[string]string) string {
	return string(fingerprint.HashObject(pairs))
}
