package cmd

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConcurrency(t *testing.T) {
	cases := []struct {
		Input    string
		Expected int
	}{
		{"12", 12},
		{"200%", 20},
		{"100%", 10},
		{"50%", 5},
		{"25%", 2},
		{"1%", 1},
	}

	runtimeNumCPU = func() int { return 10 }
	defer func() { runtimeNumCPU = defaultRuntimeNumCPU }()

	for i, tc := range cases {
		t.Run(fmt.Sprintf("%d) %q parses to %d", i, tc.Input, tc.Expected), func(t *testing.T) {
			result, err := parseConcurrency(tc.Input)
			assert.NoError(t, err)
			assert.EqualValues(t, tc.Expected, result)
		})
	}

	t.Run("rejects non-numeric input", func(t *testing.T) {
		_, err := parseConcurrency("asdf")
		assert.Error(t, err)
	})

	t.Run("rejects zero or negative input", func(t *testing.T) {
		_, err := parseConcurrency("-1")
		assert.Error(t, err)
	})

	t.Run("rejects a negative percentage", func(t *testing.T) {
		_, err := parseConcurrency("-1%")
		assert.Error(t, err)
	})
}
