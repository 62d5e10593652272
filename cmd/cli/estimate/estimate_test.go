package estimate_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fitspace/morphsync/cmd/cli/estimate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	estimate.Estimate.SetOut(&out)
	estimate.Estimate.SetErr(&out)
	estimate.Estimate.SetArgs(args)
	err := estimate.Estimate.Execute()
	return out.String(), err
}

func TestEstimate(t *testing.T) {
	out, err := run(t, "--height", "168", "--gender", "female", "--set", "waist=70")
	require.NoError(t, err)

	rows := map[string][]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		rows[fields[0]] = fields[1:]
	}
	assert.Equal(t, []string{"70.0", "known"}, rows["waist"])
	assert.Equal(t, []string{"73.9", "estimated"}, rows["inseam"])
}

func TestEstimate_invalidSet(t *testing.T) {
	tests := []struct {
		name string
		set  string
	}{
		{"no value", "waist"},
		{"unknown key", "tail=3"},
		{"negative", "waist=-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "--height", "168", "--set", tt.set)
			require.Error(t, err)
		})
	}
}
