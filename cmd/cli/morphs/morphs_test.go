package morphs_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fitspace/morphsync/cmd/cli/morphs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	var out bytes.Buffer
	morphs.Catalog.SetOut(&out)
	morphs.Catalog.SetArgs([]string{"--category", "waist"})
	require.NoError(t, morphs.Catalog.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Greater(t, len(lines), 1)
	assert.Contains(t, lines[0], "BACKEND KEY")
	for _, line := range lines[1:] {
		assert.Contains(t, line, "Waist")
	}
	assert.Contains(t, out.String(), "waistWidth")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Waist Width", "waist"},
		{"Base Feminine Body", "cosmetic"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			var out bytes.Buffer
			morphs.Classify.SetOut(&out)
			morphs.Classify.SetArgs([]string{tt.label})
			require.NoError(t, morphs.Classify.Execute())
			assert.Equal(t, tt.want, strings.Fields(out.String())[len(strings.Fields(out.String()))-1])
		})
	}
}
