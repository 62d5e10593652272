package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/fitspace/morphsync/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewSaveCollector(reg)

	c.ObserveSave("saved", 120*time.Millisecond)
	c.ObserveSave("saved", 80*time.Millisecond)
	c.ObserveSave("draft", 0)
	c.IncUnmappedMorphKey(false)
	c.IncUnmappedMorphKey(false)
	c.IncUnmappedMorphKey(true)

	expected := `
# HELP morphsync_saves_total Save attempts by outcome
# TYPE morphsync_saves_total counter
morphsync_saves_total{outcome="draft"} 1
morphsync_saves_total{outcome="saved"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "morphsync_saves_total"))

	expectedUnmapped := `
# HELP morphsync_unmapped_morph_keys_total Backend morph keys received that no catalog morph is mapped to
# TYPE morphsync_unmapped_morph_keys_total counter
morphsync_unmapped_morph_keys_total{known_suggestion="false"} 2
morphsync_unmapped_morph_keys_total{known_suggestion="true"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expectedUnmapped),
		"morphsync_unmapped_morph_keys_total"))

	histogramCount, err := testutil.GatherAndCount(reg, "morphsync_save_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, histogramCount)
}

func TestSaveCollector_nil(t *testing.T) {
	var c *metrics.SaveCollector
	assert.NotPanics(t, func() {
		c.ObserveSave("saved", time.Second)
		c.IncUnmappedMorphKey(true)
	})
}

func TestWorkspaceGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := metrics.NewWorkspaceGauge(reg)

	g.Set(3)
	g.Evicted(2)
	g.Set(1)

	expected := `
# HELP morphsync_active_workspaces Avatar stores currently held in memory
# TYPE morphsync_active_workspaces gauge
morphsync_active_workspaces 1
# HELP morphsync_evicted_workspaces_total Avatar stores closed after their session went idle
# TYPE morphsync_evicted_workspaces_total counter
morphsync_evicted_workspaces_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"morphsync_active_workspaces", "morphsync_evicted_workspaces_total"))
}
