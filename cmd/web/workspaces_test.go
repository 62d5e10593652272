package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fitspace/morphsync/internal/avatarstore"
	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/bridge"
	"github.com/fitspace/morphsync/internal/broker"
	"github.com/fitspace/morphsync/internal/classify"
	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/metrics"
	"github.com/fitspace/morphsync/internal/morph"
	"github.com/fitspace/morphsync/internal/testhelpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaces_evictIdle(t *testing.T) {
	logger := testhelpers.NewLogger(io.Discard)
	catalog := morph.Default()
	events := broker.NewChannelBroker[string, avatarstore.Event]()
	go events.Start()
	t.Cleanup(events.Stop)

	newStore := func(workspaceID string) *avatarstore.Store {
		return avatarstore.New(avatarstore.Config{
			Catalog:       catalog,
			Bridge:        bridge.New(catalog, classify.Default(), nil),
			Backend:       backend.NewClient("http://localhost:0", "", nil, logger),
			Drafts:        drafts.NewMemoryStore(),
			DraftScope:    workspaceID,
			AutosaveDelay: -1,
		}, logger)
	}
	registry := prometheus.NewRegistry()
	ws := newWorkspaces(newStore, events, metrics.NewWorkspaceGauge(registry), time.Minute, logger)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ws.now = func() time.Time { return now }

	idle := ws.get("idle")
	idle.Load(context.Background(), backend.Record{})
	stream, unsubscribe := events.Subscribe("idle")
	defer unsubscribe()

	now = now.Add(50 * time.Second)
	active := ws.get("active")
	require.Same(t, active, ws.get("active"), "one store per workspace")

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, ws.evictIdle())
	assert.NotSame(t, idle, ws.get("idle"), "an evicted workspace starts over")
	assert.Same(t, active, ws.get("active"))

	select {
	case _, ok := <-stream:
		assert.False(t, ok, "eviction ends the event streams of the workspace")
	case <-time.After(time.Second):
		require.FailNow(t, "event stream not closed")
	}
	result := idle.Save(context.Background(), nil)
	require.ErrorIs(t, result.Err, avatarstore.ErrClosed, "the evicted store stays closed")

	expected := `
# HELP morphsync_active_workspaces Avatar stores currently held in memory
# TYPE morphsync_active_workspaces gauge
morphsync_active_workspaces 2
# HELP morphsync_evicted_workspaces_total Avatar stores closed after their session went idle
# TYPE morphsync_evicted_workspaces_total counter
morphsync_evicted_workspaces_total 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"morphsync_active_workspaces", "morphsync_evicted_workspaces_total"))
}
