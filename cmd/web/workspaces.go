package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fitspace/morphsync/internal/avatarstore"
	"github.com/fitspace/morphsync/internal/broker"
	"github.com/fitspace/morphsync/internal/metrics"
)

type workspace struct {
	store    *avatarstore.Store
	lastSeen time.Time
}

// workspaces holds one avatar store per browser session. Each store lives until its session has been idle for
// idleTimeout. Unsaved edits survive eviction as drafts.
type workspaces struct {
	mu          sync.Mutex
	byID        map[string]*workspace
	newStore    func(workspaceID string) *avatarstore.Store
	events      *broker.ChannelBroker[string, avatarstore.Event]
	gauge       *metrics.WorkspaceGauge
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func newWorkspaces(
	newStore func(workspaceID string) *avatarstore.Store,
	events *broker.ChannelBroker[string, avatarstore.Event],
	gauge *metrics.WorkspaceGauge,
	idleTimeout time.Duration,
	logger *slog.Logger,
) *workspaces {
	return &workspaces{
		byID:        make(map[string]*workspace),
		newStore:    newStore,
		events:      events,
		gauge:       gauge,
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      logger.With("source", "Workspaces"),
	}
}

// get returns the store of workspaceID, creating it on first use.
func (w *workspaces) get(workspaceID string) *avatarstore.Store {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws, ok := w.byID[workspaceID]
	if !ok {
		ws = &workspace{store: w.newStore(workspaceID)}
		w.byID[workspaceID] = ws
		w.gauge.Set(len(w.byID))
	}
	ws.lastSeen = w.now()
	return ws.store
}

// evictIdle closes the stores not used since the idle timeout and reports how many there were.
func (w *workspaces) evictIdle() int {
	w.mu.Lock()
	cutoff := w.now().Add(-w.idleTimeout)
	var evicted []string
	for id, ws := range w.byID {
		if ws.lastSeen.Before(cutoff) {
			ws.store.Close()
			delete(w.byID, id)
			evicted = append(evicted, id)
		}
	}
	w.gauge.Set(len(w.byID))
	w.mu.Unlock()

	for _, id := range evicted {
		w.events.Close(id)
	}
	w.gauge.Evicted(len(evicted))
	return len(evicted)
}

// startJanitor evicts idle stores every interval until ctx is cancelled.
func (w *workspaces) startJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.evictIdle(); n > 0 {
				w.logger.LogAttrs(ctx, slog.LevelInfo, "evicted idle workspaces", slog.Int("count", n))
			}
		}
	}
}

// closeAll closes every store and ends their event streams. It is safe to call more than once.
func (w *workspaces) closeAll() {
	w.mu.Lock()
	ids := make([]string, 0, len(w.byID))
	for id, ws := range w.byID {
		ws.store.Close()
		ids = append(ids, id)
	}
	clear(w.byID)
	w.gauge.Set(0)
	w.mu.Unlock()

	for _, id := range ids {
		w.events.Close(id)
	}
}
