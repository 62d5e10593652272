// Package avatarstore owns the avatar being customised: it tracks unsaved sections, keeps measurements and sliders
// in sync, batches saves and reconciles with the avatar backend.
package avatarstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/bridge"
	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/metrics"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/fitspace/morphsync/internal/morph"
)

// DefaultAutosaveDelay is the quiescence window after the last edit before an autosave starts.
const DefaultAutosaveDelay = 600 * time.Millisecond

var (
	ErrNoAvatar           = errors.NewSentinel("no avatar loaded")
	ErrInvalidSection     = errors.NewSentinel("invalid dirty section")
	ErrInvalidMeasurement = errors.NewSentinel("invalid measurement")
	ErrClosed             = errors.NewSentinel("avatar store closed")
)

// State of the store.
type State string

const (
	StateEmpty  State = "empty"
	StateLoaded State = "loaded"
	StateDirty  State = "dirty"
	StateSaving State = "saving"
)

// Backend is the part of the avatar backend the store needs.
type Backend interface {
	Get(ctx context.Context, user models.User, avatarID string) (backend.Record, error)
	Create(ctx context.Context, user models.User, payload backend.Payload) (*backend.Record, error)
	Update(ctx context.Context, user models.User, avatarID string, payload backend.Payload) (*backend.Record, error)
}

// Config wires a Store. Catalog, Bridge, Backend and Drafts are required.
type Config struct {
	Catalog *morph.Catalog
	Bridge  *bridge.Bridge
	Backend Backend
	Drafts  drafts.Store
	// DraftScope prefixes draft keys so stores sharing one drafts.Store do not overwrite each other's guest draft.
	DraftScope string
	// AutosaveDelay defaults to DefaultAutosaveDelay. A negative delay disables autosave.
	AutosaveDelay time.Duration
	Publisher     Publisher
	Metrics       *metrics.SaveCollector
	// Now defaults to time.Now.
	Now func() time.Time
}

// Store is safe for concurrent use. Edits are applied atomically in call order and at most one save is in flight.
type Store struct {
	cfg    Config
	logger *slog.Logger

	// ctx is cancelled by Close so autosaves never outlive the store.
	ctx    context.Context //nolint:containedctx // owns the lifetime of background autosaves
	cancel context.CancelFunc

	mu     sync.Mutex
	user   models.User
	avatar *models.AvatarConfiguration
	// dirty maps each unsaved section to the generation of its latest edit.
	dirty      map[models.DirtySection]uint64
	generation uint64
	// epoch changes whenever the avatar is replaced so a finishing save can tell it is stale.
	epoch   uint64
	saving  bool
	lastErr error
	timer   *time.Timer
	closed  bool

	// stageMu orders draft writes so an older snapshot never overwrites a newer one.
	stageMu        sync.Mutex
	stagedGenByKey map[string]uint64
}

// New creates an empty store for one avatar editing session.
func New(cfg Config, logger *slog.Logger) *Store {
	if cfg.AutosaveDelay == 0 {
		cfg.AutosaveDelay = DefaultAutosaveDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		cfg:            cfg,
		logger:         logger.With("source", "AvatarStore"),
		ctx:            ctx,
		cancel:         cancel,
		dirty:          make(map[models.DirtySection]uint64),
		stagedGenByKey: make(map[string]uint64),
	}
}

// SetUser changes the identity saves are made as. The zero User is a guest.
func (s *Store) SetUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// User returns the identity saves are made as.
func (s *Store) User() models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Snapshot returns a copy of the current avatar or nil when none is loaded.
func (s *Store) Snapshot() *models.AvatarConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatar.Clone()
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	switch {
	case s.avatar == nil:
		return StateEmpty
	case s.saving:
		return StateSaving
	case len(s.dirty) > 0:
		return StateDirty
	default:
		return StateLoaded
	}
}

// DirtySections returns the unsaved sections in a stable order.
func (s *Store) DirtySections() []models.DirtySection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtySectionsLocked()
}

func (s *Store) dirtySectionsLocked() []models.DirtySection {
	out := make([]models.DirtySection, 0, len(s.dirty))
	for _, section := range models.Sections {
		if _, ok := s.dirty[section]; ok {
			out = append(out, section)
		}
	}
	return out
}

// LastError returns the error of the latest failed save, nil after a successful one.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// RendererValues returns every slider in the native range of its morph, keyed by morph id.
func (s *Store) RendererValues() map[int]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.avatar == nil {
		return nil
	}
	out := make(map[int]float64, len(s.avatar.MorphValues))
	for _, attr := range s.avatar.MorphValues {
		out[attr.ID] = morph.ToNative(attr.Value, attr.Range())
	}
	return out
}

// Reset drops the avatar together with its unsaved sections and error state.
func (s *Store) Reset() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.avatar = nil
	s.dirty = make(map[models.DirtySection]uint64)
	s.lastErr = nil
	s.epoch++
	event := s.eventLocked(EventStateChanged)
	s.mu.Unlock()
	s.publish(event)
}

// Close cancels any pending autosave. No write starts after Close returns; a save already in flight is cancelled.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()
	s.cancel()
}

// markDirtyLocked records an edit of sections. Marking is idempotent apart from moving the generation forward.
func (s *Store) markDirtyLocked(sections ...models.DirtySection) {
	s.generation++
	for _, section := range sections {
		s.dirty[section] = s.generation
	}
}

// clearDirtyLocked forgets the sections whose latest edit is not newer than gen.
func (s *Store) clearDirtyLocked(gen uint64) {
	for section, edited := range s.dirty {
		if edited <= gen {
			delete(s.dirty, section)
		}
	}
}

// DraftKey returns the key the drafts of avatarID are staged under; an empty id addresses the guest draft.
func (s *Store) DraftKey(avatarID string) string {
	key := drafts.KeyFor(avatarID)
	if s.cfg.DraftScope == "" {
		return key
	}
	return s.cfg.DraftScope + "/" + key
}
