package avatarstore

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/errors"
)

// pendingDraft is a snapshot taken under the store lock and written after it is released.
type pendingDraft struct {
	draft drafts.Draft
	gen   uint64
}

func (s *Store) draftLocked() pendingDraft {
	snapshot := s.avatar.Clone()
	return pendingDraft{
		gen: s.generation,
		draft: drafts.Draft{
			Key: s.DraftKey(snapshot.ID),
			Command: drafts.Command{
				Type: drafts.CommandCreateAvatar,
				Data: snapshot,
			},
			Metadata: drafts.Metadata{
				DraftID:       uuid.NewString(),
				AvatarID:      snapshot.ID,
				Name:          snapshot.Name,
				UserID:        s.user.ID,
				DirtySections: s.dirtySectionsLocked(),
				SavedAt:       s.cfg.Now(),
			},
		},
	}
}

// writeDraft persists p unless a newer snapshot already reached the same key. Unless force is set, failures are
// logged and swallowed since a missing draft must never block editing.
func (s *Store) writeDraft(ctx context.Context, p pendingDraft, force bool) error {
	s.stageMu.Lock()
	defer s.stageMu.Unlock()
	if last, ok := s.stagedGenByKey[p.draft.Key]; ok && (last > p.gen || last == p.gen && !force) {
		return nil
	}
	if err := s.cfg.Drafts.Put(ctx, p.draft); err != nil {
		err = errors.Wrap(err, "stage draft", slog.String("key", p.draft.Key))
		if !force {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "draft not saved", errors.SlogError(err))
		}
		return err
	}
	s.stagedGenByKey[p.draft.Key] = p.gen
	return nil
}

// discardDrafts deletes the drafts under keys and fences off older snapshots still waiting to be written.
func (s *Store) discardDrafts(ctx context.Context, gen uint64, keys ...string) {
	s.stageMu.Lock()
	defer s.stageMu.Unlock()
	for _, key := range keys {
		if last, ok := s.stagedGenByKey[key]; ok && last > gen {
			continue
		}
		s.stagedGenByKey[key] = gen
		if err := s.cfg.Drafts.Delete(ctx, key); err != nil && !errors.Is(err, drafts.ErrNotFound) {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to discard draft",
				slog.String("key", key), errors.SlogError(err))
		}
	}
}

// stageAndPublish is the tail of every edit: the draft is written outside the store lock, then observers hear of it.
func (s *Store) stageAndPublish(ctx context.Context, p pendingDraft, event Event) {
	s.publish(event)
	if s.writeDraft(ctx, p, false) != nil {
		return
	}
	s.publish(Event{
		Type:          EventDraftStaged,
		State:         event.State,
		AvatarID:      event.AvatarID,
		DirtySections: p.draft.Metadata.DirtySections,
	})
}
