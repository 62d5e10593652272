package avatarstore

import (
	"context"
	"log/slog"
	"slices"
	"strconv"

	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/logging"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/fitspace/morphsync/internal/morph"
)

// Load replaces the current avatar with rec. Unsaved sections are dropped together with the staged drafts of rec and
// of the avatar it replaces.
//
// Loading the same record twice yields the same state apart from LastUpdated when the record carries no timestamp.
func (s *Store) Load(ctx context.Context, rec backend.Record) {
	ctx = logging.WithAvatar(ctx, rec.ID)
	avatar := s.fromRecord(ctx, rec)

	keys := []string{s.DraftKey(rec.ID)}
	s.mu.Lock()
	if replaced := s.avatar; replaced != nil && replaced.ID != rec.ID {
		keys = append(keys, s.DraftKey(replaced.ID))
	}
	s.stopTimerLocked()
	s.avatar = avatar
	s.dirty = make(map[models.DirtySection]uint64)
	s.lastErr = nil
	s.epoch++
	s.generation++
	gen := s.generation
	event := s.eventLocked(EventStateChanged)
	s.mu.Unlock()

	s.discardDrafts(ctx, gen, keys...)
	s.publish(event)
}

// FetchAndLoad loads the backend's current version of avatarID.
func (s *Store) FetchAndLoad(ctx context.Context, avatarID string) error {
	var (
		err error
		rec backend.Record
	)
	if rec, err = s.cfg.Backend.Get(ctx, s.User(), avatarID); err != nil {
		return errors.Wrap(err, "fetch avatar", slog.String("avatarID", avatarID))
	}
	s.Load(ctx, rec)
	return nil
}

// RestoreDraft loads a locally persisted draft. Nothing of it reached the backend, so the sections recorded in its
// metadata stay dirty, or all of them when the metadata names none.
func (s *Store) RestoreDraft(ctx context.Context, key string) error {
	var (
		err   error
		draft drafts.Draft
	)
	if draft, err = s.cfg.Drafts.Get(ctx, key); err != nil {
		return errors.Wrap(err, "restore draft", slog.String("key", key))
	}
	if draft.Command.Data == nil {
		return errors.New("draft carries no avatar", slog.String("key", key))
	}
	avatar := s.fromDraft(draft.Command.Data)

	sections := draft.Metadata.DirtySections
	if len(sections) == 0 {
		sections = models.Sections
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.avatar = avatar
	s.dirty = make(map[models.DirtySection]uint64)
	s.lastErr = nil
	s.epoch++
	s.markDirtyLocked(sections...)
	event := s.eventLocked(EventStateChanged)
	s.mu.Unlock()

	s.logger.LogAttrs(logging.WithAvatar(ctx, avatar.ID), slog.LevelInfo, "restored draft",
		slog.String("key", key), slog.Any("dirtySections", event.DirtySections))
	s.publish(event)
	return nil
}

func (s *Store) fromRecord(ctx context.Context, rec backend.Record) *models.AvatarConfiguration {
	avatar := &models.AvatarConfiguration{
		ID:            rec.ID,
		Name:          rec.Name,
		Gender:        rec.Gender,
		AgeRange:      rec.AgeRange,
		CreationMode:  rec.CreationMode,
		Source:        rec.Source,
		QuickMode:     rec.QuickMode,
		Basic:         rec.BasicMeasurements,
		Body:          rec.BodyMeasurements.Clone(),
		QuickSettings: rec.QuickModeSettings,
		Clothing:      rec.ClothingSelections,
		LastUpdated:   rec.UpdatedAt,
	}
	if avatar.Name == "" {
		avatar.Name = models.DefaultAvatarName
	}
	if avatar.LastUpdated.IsZero() {
		avatar.LastUpdated = s.cfg.Now()
	}
	if avatar.Body == nil {
		avatar.Body = measurement.Values{}
	}
	// Body measurements are authoritative; the quick mode copy only fills gaps and then mirrors them.
	if avatar.QuickSettings != nil {
		for key, v := range avatar.QuickSettings.Measurements {
			if _, ok := avatar.Body[key]; !ok {
				avatar.Body[key] = v
			}
		}
	}
	// Detach from rec before anything is mutated.
	avatar = avatar.Clone()
	if avatar.QuickSettings != nil {
		avatar.QuickSettings.Measurements = avatar.Body.Clone()
	}

	avatar.MorphValues = s.cfg.Catalog.NewAttributes()
	explicit := s.applyTargets(ctx, avatar.MorphValues, rec.MorphTargets)
	morph.ApplyBaseBody(avatar.MorphValues, avatar.Gender.BasePreset())
	avatar.Baseline = s.baseline(avatar)

	keys := make([]measurement.Key, 0, len(avatar.Body))
	for key := range avatar.Body {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		for id, v := range s.cfg.Bridge.MeasurementToSliders(avatar.MorphValues, key, avatar.Body[key], avatar.Baseline) {
			if explicit[id] {
				continue
			}
			avatar.MorphValues[avatar.MorphIndex(id)].Value = v
		}
	}
	return avatar
}

// applyTargets writes the stored sliders into attrs and returns the morphs they set.
func (s *Store) applyTargets(ctx context.Context, attrs []morph.Attribute, targets []backend.MorphTarget) map[int]bool {
	index := make(map[int]int, len(attrs))
	for i, attr := range attrs {
		index[attr.ID] = i
	}
	explicit := make(map[int]bool, len(targets))
	for _, target := range targets {
		i, ok := s.resolveTarget(target, index)
		if !ok {
			logAttrs := []slog.Attr{slog.String("key", target.Key())}
			hint, found := s.cfg.Catalog.SuggestBackendKey(target.Key())
			if found {
				logAttrs = append(logAttrs, slog.String("didYouMean", hint))
			}
			s.logger.LogAttrs(ctx, slog.LevelWarn, "unmapped morph target", logAttrs...)
			s.cfg.Metrics.IncUnmappedMorphKey(found)
			continue
		}
		switch {
		case target.Value != nil:
			attrs[i].Value = morph.Clamp(*target.Value)
		case target.UnrealValue != nil:
			attrs[i].Value = morph.Clamp(float64(morph.ToBackend(*target.UnrealValue, attrs[i].Range())))
		default:
			continue
		}
		explicit[attrs[i].ID] = true
	}
	return explicit
}

// resolveTarget finds the attribute a target addresses by backend key, falling back to a numeric morph id.
func (s *Store) resolveTarget(target backend.MorphTarget, index map[int]int) (int, bool) {
	if id, ok := s.cfg.Catalog.MorphIDFor(target.Key()); ok {
		i, found := index[id]
		return i, found
	}
	id, err := strconv.Atoi(target.ID)
	if err != nil {
		return 0, false
	}
	i, ok := index[id]
	return i, ok
}

// fromDraft rebuilds an avatar from a draft snapshot. The morph vector is re-expanded over the catalog so drafts
// written by an older catalog still cover every morph.
func (s *Store) fromDraft(data *models.AvatarConfiguration) *models.AvatarConfiguration {
	avatar := data.Clone()
	stored := make(map[int]float64, len(avatar.MorphValues))
	for _, attr := range avatar.MorphValues {
		stored[attr.ID] = attr.Value
	}
	avatar.MorphValues = s.cfg.Catalog.NewAttributes()
	for i := range avatar.MorphValues {
		if v, ok := stored[avatar.MorphValues[i].ID]; ok {
			avatar.MorphValues[i].Value = morph.Clamp(v)
		}
	}
	if avatar.Name == "" {
		avatar.Name = models.DefaultAvatarName
	}
	if avatar.Body == nil {
		avatar.Body = measurement.Values{}
	}
	avatar.Baseline = s.baseline(avatar)
	return avatar
}

// baseline is derived from the basic measurements alone and never from user edited girths.
func (s *Store) baseline(avatar *models.AvatarConfiguration) measurement.Values {
	in := measurement.Input{
		Known:  measurement.Values{},
		Height: avatar.Basic.Height,
		Weight: avatar.Basic.Weight,
		Sex:    avatar.Gender.Sex(),
	}
	if avatar.QuickSettings != nil {
		in.Athletic = avatar.QuickSettings.AthleticLevel
	}
	return measurement.EstimateMissing(in, measurement.StrategyHeightRatio)
}
