package avatarstore

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/logging"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/fitspace/morphsync/internal/morph"
)

// UpdateMorphValue moves a slider on the backend 0-100 scale, clamping out of range input. Setting the current
// value is a no-op and reports false.
//
// When the avatar's measurements follow its sliders, the measurement the morph is classified to is re-read from
// its sliders.
func (s *Store) UpdateMorphValue(ctx context.Context, morphID int, value float64) (bool, error) {
	value = morph.Clamp(value)

	s.mu.Lock()
	if s.avatar == nil {
		s.mu.Unlock()
		return false, ErrNoAvatar
	}
	i := s.avatar.MorphIndex(morphID)
	if i < 0 {
		s.mu.Unlock()
		return false, errors.Wrap(morph.ErrUnknownMorph, "update morph", slog.Int("morphID", morphID))
	}
	if s.avatar.MorphValues[i].Value == value {
		s.mu.Unlock()
		return false, nil
	}
	s.avatar.MorphValues[i].Value = value
	sections := []models.DirtySection{models.SectionMorphs}

	if s.avatar.MorphDerived() {
		if key, ok := s.cfg.Bridge.MeasurementFor(morphID); ok {
			derived, known := s.cfg.Bridge.SlidersToMeasurement(s.avatar.MorphValues, key, s.avatar.Body, s.avatar.Baseline)
			if known && s.setMeasurementLocked(key, &derived) {
				sections = append(sections, models.SectionQuickModeMeasurements)
			}
		}
	}
	p, event := s.commitLocked(sections...)
	s.mu.Unlock()

	s.stageAndPublish(logging.WithAvatar(ctx, event.AvatarID), p, event)
	return true, nil
}

// UpdateMorphNative moves a slider given in the renderer's native range of the morph.
func (s *Store) UpdateMorphNative(ctx context.Context, morphID int, native float64) (bool, error) {
	def, ok := s.cfg.Catalog.Lookup(morphID)
	if !ok {
		return false, errors.Wrap(morph.ErrUnknownMorph, "update morph", slog.Int("morphID", morphID))
	}
	return s.UpdateMorphValue(ctx, morphID, float64(morph.ToBackend(native, def.Range())))
}

// UpdateMeasurements applies a patch of measurements in centimetres; a nil value deletes the key. Every changed
// measurement drives the sliders classified to it. section defaults to quickMode.measurements.
//
// The patch is validated as a whole and nothing is applied when any entry is invalid.
func (s *Store) UpdateMeasurements(
	ctx context.Context,
	patch map[measurement.Key]*float64,
	section models.DirtySection,
) (bool, error) {
	if section == "" {
		section = models.SectionQuickModeMeasurements
	}
	if _, ok := models.ParseDirtySection(string(section)); !ok {
		return false, errors.Wrap(ErrInvalidSection, "update measurements", slog.String("section", string(section)))
	}
	for key, v := range patch {
		if _, ok := measurement.Lookup(key); !ok {
			return false, errors.Wrap(ErrInvalidMeasurement, "unknown key", slog.String("key", string(key)))
		}
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0) {
			return false, errors.Wrap(ErrInvalidMeasurement, "value must be a positive number",
				slog.String("key", string(key)), slog.Float64("value", *v))
		}
	}
	keys := slices.Sorted(maps.Keys(patch))

	s.mu.Lock()
	if s.avatar == nil {
		s.mu.Unlock()
		return false, ErrNoAvatar
	}
	var (
		changed      bool
		slidersMoved bool
	)
	for _, key := range keys {
		v := patch[key]
		if !s.setMeasurementLocked(key, v) {
			continue
		}
		changed = true
		if v == nil {
			continue
		}
		for id, slider := range s.cfg.Bridge.MeasurementToSliders(s.avatar.MorphValues, key, *v, s.avatar.Baseline) {
			s.avatar.MorphValues[s.avatar.MorphIndex(id)].Value = slider
			slidersMoved = true
		}
	}
	if !changed {
		s.mu.Unlock()
		return false, nil
	}
	sections := []models.DirtySection{section}
	if slidersMoved {
		sections = append(sections, models.SectionMorphs)
	}
	p, event := s.commitLocked(sections...)
	s.mu.Unlock()

	s.stageAndPublish(logging.WithAvatar(ctx, event.AvatarID), p, event)
	return true, nil
}

// UpdateQuickModeAttributes patches the skin, hair or extras group; a nil value deletes the attribute.
func (s *Store) UpdateQuickModeAttributes(
	ctx context.Context,
	section models.DirtySection,
	patch map[string]*string,
) (bool, error) {
	switch section {
	case models.SectionQuickModeSkin, models.SectionQuickModeHair, models.SectionQuickModeExtras:
	default:
		return false, errors.Wrap(ErrInvalidSection, "update quick mode attributes",
			slog.String("section", string(section)))
	}

	s.mu.Lock()
	if s.avatar == nil {
		s.mu.Unlock()
		return false, ErrNoAvatar
	}
	if s.avatar.QuickSettings == nil {
		s.avatar.QuickSettings = &models.QuickModeSettings{Measurements: s.avatar.Body.Clone()}
	}
	attrs := s.avatar.QuickSettings.Attributes(section)
	changed := false
	for name, v := range patch {
		current, ok := (*attrs)[name]
		switch {
		case v == nil && ok:
			delete(*attrs, name)
		case v != nil && (!ok || current != *v):
			if *attrs == nil {
				*attrs = make(map[string]string)
			}
			(*attrs)[name] = *v
		default:
			continue
		}
		changed = true
	}
	if !changed {
		s.mu.Unlock()
		return false, nil
	}
	s.avatar.QuickSettings.UpdatedAt = s.cfg.Now()
	p, event := s.commitLocked(section)
	s.mu.Unlock()

	s.stageAndPublish(logging.WithAvatar(ctx, event.AvatarID), p, event)
	return true, nil
}

// UpdateClothing selects the item worn for category, or removes it when selection is nil. Re-selecting the same
// item and sub-category is a no-op.
func (s *Store) UpdateClothing(ctx context.Context, category string, selection *models.ClothingSelection) (bool, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return false, errors.New("clothing category is required")
	}

	s.mu.Lock()
	if s.avatar == nil {
		s.mu.Unlock()
		return false, ErrNoAvatar
	}
	current, ok := s.avatar.Clothing[category]
	switch {
	case selection == nil && !ok, selection != nil && ok && current == *selection:
		s.mu.Unlock()
		return false, nil
	case selection == nil:
		delete(s.avatar.Clothing, category)
	default:
		if s.avatar.Clothing == nil {
			s.avatar.Clothing = make(map[string]models.ClothingSelection)
		}
		s.avatar.Clothing[category] = *selection
	}
	p, event := s.commitLocked(models.SectionClothing)
	s.mu.Unlock()

	s.stageAndPublish(logging.WithAvatar(ctx, event.AvatarID), p, event)
	return true, nil
}

// setMeasurementLocked writes one body measurement and its quick mode mirror, reporting whether it changed.
func (s *Store) setMeasurementLocked(key measurement.Key, v *float64) bool {
	current, ok := s.avatar.Body[key]
	switch {
	case v == nil && !ok, v != nil && ok && current == *v:
		return false
	case v == nil:
		delete(s.avatar.Body, key)
	default:
		if s.avatar.Body == nil {
			s.avatar.Body = measurement.Values{}
		}
		s.avatar.Body[key] = *v
	}
	if q := s.avatar.QuickSettings; q != nil || s.avatar.QuickMode {
		if q == nil {
			q = &models.QuickModeSettings{}
			s.avatar.QuickSettings = q
		}
		q.Measurements = s.avatar.Body.Clone()
		q.UpdatedAt = s.cfg.Now()
	}
	return true
}

// commitLocked marks sections dirty, restarts the autosave window and snapshots the draft to stage.
func (s *Store) commitLocked(sections ...models.DirtySection) (pendingDraft, Event) {
	s.markDirtyLocked(sections...)
	s.avatar.LastUpdated = s.cfg.Now()
	s.scheduleAutosaveLocked()
	return s.draftLocked(), s.eventLocked(EventStateChanged)
}
