package avatarstore

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/logging"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/fitspace/morphsync/internal/morph"
)

// Outcome tells apart the ways a save can end so callers can react to each differently.
type Outcome string

const (
	OutcomeNoop  Outcome = "noop"
	OutcomeSaved Outcome = "saved"
	// OutcomeDraft means the changes were kept locally because nobody is signed in.
	OutcomeDraft Outcome = "draft"
	// OutcomeDraftNotSaved means local storage refused the draft; the changes stay dirty.
	OutcomeDraftNotSaved Outcome = "draftNotSaved"
	// OutcomeInFlight is returned to a caller racing a save that is already running. It carries no error.
	OutcomeInFlight   Outcome = "inFlight"
	OutcomeFailed     Outcome = "failed"
	OutcomeNeedsLogin Outcome = "needsLogin"
)

// SaveResult reports how a save ended. Success is only set when the changes were persisted somewhere.
type SaveResult struct {
	Success bool
	Outcome Outcome
	Err     error
}

// saveJob is the state a save captured when it started.
type saveJob struct {
	snapshot *models.AvatarConfiguration
	user     models.User
	gen      uint64
	epoch    uint64
	sections []models.DirtySection
}

// Save persists the unsaved sections. Signed-in users save to the backend, guests to a local draft.
//
// fallbacks fill measurements that are still missing and never override a known one. At most one save runs at a
// time; a concurrent call returns OutcomeInFlight without error and without touching the backend. Dirty sections
// are only cleared once the backend's answer has been reconciled, and edits made while the save is running stay
// dirty for the next one.
func (s *Store) Save(ctx context.Context, fallbacks measurement.Values) (result SaveResult) {
	job, result, ok := s.beginSave()
	if !ok {
		return result
	}
	ctx = logging.WithAvatar(ctx, job.snapshot.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	started := time.Now()
	var rec *backend.Record
	defer func() {
		s.settle(ctx, job, rec, result)
		s.cfg.Metrics.ObserveSave(string(result.Outcome), time.Since(started))
		if result.Err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "save failed",
				slog.String("outcome", string(result.Outcome)), errors.SlogError(result.Err))
		} else {
			s.logger.LogAttrs(ctx, slog.LevelInfo, "saved avatar",
				slog.String("outcome", string(result.Outcome)), slog.Any("sections", job.sections))
		}
	}()

	switch {
	case job.user.Guest():
		result = s.saveDraft(ctx, job)
	case !job.user.Complete():
		result = SaveResult{Outcome: OutcomeNeedsLogin, Err: errors.Wrap(backend.ErrSessionIncomplete, "save avatar")}
	default:
		rec, result = s.saveRemote(ctx, job, fallbacks)
	}
	return result
}

func (s *Store) beginSave() (saveJob, SaveResult, bool) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return saveJob{}, SaveResult{Outcome: OutcomeFailed, Err: ErrClosed}, false
	case s.avatar == nil || len(s.dirty) == 0:
		s.mu.Unlock()
		return saveJob{}, SaveResult{Success: true, Outcome: OutcomeNoop}, false
	case s.saving:
		s.mu.Unlock()
		return saveJob{}, SaveResult{Outcome: OutcomeInFlight}, false
	}
	// The save sends the latest snapshot, so a pending autosave would only repeat it.
	s.stopTimerLocked()
	s.saving = true
	job := saveJob{
		snapshot: s.avatar.Clone(),
		user:     s.user,
		gen:      s.generation,
		epoch:    s.epoch,
		sections: s.dirtySectionsLocked(),
	}
	event := s.eventLocked(EventStateChanged)
	s.mu.Unlock()

	s.publish(event)
	return job, SaveResult{}, true
}

func (s *Store) saveDraft(ctx context.Context, job saveJob) SaveResult {
	s.mu.Lock()
	p := s.draftAtLocked(job)
	s.mu.Unlock()
	if err := s.writeDraft(ctx, p, true); err != nil {
		return SaveResult{Outcome: OutcomeDraftNotSaved, Err: err}
	}
	return SaveResult{Success: true, Outcome: OutcomeDraft}
}

// draftAtLocked is draftLocked for the snapshot a save captured rather than the live avatar.
func (s *Store) draftAtLocked(job saveJob) pendingDraft {
	p := s.draftLocked()
	p.gen = job.gen
	p.draft.Key = s.DraftKey(job.snapshot.ID)
	p.draft.Command.Data = job.snapshot.Clone()
	p.draft.Metadata.AvatarID = job.snapshot.ID
	p.draft.Metadata.Name = job.snapshot.Name
	p.draft.Metadata.UserID = job.user.ID
	p.draft.Metadata.DirtySections = job.sections
	return p
}

func (s *Store) saveRemote(ctx context.Context, job saveJob, fallbacks measurement.Values) (*backend.Record, SaveResult) {
	var (
		err     error
		rec     *backend.Record
		payload = s.payload(job, fallbacks)
	)
	if job.snapshot.ID == "" {
		rec, err = s.cfg.Backend.Create(ctx, job.user, payload)
	} else {
		rec, err = s.cfg.Backend.Update(ctx, job.user, job.snapshot.ID, payload)
	}
	if err == nil && rec == nil {
		rec, err = s.refetch(ctx, job)
	}
	if err != nil {
		return nil, failure(errors.Wrap(err, "save avatar"))
	}
	return rec, SaveResult{Success: true, Outcome: OutcomeSaved}
}

// refetch reads the avatar back when the backend acknowledged a write without echoing the record.
func (s *Store) refetch(ctx context.Context, job saveJob) (*backend.Record, error) {
	if job.snapshot.ID == "" {
		return nil, errors.New("backend did not return the created avatar")
	}
	rec, err := s.cfg.Backend.Get(ctx, job.user, job.snapshot.ID)
	if err != nil {
		return nil, errors.Wrap(err, "reload saved avatar")
	}
	return &rec, nil
}

func failure(err error) SaveResult {
	if errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, backend.ErrSessionIncomplete) {
		return SaveResult{Outcome: OutcomeNeedsLogin, Err: err}
	}
	return SaveResult{Outcome: OutcomeFailed, Err: err}
}

// payload renders the captured snapshot for the backend. Quick mode measurements mirror the body measurements.
func (s *Store) payload(job saveJob, fallbacks measurement.Values) backend.Payload {
	avatar := job.snapshot
	body := avatar.Body.Clone()
	if body == nil {
		body = measurement.Values{}
	}
	for key, v := range fallbacks {
		if _, ok := body[key]; !ok {
			body[key] = v
		}
	}
	targets := make(map[string]int)
	for _, attr := range avatar.MorphValues {
		if attr.BackendKey == "" {
			continue
		}
		targets[attr.BackendKey] = int(math.Round(morph.Clamp(attr.Value)))
	}
	quick := backend.WireQuickModeSettings(avatar.QuickSettings)
	if quick != nil {
		quick.Measurements = body.Clone()
	}
	return backend.Payload{
		Name:               avatar.Name,
		Gender:             avatar.Gender,
		AgeRange:           avatar.AgeRange,
		CreationMode:       avatar.CreationMode,
		Source:             avatar.Source,
		QuickMode:          avatar.QuickMode,
		CreatedBySession:   job.user.SessionID,
		BasicMeasurements:  avatar.Basic,
		BodyMeasurements:   body,
		MorphTargets:       targets,
		QuickModeSettings:  quick,
		ClothingSelections: avatar.Clothing,
	}.Sanitized()
}

// settle releases the in-flight guard and, on success, folds the backend's answer into the live avatar.
func (s *Store) settle(ctx context.Context, job saveJob, rec *backend.Record, result SaveResult) {
	s.mu.Lock()
	s.saving = false
	stale := job.epoch != s.epoch
	editedMeanwhile := s.generation != job.gen
	if result.Success && !stale {
		if rec != nil {
			s.reconcileLocked(ctx, rec, editedMeanwhile)
		}
		s.clearDirtyLocked(job.gen)
		s.lastErr = nil
	} else if !stale {
		s.lastErr = result.Err
	}
	if editedMeanwhile && !stale && len(s.dirty) > 0 {
		s.scheduleAutosaveLocked()
	}
	clean := len(s.dirty) == 0
	avatarID := ""
	if s.avatar != nil {
		avatarID = s.avatar.ID
	}
	eventType := EventSaved
	if !result.Success {
		eventType = EventSaveFailed
	}
	event := s.eventLocked(eventType)
	s.mu.Unlock()

	event.Outcome = result.Outcome
	if result.Err != nil {
		event.Error = result.Err.Error()
	}
	if result.Outcome == OutcomeSaved && !stale && clean {
		s.discardDrafts(ctx, job.gen, s.DraftKey(avatarID), s.DraftKey(""))
	}
	s.publish(event)
}

// reconcileLocked adopts the backend's record. When nothing was edited during the save the record's fields and
// sliders replace the local ones; otherwise only the identity is taken over so the newer edits survive. Fields the
// record leaves empty keep their local value.
func (s *Store) reconcileLocked(ctx context.Context, rec *backend.Record, editedMeanwhile bool) {
	avatar := s.avatar
	if rec.ID != "" {
		avatar.ID = rec.ID
	}
	if !rec.UpdatedAt.IsZero() {
		avatar.LastUpdated = rec.UpdatedAt
	}
	if editedMeanwhile {
		return
	}
	avatar.Name = cmp.Or(rec.Name, avatar.Name)
	avatar.Gender = cmp.Or(rec.Gender, avatar.Gender)
	avatar.AgeRange = cmp.Or(rec.AgeRange, avatar.AgeRange)
	avatar.CreationMode = cmp.Or(rec.CreationMode, avatar.CreationMode)
	avatar.Source = cmp.Or(rec.Source, avatar.Source)
	avatar.QuickMode = avatar.QuickMode || rec.QuickMode

	basic := rec.BasicMeasurements
	if basic.Height != nil {
		avatar.Basic.Height = basic.Height
	}
	if basic.Weight != nil {
		avatar.Basic.Weight = basic.Weight
	}
	avatar.Basic.CreationMode = cmp.Or(basic.CreationMode, avatar.Basic.CreationMode)

	if len(rec.BodyMeasurements) > 0 {
		avatar.Body = rec.BodyMeasurements.Clone()
	}
	if q := rec.QuickModeSettings; q != nil {
		if local := avatar.QuickSettings; local != nil {
			q.Skin = coalesce(q.Skin, local.Skin)
			q.Hair = coalesce(q.Hair, local.Hair)
			q.Extras = coalesce(q.Extras, local.Extras)
			if q.UpdatedAt.IsZero() {
				q.UpdatedAt = local.UpdatedAt
			}
		}
		avatar.QuickSettings = q
	}
	if avatar.QuickSettings != nil {
		avatar.QuickSettings.Measurements = avatar.Body.Clone()
	}
	if rec.ClothingSelections != nil {
		avatar.Clothing = rec.ClothingSelections
	}
	s.applyTargets(ctx, avatar.MorphValues, rec.MorphTargets)
	morph.ApplyBaseBody(avatar.MorphValues, avatar.Gender.BasePreset())
	avatar.Baseline = s.baseline(avatar)
}

// coalesce prefers primary unless it is empty.
func coalesce(primary, fallback map[string]string) map[string]string {
	if len(primary) > 0 {
		return primary
	}
	return fallback
}
