package avatarstore

import (
	"log/slog"
	"time"

	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/logging"
)

// scheduleAutosaveLocked restarts the quiescence window. Only the snapshot current when the timer fires is sent.
func (s *Store) scheduleAutosaveLocked() {
	if s.closed || s.cfg.AutosaveDelay < 0 {
		return
	}
	s.stopTimerLocked()
	var timer *time.Timer
	timer = time.AfterFunc(s.cfg.AutosaveDelay, func() {
		s.mu.Lock()
		if s.timer != timer {
			// Superseded by a newer edit or cancelled while waiting for the lock.
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		s.autosave()
	})
	s.timer = timer
}

func (s *Store) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Store) autosave() {
	ctx := logging.WithAttrs(s.ctx, slog.String("trigger", "autosave"))
	result := s.Save(ctx, nil)
	if result.Err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "autosave failed",
			slog.String("outcome", string(result.Outcome)), errors.SlogError(result.Err))
	}
}
