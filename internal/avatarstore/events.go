package avatarstore

import "github.com/fitspace/morphsync/internal/models"

// EventType identifies what happened in the store.
type EventType string

const (
	EventStateChanged EventType = "stateChanged"
	EventDraftStaged  EventType = "draftStaged"
	EventSaved        EventType = "saved"
	EventSaveFailed   EventType = "saveFailed"
)

// Event is a snapshot of the store's observable state at the moment something changed.
type Event struct {
	Type          EventType             `json:"type"`
	State         State                 `json:"state"`
	AvatarID      string                `json:"avatarId,omitempty"`
	DirtySections []models.DirtySection `json:"dirtySections"`
	Outcome       Outcome               `json:"outcome,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Publisher receives store events. Publish is called without any store lock held and must not block for long.
type Publisher interface {
	Publish(event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(event Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(event Event) {
	f(event)
}

func (s *Store) eventLocked(typ EventType) Event {
	event := Event{
		Type:          typ,
		State:         s.stateLocked(),
		DirtySections: s.dirtySectionsLocked(),
	}
	if s.avatar != nil {
		event.AvatarID = s.avatar.ID
	}
	return event
}

func (s *Store) publish(event Event) {
	if s.cfg.Publisher == nil {
		return
	}
	s.cfg.Publisher.Publish(event)
}
