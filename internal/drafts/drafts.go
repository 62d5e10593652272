// Package drafts persists unsent avatar edits locally so guest sessions are never silently lost.
package drafts

import (
	"context"
	"strings"
	"time"

	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/models"
)

// GuestKey is the key of drafts that belong to no saved avatar yet.
const GuestKey = "guest"

// CommandCreateAvatar replays the draft as a new avatar once the user signs in.
const CommandCreateAvatar = "createAvatar"

var (
	ErrNotFound = errors.NewSentinel("draft not found")
	// ErrUnavailable means the storage refused the write. Callers degrade to "draft not saved".
	ErrUnavailable = errors.NewSentinel("draft storage unavailable")
)

// Command is the replayable part of a draft.
type Command struct {
	Type string                      `json:"type"`
	Data *models.AvatarConfiguration `json:"data"`
}

// Metadata describes a draft without the avatar itself, e.g. for listings.
type Metadata struct {
	DraftID       string                `json:"draftId"`
	AvatarID      string                `json:"avatarId,omitempty"`
	Name          string                `json:"name"`
	UserID        string                `json:"userId,omitempty"`
	DirtySections []models.DirtySection `json:"dirtySections"`
	SavedAt       time.Time             `json:"savedAt"`
}

// Draft is one persisted snapshot.
type Draft struct {
	Key      string
	Command  Command
	Metadata Metadata
}

// Store is the key/value contract drafts are persisted through.
type Store interface {
	Put(ctx context.Context, draft Draft) error
	Get(ctx context.Context, key string) (Draft, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Draft, error)
}

// KeyFor resolves the draft key of an avatar: its id once it has one, GuestKey before.
func KeyFor(avatarID string) string {
	if id := strings.TrimSpace(avatarID); id != "" {
		return id
	}
	return GuestKey
}
