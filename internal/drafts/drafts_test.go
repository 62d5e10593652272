package drafts_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/fitspace/morphsync/internal/morph"
	"github.com/fitspace/morphsync/internal/sqlite"
	"github.com/fitspace/morphsync/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) drafts.Store {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := testhelpers.NewLogger(io.Discard)
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return drafts.NewSQLiteStore(db, logger)
}

func sampleDraft(key string) drafts.Draft {
	attrs := morph.Default().NewAttributes()
	attrs[5].Value = 72
	return drafts.Draft{
		Key: key,
		Command: drafts.Command{
			Type: drafts.CommandCreateAvatar,
			Data: &models.AvatarConfiguration{
				Name:        "Draft",
				Gender:      models.GenderFemale,
				Body:        measurement.Values{measurement.Waist: 81.5},
				Baseline:    measurement.Values{},
				MorphValues: attrs,
			},
		},
		Metadata: drafts.Metadata{
			DraftID:       "d-1",
			Name:          "Draft",
			DirtySections: []models.DirtySection{models.SectionMorphs},
			SavedAt:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) drafts.Store{
		"memory": func(*testing.T) drafts.Store { return drafts.NewMemoryStore() },
		"sqlite": newSQLiteStore,
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			_, err := store.Get(ctx, drafts.GuestKey)
			require.ErrorIs(t, err, drafts.ErrNotFound)

			require.NoError(t, store.Put(ctx, sampleDraft(drafts.GuestKey)))
			require.NoError(t, store.Put(ctx, sampleDraft("42")))

			got, err := store.Get(ctx, drafts.GuestKey)
			require.NoError(t, err)
			assert.Equal(t, drafts.CommandCreateAvatar, got.Command.Type)
			require.NotNil(t, got.Command.Data)
			assert.Equal(t, models.GenderFemale, got.Command.Data.Gender)
			assert.InDelta(t, 81.5, got.Command.Data.Body[measurement.Waist], 1e-9)
			assert.InDelta(t, 72.0, got.Command.Data.MorphValues[5].Value, 1e-9)
			assert.Equal(t, []models.DirtySection{models.SectionMorphs}, got.Metadata.DirtySections)
			assert.True(t, got.Metadata.SavedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

			// Overwrite.
			updated := sampleDraft(drafts.GuestKey)
			updated.Metadata.Name = "Renamed"
			require.NoError(t, store.Put(ctx, updated))
			got, err = store.Get(ctx, drafts.GuestKey)
			require.NoError(t, err)
			assert.Equal(t, "Renamed", got.Metadata.Name)

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "42", list[0].Key)
			assert.Equal(t, drafts.GuestKey, list[1].Key)

			require.NoError(t, store.Delete(ctx, "42"))
			require.NoError(t, store.Delete(ctx, "42"), "deleting a missing draft is not an error")
			list, err = store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
		})
	}
}

func TestMemoryStore_isolatesSnapshots(t *testing.T) {
	ctx := context.Background()
	store := drafts.NewMemoryStore()
	draft := sampleDraft(drafts.GuestKey)
	require.NoError(t, store.Put(ctx, draft))

	draft.Command.Data.MorphValues[5].Value = 1
	got, err := store.Get(ctx, drafts.GuestKey)
	require.NoError(t, err)
	assert.InDelta(t, 72.0, got.Command.Data.MorphValues[5].Value, 1e-9)
}

func TestMemoryStore_FailWrites(t *testing.T) {
	store := drafts.NewMemoryStore()
	store.FailWrites(true)
	require.ErrorIs(t, store.Put(context.Background(), sampleDraft(drafts.GuestKey)), drafts.ErrUnavailable)
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, drafts.GuestKey, drafts.KeyFor(""))
	assert.Equal(t, drafts.GuestKey, drafts.KeyFor("  "))
	assert.Equal(t, "17", drafts.KeyFor("17"))
}
