package drafts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	clidrafts "github.com/fitspace/morphsync/cmd/cli/drafts"
	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/fitspace/morphsync/internal/sqlite"
	"github.com/fitspace/morphsync/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed writes one guest draft into a fresh database file and returns its path.
func seed(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	url := filepath.Join(t.TempDir(), "drafts.sqlite3")
	logger := testhelpers.NewLogger(io.Discard)
	db, err := sqlite.NewDatabase(ctx, url, logger)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	err = drafts.NewSQLiteStore(db, logger).Put(ctx, drafts.Draft{
		Key: "w-1/guest",
		Command: drafts.Command{
			Type: drafts.CommandCreateAvatar,
			Data: &models.AvatarConfiguration{Name: "Weekend"},
		},
		Metadata: drafts.Metadata{
			DraftID:       "d-1",
			Name:          "Weekend",
			DirtySections: []models.DirtySection{models.SectionMorphs, models.SectionClothing},
			SavedAt:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	return url
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	clidrafts.Drafts.SetOut(&out)
	clidrafts.Drafts.SetErr(io.Discard)
	clidrafts.Drafts.SetArgs(args)
	err := clidrafts.Drafts.Execute()
	return out.String(), err
}

func TestDrafts(t *testing.T) {
	url := seed(t)

	out, err := execute(t, "list", "--sqlite-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "w-1/guest")
	assert.Contains(t, out, "morphs,clothing")
	assert.Contains(t, out, "2024-05-01T10:00:00Z")

	out, err = execute(t, "show", "w-1/guest", "--sqlite-url", url)
	require.NoError(t, err)
	var shown struct {
		Key     string         `json:"key"`
		Command drafts.Command `json:"command"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "w-1/guest", shown.Key)
	assert.Equal(t, "Weekend", shown.Command.Data.Name)

	out, err = execute(t, "delete", "w-1/guest", "--sqlite-url", url)
	require.NoError(t, err)
	assert.Equal(t, "deleted w-1/guest\n", out)

	_, err = execute(t, "delete", "w-1/guest", "--sqlite-url", url)
	require.ErrorIs(t, err, drafts.ErrNotFound)
}
