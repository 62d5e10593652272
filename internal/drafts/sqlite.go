package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/sqlite"
)

// SQLiteStore keeps drafts in the drafts table.
type SQLiteStore struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewSQLiteStore(db *sqlite.Database, logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger.With("source", "DraftStore"),
	}
}

type draftRow struct {
	Key       string `db:"key"`
	Command   string `db:"command"`
	Metadata  string `db:"metadata"`
	UpdatedAt string `db:"updated_at"`
}

func (s *SQLiteStore) Put(ctx context.Context, draft Draft) error {
	var (
		command  []byte
		metadata []byte
		err      error
	)
	if command, err = json.Marshal(draft.Command); err != nil {
		return errors.Wrap(err, "marshal draft command", slog.String("key", draft.Key))
	}
	if metadata, err = json.Marshal(draft.Metadata); err != nil {
		return errors.Wrap(err, "marshal draft metadata", slog.String("key", draft.Key))
	}
	stmt := `INSERT INTO drafts (key, command, metadata, updated_at)
VALUES (:key, :command, :metadata, :updated_at)
ON CONFLICT (key) DO UPDATE SET command    = excluded.command,
                                metadata   = excluded.metadata,
                                updated_at = excluded.updated_at`
	row := draftRow{
		Key:       draft.Key,
		Command:   string(command),
		Metadata:  string(metadata),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err = s.db.ReadWrite.NamedExecContext(ctx, stmt, row); err != nil {
		return errors.Wrap(errors.Join(ErrUnavailable, err), "insert draft", slog.String("key", draft.Key))
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Draft, error) {
	var row draftRow
	err := s.db.ReadOnly.GetContext(ctx, &row,
		`SELECT key, command, metadata, updated_at FROM drafts WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, errors.Wrap(ErrNotFound, "get draft", slog.String("key", key))
	}
	if err != nil {
		return Draft{}, errors.Wrap(err, "select draft", slog.String("key", key))
	}
	return row.draft()
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ReadWrite.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return errors.Wrap(err, "delete draft", slog.String("key", key))
	}
	return nil
}

// List returns the drafts ordered by key. Rows that no longer decode are skipped with a warning.
func (s *SQLiteStore) List(ctx context.Context) ([]Draft, error) {
	var rows []draftRow
	if err := s.db.ReadOnly.SelectContext(ctx, &rows,
		`SELECT key, command, metadata, updated_at FROM drafts ORDER BY key`); err != nil {
		return nil, errors.Wrap(err, "select drafts")
	}
	out := make([]Draft, 0, len(rows))
	for _, row := range rows {
		draft, err := row.draft()
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "skipping corrupt draft", errors.SlogError(err))
			continue
		}
		out = append(out, draft)
	}
	return out, nil
}

func (r draftRow) draft() (Draft, error) {
	draft := Draft{Key: r.Key}
	if err := json.Unmarshal([]byte(r.Command), &draft.Command); err != nil {
		return Draft{}, errors.Wrap(err, "unmarshal draft command", slog.String("key", r.Key))
	}
	if err := json.Unmarshal([]byte(r.Metadata), &draft.Metadata); err != nil {
		return Draft{}, errors.Wrap(err, "unmarshal draft metadata", slog.String("key", r.Key))
	}
	return draft, nil
}
