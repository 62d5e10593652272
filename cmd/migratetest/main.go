// Command migratetest synchronises the schema of a copy of the production database and checks the drafts and
// sessions survived, before a deploy runs the same migration for real.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/sqlite"
	"github.com/fitspace/morphsync/internal/testhelpers"
)

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("MORPHSYNC_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "MORPHSYNC_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	// Every stored draft must still decode after the migration.
	var all []drafts.Draft
	if all, err = drafts.NewSQLiteStore(db, logger).List(ctx); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error listing drafts", errors.SlogError(err))
		os.Exit(1)
	}
	row := db.ReadOnly.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`)
	var sessions int
	if err = row.Scan(&sessions); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error fetching session count", errors.SlogError(err))
		os.Exit(1)
	}
	if len(all) == 0 && sessions == 0 {
		logger.LogAttrs(ctx, slog.LevelError, "no drafts or sessions found, something is likely wrong")
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "row counts", slog.Int("drafts", len(all)), slog.Int("sessions", sessions))

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
