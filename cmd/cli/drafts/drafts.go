// Package drafts lists and removes the avatar drafts the companion service persisted locally.
package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/logging"
	"github.com/fitspace/morphsync/internal/sqlite"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "drafts",
	Title: "Local drafts",
}

func init() {
	Drafts.PersistentFlags().String("sqlite-url", "./morphsync.sqlite3", "SQLite database of the companion service")
	Drafts.PersistentFlags().Bool("verbose", false, "log database activity to stderr")
	Drafts.AddCommand(list, show, remove)
}

var Drafts = &cobra.Command{
	Use:     "drafts",
	GroupID: "drafts",
	Short:   "Inspect local drafts",
	Long:    "Lists, shows and deletes avatar drafts kept for guests and for saves that did not reach the backend",
}

var list = &cobra.Command{
	Use:   "list",
	Short: "List drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(ctx context.Context, store drafts.Store) error {
			all, err := store.List(ctx)
			if err != nil {
				return errors.Wrap(err, "list drafts")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
			_, _ = fmt.Fprintln(w, "KEY\tNAME\tAVATAR\tUSER\tSECTIONS\tSAVED AT")
			for _, d := range all {
				sections := make([]string, 0, len(d.Metadata.DirtySections))
				for _, s := range d.Metadata.DirtySections {
					sections = append(sections, string(s))
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					d.Key, d.Metadata.Name, dash(d.Metadata.AvatarID), dash(d.Metadata.UserID),
					strings.Join(sections, ","), d.Metadata.SavedAt.Format(time.RFC3339))
			}
			return errors.Wrap(w.Flush(), "flush table")
		})
	},
}

var show = &cobra.Command{
	Use:   "show <key>",
	Short: "Print a draft as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store drafts.Store) error {
			draft, err := store.Get(ctx, args[0])
			if err != nil {
				return errors.Wrap(err, "get draft")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return errors.Wrap(enc.Encode(struct {
				Key      string          `json:"key"`
				Command  drafts.Command  `json:"command"`
				Metadata drafts.Metadata `json:"metadata"`
			}{draft.Key, draft.Command, draft.Metadata}), "encode draft")
		})
	},
}

var remove = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store drafts.Store) error {
			if _, err := store.Get(ctx, args[0]); err != nil {
				return errors.Wrap(err, "get draft")
			}
			if err := store.Delete(ctx, args[0]); err != nil {
				return errors.Wrap(err, "delete draft")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, store drafts.Store) error) error {
	var (
		err     error
		db      *sqlite.Database
		ctx     = cmd.Context()
		logSink = io.Discard
	)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	url, _ := cmd.Flags().GetString("sqlite-url")
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logSink = cmd.ErrOrStderr()
	}
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{Level: slog.LevelDebug})))

	if db, err = sqlite.NewDatabase(ctx, url, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", url))
	}
	defer func() {
		_ = db.Close()
	}()
	return fn(ctx, drafts.NewSQLiteStore(db, logger))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
