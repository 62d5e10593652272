package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fitspace/morphsync/internal/contexthelpers"
	"github.com/fitspace/morphsync/internal/errors"
)

// keepAliveInterval keeps proxies from closing a quiet stream.
const keepAliveInterval = 15 * time.Second

// avatarEvents streams the store events of the session as Server Sent Events until the client goes away or the
// workspace is closed.
func (app *application) avatarEvents(w http.ResponseWriter, r *http.Request) {
	var (
		ctx         = r.Context()
		workspaceID = contexthelpers.WorkspaceID(ctx)
		rc          = http.NewResponseController(w)
		err         error
	)
	// The stream lives longer than the server's write timeout.
	if err = rc.SetWriteDeadline(time.Time{}); err != nil {
		app.serverError(w, r, errors.Wrap(err, "clear write deadline"))
		return
	}

	events, unsubscribe := app.events.Subscribe(workspaceID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// The current state first, so a subscriber does not have to wait for the next change.
	store := app.store(r)
	if err = writeEvent(w, rc, "state", app.avatarView(store)); err != nil {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err = fmt.Fprint(w, ": keep-alive\n\n"); err == nil {
				err = rc.Flush()
			}
		case event, ok := <-events:
			if !ok {
				app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed by workspace")
				return
			}
			err = writeEvent(w, rc, string(event.Type), event)
		}
		if err != nil {
			app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream ended", errors.SlogError(err))
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event", slog.String("event", name))
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return errors.Wrap(err, "write event", slog.String("event", name))
	}
	return errors.Wrap(rc.Flush(), "flush event")
}
