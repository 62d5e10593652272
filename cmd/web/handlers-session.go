package main

import (
	"log/slog"
	"net/http"

	"github.com/fitspace/morphsync/internal/contexthelpers"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/models"
)

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	CSRFToken     string `json:"csrfToken"`
}

func (app *application) sessionGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := contexthelpers.User(ctx)
	app.writeJSON(w, r, http.StatusOK, sessionResponse{
		Authenticated: !user.Guest(),
		UserID:        user.ID,
		CSRFToken:     contexthelpers.CSRFToken(ctx),
	})
}

// sessionPut signs the browser session in with the tokens the identity provider issued. Saves from now on go to the
// backend as that user.
func (app *application) sessionPut(w http.ResponseWriter, r *http.Request) {
	var (
		err  error
		user models.User
		ctx  = r.Context()
	)
	if err = readJSON(w, r, &user); err != nil {
		app.handleError(w, r, err)
		return
	}
	if !user.Complete() {
		app.clientError(w, r, http.StatusBadRequest, "userId, token, email and sessionId are required")
		return
	}
	// Prevent session fixation when the privilege level changes.
	if err = app.sessionManager.RenewToken(ctx); err != nil {
		app.serverError(w, r, errors.Wrap(err, "renew session token"))
		return
	}
	app.sessionManager.Put(ctx, string(userSessionKey), user)
	app.store(r).SetUser(user)
	app.logger.LogAttrs(ctx, slog.LevelInfo, "signed in", slog.String("userID", user.ID))

	app.writeJSON(w, r, http.StatusOK, sessionResponse{
		Authenticated: true,
		UserID:        user.ID,
		CSRFToken:     contexthelpers.CSRFToken(ctx),
	})
}

// sessionDelete signs out. The avatar being edited stays, further saves become guest drafts.
func (app *application) sessionDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := app.sessionManager.RenewToken(ctx); err != nil {
		app.serverError(w, r, errors.Wrap(err, "renew session token"))
		return
	}
	app.sessionManager.Remove(ctx, string(userSessionKey))
	app.store(r).SetUser(models.User{})
	app.logger.LogAttrs(ctx, slog.LevelInfo, "signed out")

	w.WriteHeader(http.StatusNoContent)
}
