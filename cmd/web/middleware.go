package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fitspace/morphsync/internal/contexthelpers"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/google/uuid"
	"github.com/justinas/nosurf"
)

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The service only speaks JSON, nothing it serves should ever load or run anything.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "origin-when-cross-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-XSS-Protection", "0")

		next.ServeHTTP(w, r)
	})
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			proto  = r.Proto
			method = r.Method
			uri    = r.URL.RequestURI()
		)
		r = contexthelpers.SetRequestID(r, uuid.NewString())

		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "received request",
			slog.String("proto", proto), slog.String("method", method), slog.String("uri", uri))

		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// workspace assigns the browser session its avatar store and puts the signed-in identity in the request context.
// It must run after the session has been loaded.
func (app *application) workspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		workspaceID := app.sessionManager.GetString(ctx, string(workspaceIDSessionKey))
		if workspaceID == "" {
			workspaceID = uuid.NewString()
			app.sessionManager.Put(ctx, string(workspaceIDSessionKey), workspaceID)
		}

		next.ServeHTTP(w, app.enterWorkspace(r, workspaceID))
	})
}

// existingWorkspace is workspace for handlers that cannot save the session. It rejects sessions without a workspace.
func (app *application) existingWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID := app.sessionManager.GetString(r.Context(), string(workspaceIDSessionKey))
		if workspaceID == "" {
			app.clientError(w, r, http.StatusUnauthorized, "no session, call GET /api/session first")
			return
		}

		next.ServeHTTP(w, app.enterWorkspace(r, workspaceID))
	})
}

func (app *application) enterWorkspace(r *http.Request, workspaceID string) *http.Request {
	user, _ := app.sessionManager.Get(r.Context(), string(userSessionKey)).(models.User)
	app.workspaces.get(workspaceID).SetUser(user)
	return contexthelpers.SetWorkspace(r, workspaceID, user)
}

// serverSentEventMiddleware makes our session library scs work with Server Sent Events (SSE).
// Use this instead of app.sessionManager.LoadAndSave.
// See https://github.com/alexedwards/scs/issues/141#issuecomment-1807075358
func (app *application) serverSentEventMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		cookie, err := r.Cookie(app.sessionManager.Cookie.Name)
		if err == nil {
			token = cookie.Value
		}
		ctx, err := app.sessionManager.Load(r.Context(), token)
		if err != nil {
			app.serverError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func commonContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = contexthelpers.SetCSRFToken(r, nosurf.Token(r))
		next.ServeHTTP(w, r)
	})
}

// noSurf implements CSRF protection using https://github.com/justinas/nosurf.
//
// Mutating requests must echo the token from GET /api/session in the X-CSRF-Token header.
func (app *application) noSurf(next http.Handler) http.Handler {
	csrfHandler := nosurf.New(next)
	csrfHandler.SetBaseCookie(http.Cookie{
		HttpOnly: true,
		Path:     "/",
		Secure:   app.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "csrf check failed", errors.SlogError(nosurf.Reason(r)))
		app.clientError(w, r, http.StatusForbidden, "CSRF token missing or invalid")
	}))

	return csrfHandler
}
