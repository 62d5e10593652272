package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/fitspace/morphsync/internal/avatarstore"
	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/contexthelpers"
	"github.com/fitspace/morphsync/internal/drafts"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/morph"
)

// maxBodyBytes bounds request bodies. A full avatar record with every morph target is well below it.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.NewSentinel("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, message string) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), slog.String("message", message))
	app.writeJSON(w, r, status, errorResponse{Error: message})
}

// handleError responds with the status err maps to. Anything unrecognised is a server error.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		app.serverError(w, r, err)
		return
	}
	app.clientError(w, r, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, avatarstore.ErrInvalidSection),
		errors.Is(err, avatarstore.ErrInvalidMeasurement):
		return http.StatusBadRequest
	case errors.Is(err, avatarstore.ErrNoAvatar):
		return http.StatusConflict
	case errors.Is(err, morph.ErrUnknownMorph),
		errors.Is(err, backend.ErrNotFound),
		errors.Is(err, drafts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnauthorized), errors.Is(err, backend.ErrSessionIncomplete):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, backend.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, avatarstore.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "failed to write response",
			errors.SlogError(errors.Wrap(err, "encode response")))
	}
}

// readJSON decodes the request body into dst, rejecting unknown fields and trailing data.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(errBadRequest, "decode request body", slog.String("cause", err.Error()))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.Wrap(errBadRequest, "request body must hold a single JSON value")
	}
	return nil
}

// store returns the avatar store of the request's browser session.
func (app *application) store(r *http.Request) *avatarstore.Store {
	return app.workspaces.get(contexthelpers.WorkspaceID(r.Context()))
}
