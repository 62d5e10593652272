package main

import (
	"net/http"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthy", app.healthy)
	mux.Handle("GET /metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry}))

	timeout := func(next http.Handler) http.Handler { return timeoutHandler(next, defaultTimeout) }
	session := alice.New(timeout, app.sessionManager.LoadAndSave, app.noSurf, commonContext, app.workspace)

	mux.Handle("GET /api/catalog", session.ThenFunc(app.catalogList))
	mux.Handle("POST /api/estimate", session.ThenFunc(app.estimate))
	mux.Handle("GET /api/classify", session.ThenFunc(app.classifyLabel))

	mux.Handle("GET /api/session", session.ThenFunc(app.sessionGet))
	mux.Handle("PUT /api/session", session.ThenFunc(app.sessionPut))
	mux.Handle("DELETE /api/session", session.ThenFunc(app.sessionDelete))

	mux.Handle("POST /api/avatar/load", session.ThenFunc(app.avatarLoad))
	mux.Handle("GET /api/avatar", session.ThenFunc(app.avatarGet))
	mux.Handle("PUT /api/avatar/morphs/{morphID}", session.ThenFunc(app.avatarMorphPut))
	mux.Handle("PATCH /api/avatar/measurements", session.ThenFunc(app.avatarMeasurementsPatch))
	mux.Handle("PATCH /api/avatar/quick-mode/{section}", session.ThenFunc(app.avatarQuickModePatch))
	mux.Handle("PUT /api/avatar/clothing/{category}", session.ThenFunc(app.avatarClothingPut))
	mux.Handle("DELETE /api/avatar/clothing/{category}", session.ThenFunc(app.avatarClothingDelete))
	mux.Handle("POST /api/avatar/save", session.ThenFunc(app.avatarSave))
	mux.Handle("POST /api/avatar/reset", session.ThenFunc(app.avatarReset))

	// The event stream outlives the write timeout and never writes the session, so it only joins an existing one.
	sse := alice.New(app.serverSentEventMiddleware, app.existingWorkspace)
	mux.Handle("GET /api/avatar/events", sse.ThenFunc(app.avatarEvents))

	standard := alice.New(app.recoverPanic, app.logRequest, secureHeaders, noCache)

	return standard.Then(mux)
}
