package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fitspace/morphsync/internal/avatarstore"
	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
)

type avatarResponse struct {
	State          avatarstore.State           `json:"state"`
	DirtySections  []models.DirtySection       `json:"dirtySections"`
	LastError      string                      `json:"lastError,omitempty"`
	Avatar         *models.AvatarConfiguration `json:"avatar"`
	RendererValues map[int]float64             `json:"rendererValues,omitempty"`
}

type changeResponse struct {
	Changed bool `json:"changed"`
	avatarResponse
}

func (app *application) avatarView(store *avatarstore.Store) avatarResponse {
	resp := avatarResponse{
		State:          store.State(),
		DirtySections:  store.DirtySections(),
		Avatar:         store.Snapshot(),
		RendererValues: store.RendererValues(),
	}
	if err := store.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

func (app *application) respondChange(w http.ResponseWriter, r *http.Request, changed bool, err error) {
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, changeResponse{Changed: changed, avatarResponse: app.avatarView(app.store(r))})
}

type loadRequest struct {
	AvatarID string          `json:"avatarId"`
	Record   json.RawMessage `json:"record"`
	Draft    bool            `json:"draft"`
}

// avatarLoad replaces the avatar being edited with a backend avatar, a record the caller already holds or the
// session's local draft.
func (app *application) avatarLoad(w http.ResponseWriter, r *http.Request) {
	var (
		err   error
		req   loadRequest
		ctx   = r.Context()
		store = app.store(r)
	)
	if err = readJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}

	switch {
	case req.Draft:
		err = store.RestoreDraft(ctx, store.DraftKey(req.AvatarID))
	case len(req.Record) > 0:
		var rec backend.Record
		if err = json.Unmarshal(req.Record, &rec); err != nil {
			err = errors.Wrap(errBadRequest, "decode record", slog.String("cause", err.Error()))
			break
		}
		store.Load(ctx, rec)
	case strings.TrimSpace(req.AvatarID) != "":
		err = store.FetchAndLoad(ctx, req.AvatarID)
	default:
		err = errors.Wrap(errBadRequest, "one of avatarId, record or draft is required")
	}
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, app.avatarView(store))
}

func (app *application) avatarGet(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, app.avatarView(app.store(r)))
}

type morphRequest struct {
	Value  *float64 `json:"value"`
	Native *float64 `json:"native"`
}

// avatarMorphPut moves one slider, given either on the 0-100 scale or in the renderer's native range.
func (app *application) avatarMorphPut(w http.ResponseWriter, r *http.Request) {
	var (
		err     error
		req     morphRequest
		morphID int
		changed bool
	)
	if morphID, err = strconv.Atoi(r.PathValue("morphID")); err != nil {
		app.handleError(w, r, errors.Wrap(errBadRequest, "morph id must be an integer"))
		return
	}
	if err = readJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	switch {
	case req.Value != nil && req.Native == nil:
		changed, err = app.store(r).UpdateMorphValue(r.Context(), morphID, *req.Value)
	case req.Native != nil && req.Value == nil:
		changed, err = app.store(r).UpdateMorphNative(r.Context(), morphID, *req.Native)
	default:
		err = errors.Wrap(errBadRequest, "exactly one of value or native is required")
	}
	app.respondChange(w, r, changed, err)
}

type measurementsRequest struct {
	Section      models.DirtySection `json:"section"`
	Measurements map[string]*float64 `json:"measurements"`
}

// avatarMeasurementsPatch sets measurements in centimetres, null deletes one. The sliders follow.
func (app *application) avatarMeasurementsPatch(w http.ResponseWriter, r *http.Request) {
	var (
		err     error
		req     measurementsRequest
		changed bool
	)
	if err = readJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	patch := make(map[measurement.Key]*float64, len(req.Measurements))
	for raw, v := range req.Measurements {
		key, ok := measurement.ParseKey(raw)
		if !ok {
			app.handleError(w, r, errors.Wrap(avatarstore.ErrInvalidMeasurement, "unknown key", slog.String("key", raw)))
			return
		}
		patch[key] = v
	}
	changed, err = app.store(r).UpdateMeasurements(r.Context(), patch, req.Section)
	app.respondChange(w, r, changed, err)
}

// avatarQuickModePatch patches the skin, hair or extras attributes, null deletes one.
func (app *application) avatarQuickModePatch(w http.ResponseWriter, r *http.Request) {
	var (
		err     error
		patch   map[string]*string
		changed bool
	)
	section := r.PathValue("section")
	if !strings.HasPrefix(section, "quickMode.") {
		section = "quickMode." + section
	}
	if err = readJSON(w, r, &patch); err != nil {
		app.handleError(w, r, err)
		return
	}
	changed, err = app.store(r).UpdateQuickModeAttributes(r.Context(), models.DirtySection(section), patch)
	app.respondChange(w, r, changed, err)
}

func (app *application) avatarClothingPut(w http.ResponseWriter, r *http.Request) {
	var (
		err       error
		selection models.ClothingSelection
		changed   bool
	)
	if err = readJSON(w, r, &selection); err != nil {
		app.handleError(w, r, err)
		return
	}
	if strings.TrimSpace(selection.ItemID) == "" {
		app.handleError(w, r, errors.Wrap(errBadRequest, "itemId is required"))
		return
	}
	changed, err = app.store(r).UpdateClothing(r.Context(), r.PathValue("category"), &selection)
	app.respondChange(w, r, changed, err)
}

func (app *application) avatarClothingDelete(w http.ResponseWriter, r *http.Request) {
	changed, err := app.store(r).UpdateClothing(r.Context(), r.PathValue("category"), nil)
	app.respondChange(w, r, changed, err)
}

type saveRequest struct {
	Fallbacks map[string]float64 `json:"fallbacks"`
}

type saveResponse struct {
	Success bool                `json:"success"`
	Outcome avatarstore.Outcome `json:"outcome"`
	Error   string              `json:"error,omitempty"`
	avatarResponse
}

// avatarSave saves now instead of waiting for the autosave. The body is optional.
func (app *application) avatarSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			app.handleError(w, r, err)
			return
		}
	}
	var fallbacks measurement.Values
	for raw, v := range req.Fallbacks {
		key, ok := measurement.ParseKey(raw)
		if !ok {
			app.handleError(w, r, errors.Wrap(avatarstore.ErrInvalidMeasurement, "unknown key", slog.String("key", raw)))
			return
		}
		if fallbacks == nil {
			fallbacks = make(measurement.Values, len(req.Fallbacks))
		}
		fallbacks[key] = v
	}

	store := app.store(r)
	result := store.Save(r.Context(), fallbacks)
	resp := saveResponse{
		Success:        result.Success,
		Outcome:        result.Outcome,
		avatarResponse: app.avatarView(store),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	app.writeJSON(w, r, saveStatus(result), resp)
}

func saveStatus(result avatarstore.SaveResult) int {
	switch result.Outcome {
	case avatarstore.OutcomeNeedsLogin:
		return http.StatusUnauthorized
	case avatarstore.OutcomeFailed:
		if status := errorStatus(result.Err); status != http.StatusInternalServerError {
			return status
		}
		return http.StatusBadGateway
	case avatarstore.OutcomeNoop, avatarstore.OutcomeSaved, avatarstore.OutcomeDraft,
		avatarstore.OutcomeDraftNotSaved, avatarstore.OutcomeInFlight:
		return http.StatusOK
	default:
		return http.StatusOK
	}
}

// avatarReset drops the avatar being edited without saving it.
func (app *application) avatarReset(w http.ResponseWriter, r *http.Request) {
	store := app.store(r)
	store.Reset()
	app.writeJSON(w, r, http.StatusOK, app.avatarView(store))
}
