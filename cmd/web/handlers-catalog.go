package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/classify"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/morph"
)

type catalogEntry struct {
	morph.Definition
	DefaultValue float64         `json:"defaultValue"`
	Measurement  measurement.Key `json:"measurement,omitempty"`
}

type catalogResponse struct {
	Categories []morph.Category `json:"categories"`
	Morphs     []catalogEntry   `json:"morphs"`
}

// catalogList lists the morph catalog, optionally only the morphs of ?category=.
func (app *application) catalogList(w http.ResponseWriter, r *http.Request) {
	var category morph.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		var ok bool
		if category, ok = parseCategory(raw); !ok {
			app.clientError(w, r, http.StatusBadRequest, "unknown category "+raw)
			return
		}
	}

	resp := catalogResponse{Categories: morph.Categories, Morphs: []catalogEntry{}}
	for _, d := range app.catalog.Definitions() {
		if category != "" && d.Category != category {
			continue
		}
		key, _ := app.bridge.MeasurementFor(d.ID)
		resp.Morphs = append(resp.Morphs, catalogEntry{Definition: d, DefaultValue: d.DefaultValue(), Measurement: key})
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}

func parseCategory(s string) (morph.Category, bool) {
	for _, c := range morph.Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, true
		}
	}
	return "", false
}

type estimateRequest struct {
	Height        *float64           `json:"height"`
	Weight        *float64           `json:"weight"`
	Gender        string             `json:"gender"`
	AthleticLevel string             `json:"athleticLevel"`
	Strategy      string             `json:"strategy"`
	Known         map[string]float64 `json:"measurements"`
}

type estimateResponse struct {
	Strategy     measurement.Strategy `json:"strategy"`
	Measurements measurement.Values   `json:"measurements"`
}

// estimate fills in the measurements the request does not know from height, weight and sex.
func (app *application) estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := readJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	known := make(measurement.Values, len(req.Known))
	for raw, v := range req.Known {
		key, ok := measurement.ParseKey(raw)
		if !ok {
			app.clientError(w, r, http.StatusBadRequest, "unknown measurement "+raw)
			return
		}
		known[key] = v
	}
	strategy := measurement.ParseStrategy(req.Strategy)
	values := measurement.EstimateMissing(measurement.Input{
		Known:    known,
		Height:   req.Height,
		Weight:   req.Weight,
		Sex:      backend.NormalizeGender(req.Gender).Sex(),
		Athletic: measurement.ParseAthleticLevel(req.AthleticLevel),
	}, strategy)

	app.writeJSON(w, r, http.StatusOK, estimateResponse{Strategy: strategy, Measurements: values})
}

type classifyResponse struct {
	Label       string          `json:"label"`
	Normalized  string          `json:"normalized"`
	Category    morph.Category  `json:"category,omitempty"`
	Measurement measurement.Key `json:"measurement,omitempty"`
	Cosmetic    bool            `json:"cosmetic"`
}

// classifyLabel tells which measurement a morph label would drive, e.g. to check a catalog entry before adding it.
func (app *application) classifyLabel(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	label := query.Get("label")
	if strings.TrimSpace(label) == "" {
		app.handleError(w, r, errors.Wrap(errBadRequest, "label is required"))
		return
	}
	var category morph.Category
	if raw := query.Get("category"); raw != "" {
		var ok bool
		if category, ok = parseCategory(raw); !ok {
			app.clientError(w, r, http.StatusBadRequest, "unknown category "+raw)
			return
		}
	}

	key, ok := app.classifier.Classify(morph.Definition{Label: label, Category: category})
	if !ok {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "label is cosmetic", slog.String("label", label))
	}
	app.writeJSON(w, r, http.StatusOK, classifyResponse{
		Label:       label,
		Normalized:  classify.Normalize(label),
		Category:    category,
		Measurement: key,
		Cosmetic:    !ok,
	})
}
