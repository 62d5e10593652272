package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fitspace/morphsync/internal/models"
)

// RecordedRequest is one call the fake backend received.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// FakeBackend is an in-memory avatar REST backend.
type FakeBackend struct {
	*httptest.Server

	mu         sync.Mutex
	avatars    map[string]map[string]any
	nextID     int
	requests   []RecordedRequest
	failStatus int
	failBody   string
	noEcho     bool
	gate       chan struct{}
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		avatars: make(map[string]map[string]any),
		nextID:  1,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{userID}/avatars", f.list)
	mux.HandleFunc("POST /api/users/{userID}/avatars", f.create)
	mux.HandleFunc("GET /api/users/{userID}/avatars/{avatarID}", f.get)
	mux.HandleFunc("PUT /api/users/{userID}/avatars/{avatarID}", f.update)
	mux.HandleFunc("DELETE /api/users/{userID}/avatars/{avatarID}", f.remove)
	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Server.Close)
	return f
}

// User returns an identity the fake backend accepts.
func User() models.User {
	return models.User{
		ID:           "user-1",
		Email:        "jane@example.com",
		Token:        "token",
		RefreshToken: "refresh",
		SessionID:    "session-1",
	}
}

// Put stores record under id as if it had been created earlier.
func (f *FakeBackend) Put(id string, record map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make(map[string]any, len(record)+1)
	for k, v := range record {
		stored[k] = v
	}
	stored["id"] = id
	f.avatars[id] = stored
}

// Avatar returns the stored record with id.
func (f *FakeBackend) Avatar(id string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.avatars[id]
	return a, ok
}

// Requests returns every request received so far.
func (f *FakeBackend) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Mutations counts the create and update requests received so far.
func (f *FakeBackend) Mutations() int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			n++
		}
	}
	return n
}

// FailWith makes every following request fail with status and body. A zero status restores normal operation.
func (f *FakeBackend) FailWith(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
	f.failBody = body
}

// DisableEcho makes create and update acknowledge without returning the stored record.
func (f *FakeBackend) DisableEcho() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noEcho = true
}

// Hold blocks create and update requests until the returned release function is called.
func (f *FakeBackend) Hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(gate)
		})
	}
}

func (f *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &rec.Body)
			r.Body = io.NopCloser(bytes.NewReader(data))
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		status, body, gate := f.failStatus, f.failBody, f.gate
		f.mu.Unlock()

		if gate != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if r.Header.Get("Authorization") == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Missing bearer token."})
			return
		}
		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeBackend) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	items := make([]map[string]any, 0, len(f.avatars))
	for _, a := range f.avatars {
		items = append(items, a)
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"userId": r.PathValue("userID"),
		"count":  len(items),
		"items":  items,
	})
}

func (f *FakeBackend) get(w http.ResponseWriter, r *http.Request) {
	a, ok := f.Avatar(r.PathValue("avatarID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"description": "Avatar not found."})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (f *FakeBackend) create(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	id := strconv.Itoa(f.nextID)
	f.nextID++
	f.mu.Unlock()
	f.store(w, r, id, body, http.StatusCreated)
}

func (f *FakeBackend) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("avatarID")
	if _, ok := f.Avatar(id); !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"description": "Avatar not found."})
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	f.store(w, r, id, body, http.StatusOK)
}

func (f *FakeBackend) store(w http.ResponseWriter, r *http.Request, id string, body map[string]any, status int) {
	stored := make(map[string]any, len(body)+3) //nolint:mnd // id, userId, updatedAt
	for k, v := range body {
		stored[k] = v
	}
	stored["id"] = id
	stored["userId"] = r.PathValue("userID")
	stored["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	f.mu.Lock()
	f.avatars[id] = stored
	noEcho := f.noEcho
	f.mu.Unlock()
	if noEcho {
		writeJSON(w, status, map[string]any{"status": "ok"})
		return
	}
	writeJSON(w, status, stored)
}

func (f *FakeBackend) remove(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("avatarID")
	if _, ok := f.avatars[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"description": "Avatar not found."})
		return
	}
	delete(f.avatars, id)
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"description": "Request payload must be a JSON object."})
		return nil, false
	}
	if problem := validatePayload(body); problem != "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"description": problem})
		return nil, false
	}
	return body, true
}

// quickModeKeys are the only quickModeSettings fields the avatar backend stores.
var quickModeKeys = []string{"bodyShape", "athleticLevel", "measurements"}

// validatePayload applies the avatar backend's create and update checks and describes the first violation.
func validatePayload(body map[string]any) string {
	if name, ok := body["name"]; ok && name != nil {
		if _, isString := name.(string); !isString {
			return "Avatar name must be a string."
		}
	}
	if quick, ok := body["quickMode"]; ok && quick != nil {
		if _, isBool := quick.(bool); !isBool {
			return "quickMode must be a boolean value."
		}
	}
	if problem := validateQuickModeSettings(body["quickModeSettings"]); problem != "" {
		return problem
	}

	topMode, _ := body["creationMode"].(string)
	var measuredMode string
	for _, section := range []string{"basicMeasurements", "bodyMeasurements"} {
		mode, problem := validateMeasurements(body[section], section)
		if problem != "" {
			return problem
		}
		if measuredMode == "" {
			measuredMode = mode
		}
	}
	if measuredMode != "" && topMode != "" && measuredMode != topMode {
		return "creationMode provided in measurements does not match the top-level value."
	}
	return ""
}

func validateQuickModeSettings(raw any) string {
	if raw == nil {
		return ""
	}
	settings, ok := raw.(map[string]any)
	if !ok {
		return "quickModeSettings must be an object."
	}
	var unexpected []string
	for key := range settings {
		if !slices.Contains(quickModeKeys, key) {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		slices.Sort(unexpected)
		return "quickModeSettings contains unsupported fields: " + strings.Join(unexpected, ", ") + "."
	}
	for _, key := range []string{"bodyShape", "athleticLevel"} {
		if v, ok := settings[key]; ok && v != nil {
			if _, isString := v.(string); !isString {
				return "quickModeSettings." + key + " must be a string."
			}
		}
	}
	if raw, ok := settings["measurements"]; ok && raw != nil {
		values, isObject := raw.(map[string]any)
		if !isObject {
			return "quickModeSettings.measurements must be an object of numbers."
		}
		for key, v := range values {
			if _, isNumber := v.(float64); !isNumber {
				return "quickModeSettings.measurements['" + key + "'] must be a number."
			}
		}
	}
	return ""
}

// validateMeasurements checks that section holds numbers and returns the creation mode recorded in it, if any.
func validateMeasurements(raw any, section string) (string, string) {
	if raw == nil {
		return "", ""
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return "", section + " must be an object of numeric values."
	}
	var mode string
	for key, v := range values {
		if key == "creationMode" {
			mode, _ = v.(string)
			continue
		}
		if _, isNumber := v.(float64); !isNumber {
			return "", "Measurement '" + key + "' in " + section + " must be a number."
		}
	}
	return mode, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
