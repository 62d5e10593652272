package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/fitspace/morphsync/internal/avatarstore"
	"github.com/fitspace/morphsync/internal/e2etest"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/fitspace/morphsync/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waistWidthID = 70

func morphPath(id int) string {
	return "/api/avatar/morphs/" + strconv.Itoa(id)
}

func TestHealthy(t *testing.T) {
	server := startServer(t, testhelpers.NewFakeBackend(t).URL)

	resp, err := server.Client().Get(context.Background(), "/api/healthy")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	server := startServer(t, testhelpers.NewFakeBackend(t).URL)
	client := newClient(t, server)

	var catalog catalogResponse
	_, err := client.DoJSON(ctx, http.MethodGet, "/api/catalog?category=waist", nil, &catalog)
	require.NoError(t, err)
	require.NotEmpty(t, catalog.Morphs)
	for _, m := range catalog.Morphs {
		assert.Equal(t, "Waist", string(m.Category))
	}

	status, err := client.DoJSON(ctx, http.MethodGet, "/api/catalog?category=tail", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestEstimate(t *testing.T) {
	ctx := context.Background()
	server := startServer(t, testhelpers.NewFakeBackend(t).URL)
	client := newClient(t, server)

	tests := []struct {
		name    string
		request map[string]any
		check   func(t *testing.T, values measurement.Values)
	}{
		{
			name:    "height only",
			request: map[string]any{"height": 168.0, "gender": "Female"},
			check: func(t *testing.T, values measurement.Values) {
				assert.InDelta(t, 73.9, values[measurement.Inseam], 1e-9)
			},
		},
		{
			name:    "known values are kept",
			request: map[string]any{"height": 180.0, "gender": "male", "measurements": map[string]float64{"waist": 90}},
			check: func(t *testing.T, values measurement.Values) {
				assert.InDelta(t, 90.0, values[measurement.Waist], 1e-9)
				assert.Contains(t, values, measurement.Chest)
			},
		},
		{
			name:    "nothing without height",
			request: map[string]any{"gender": "male"},
			check: func(t *testing.T, values measurement.Values) {
				assert.Empty(t, values)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp estimateResponse
			_, err := client.DoJSON(ctx, http.MethodPost, "/api/estimate", tt.request, &resp)
			require.NoError(t, err)
			tt.check(t, resp.Measurements)
		})
	}

	status, err := client.DoJSON(ctx, http.MethodPost, "/api/estimate",
		map[string]any{"measurements": map[string]float64{"tail": 3}}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	server := startServer(t, testhelpers.NewFakeBackend(t).URL)
	client := newClient(t, server)

	var resp classifyResponse
	_, err := client.DoJSON(ctx, http.MethodGet, "/api/classify?label=Waist%20Width", nil, &resp)
	require.NoError(t, err)
	assert.Equal(t, measurement.Waist, resp.Measurement)
	assert.Equal(t, "waist width", resp.Normalized)
	assert.False(t, resp.Cosmetic)

	status, err := client.DoJSON(ctx, http.MethodGet, "/api/classify", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCSRF(t *testing.T) {
	ctx := context.Background()
	server := startServer(t, testhelpers.NewFakeBackend(t).URL)

	// The client has never fetched its CSRF token.
	status, err := server.Client().DoJSON(ctx, http.MethodPost, "/api/avatar/load", map[string]any{"record": map[string]any{}}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestGuestEditing(t *testing.T) {
	ctx := context.Background()
	fakeBackend := testhelpers.NewFakeBackend(t)
	server := startServer(t, fakeBackend.URL)
	client := newClient(t, server)

	var view avatarResponse
	_, err := client.DoJSON(ctx, http.MethodGet, "/api/avatar", nil, &view)
	require.NoError(t, err)
	assert.Equal(t, avatarstore.StateEmpty, view.State)
	assert.Nil(t, view.Avatar)

	status, err := client.DoJSON(ctx, http.MethodPut, morphPath(waistWidthID), map[string]float64{"value": 70}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, status, "nothing to edit before a load")

	_, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/load",
		map[string]any{"record": map[string]any{"gender": "female", "basicMeasurements": map[string]any{"height": 165}}},
		&view)
	require.NoError(t, err)
	assert.Equal(t, avatarstore.StateLoaded, view.State)
	require.NotNil(t, view.Avatar)
	assert.Equal(t, models.DefaultAvatarName, view.Avatar.Name)

	var change changeResponse
	_, err = client.DoJSON(ctx, http.MethodPut, morphPath(waistWidthID), map[string]float64{"value": 70}, &change)
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.Equal(t, avatarstore.StateDirty, change.State)
	assert.Equal(t, []models.DirtySection{models.SectionMorphs}, change.DirtySections)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown morph", http.MethodPut, morphPath(999999), map[string]float64{"value": 10}, http.StatusNotFound},
		{"morph id", http.MethodPut, "/api/avatar/morphs/waist", map[string]float64{"value": 10}, http.StatusBadRequest},
		{"value and native", http.MethodPut, morphPath(waistWidthID), map[string]float64{"value": 1, "native": 1}, http.StatusBadRequest},
		{"unknown measurement", http.MethodPatch, "/api/avatar/measurements", map[string]any{"measurements": map[string]float64{"tail": 3}}, http.StatusBadRequest},
		{"negative measurement", http.MethodPatch, "/api/avatar/measurements", map[string]any{"measurements": map[string]float64{"waist": -3}}, http.StatusBadRequest},
		{"unknown section", http.MethodPatch, "/api/avatar/quick-mode/shoes", map[string]any{"color": "red"}, http.StatusBadRequest},
		{"clothing without item", http.MethodPut, "/api/avatar/clothing/tops", map[string]any{}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/avatar/load", map[string]any{"avatar": "a1"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := client.DoJSON(ctx, tt.method, tt.path, tt.body, nil)
			require.Error(t, err)
			assert.Equal(t, tt.status, status)
		})
	}

	_, err = client.DoJSON(ctx, http.MethodPatch, "/api/avatar/measurements",
		map[string]any{"measurements": map[string]float64{"Chest": 95}}, &change)
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.InDelta(t, 95.0, change.Avatar.Body[measurement.Chest], 1e-9)

	_, err = client.DoJSON(ctx, http.MethodPatch, "/api/avatar/quick-mode/skin", map[string]any{"tone": "olive"}, &change)
	require.NoError(t, err)
	require.NotNil(t, change.Avatar.QuickSettings)
	assert.Equal(t, "olive", change.Avatar.QuickSettings.Skin["tone"])

	_, err = client.DoJSON(ctx, http.MethodPut, "/api/avatar/clothing/tops", models.ClothingSelection{ItemID: "tee-3"}, &change)
	require.NoError(t, err)
	assert.Equal(t, "tee-3", change.Avatar.Clothing["tops"].ItemID)

	var saved saveResponse
	status, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/save", nil, &saved)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, saved.Success)
	assert.Equal(t, avatarstore.OutcomeDraft, saved.Outcome)
	assert.Empty(t, saved.DirtySections)
	assert.Empty(t, fakeBackend.Requests(), "guests never reach the backend")

	_, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/reset", nil, &view)
	require.NoError(t, err)
	assert.Equal(t, avatarstore.StateEmpty, view.State)

	_, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/load", map[string]any{"draft": true}, &view)
	require.NoError(t, err)
	require.NotNil(t, view.Avatar)
	assert.Equal(t, "tee-3", view.Avatar.Clothing["tops"].ItemID, "the guest draft survives a reset")
	assert.Equal(t, avatarstore.StateDirty, view.State)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	server := startServer(t, testhelpers.NewFakeBackend(t).URL)
	alice := newClient(t, server)
	bob := newClient(t, server)

	_, err := alice.DoJSON(ctx, http.MethodPost, "/api/avatar/load", map[string]any{"record": map[string]any{}}, nil)
	require.NoError(t, err)

	var view avatarResponse
	_, err = bob.DoJSON(ctx, http.MethodGet, "/api/avatar", nil, &view)
	require.NoError(t, err)
	assert.Equal(t, avatarstore.StateEmpty, view.State)

	// Guest drafts are scoped to the session too.
	status, err := bob.DoJSON(ctx, http.MethodPost, "/api/avatar/load", map[string]any{"draft": true}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSignedInSave(t *testing.T) {
	ctx := context.Background()
	fakeBackend := testhelpers.NewFakeBackend(t)
	fakeBackend.Put("a1", map[string]any{
		"id":                "a1",
		"name":              "Mine",
		"gender":            "male",
		"basicMeasurements": map[string]any{"height": 180},
	})
	server := startServer(t, fakeBackend.URL)
	client := newClient(t, server)

	status, err := client.DoJSON(ctx, http.MethodPost, "/api/avatar/load", map[string]any{"avatarId": "a1"}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status, "guests cannot fetch backend avatars")

	status, err = client.DoJSON(ctx, http.MethodPut, "/api/session", models.User{ID: "user-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status, "identity without tokens")

	session, err := client.SignIn(ctx, testhelpers.User())
	require.NoError(t, err)
	assert.True(t, session.Authenticated)
	assert.Equal(t, "user-1", session.UserID)

	var view avatarResponse
	_, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/load", map[string]any{"avatarId": "a1"}, &view)
	require.NoError(t, err)
	require.NotNil(t, view.Avatar)
	assert.Equal(t, "Mine", view.Avatar.Name)

	_, err = client.DoJSON(ctx, http.MethodPut, morphPath(waistWidthID), map[string]float64{"value": 64}, nil)
	require.NoError(t, err)

	var saved saveResponse
	_, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/save",
		saveRequest{Fallbacks: map[string]float64{"neck": 39}}, &saved)
	require.NoError(t, err)
	assert.Equal(t, avatarstore.OutcomeSaved, saved.Outcome)
	assert.Equal(t, avatarstore.StateLoaded, saved.State)
	assert.Equal(t, 1, fakeBackend.Mutations())

	stored, ok := fakeBackend.Avatar("a1")
	require.True(t, ok)
	targets, ok := stored["morphTargets"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 64.0, targets["waistWidth"], 1e-9)

	fakeBackend.FailWith(http.StatusServiceUnavailable, `{"error":"maintenance"}`)
	_, err = client.DoJSON(ctx, http.MethodPut, morphPath(waistWidthID), map[string]float64{"value": 65}, nil)
	require.NoError(t, err)
	status, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/save", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, status)

	status, err = client.DoJSON(ctx, http.MethodDelete, "/api/session", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
	fakeBackend.FailWith(0, "")
	_, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/save", nil, &saved)
	require.NoError(t, err)
	assert.Equal(t, avatarstore.OutcomeDraft, saved.Outcome, "signed out saves become drafts")
}

func TestAvatarEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := startServer(t, testhelpers.NewFakeBackend(t).URL)

	status, err := server.Client().DoJSON(ctx, http.MethodGet, "/api/avatar/events", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status, "the stream needs an established session")

	client := newClient(t, server)
	events, err := client.Events(ctx, "/api/avatar/events")
	require.NoError(t, err)

	first := receive(t, events)
	assert.Equal(t, "state", first.Name)

	_, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/load", map[string]any{"record": map[string]any{}}, nil)
	require.NoError(t, err)
	_, err = client.DoJSON(ctx, http.MethodPut, morphPath(waistWidthID), map[string]float64{"value": 70}, nil)
	require.NoError(t, err)

	var got []avatarstore.Event
	for len(got) < 3 {
		var event avatarstore.Event
		require.NoError(t, json.Unmarshal(receive(t, events).Data, &event))
		got = append(got, event)
	}
	assert.Equal(t, avatarstore.EventStateChanged, got[0].Type)
	assert.Equal(t, avatarstore.StateLoaded, got[0].State)
	assert.Equal(t, avatarstore.EventStateChanged, got[1].Type)
	assert.Equal(t, avatarstore.StateDirty, got[1].State)
	assert.Equal(t, avatarstore.EventDraftStaged, got[2].Type)
}

func receive(t *testing.T, events <-chan e2etest.Event) e2etest.Event {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "event stream closed")
		return event
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for event")
		return e2etest.Event{}
	}
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	server := startServer(t, testhelpers.NewFakeBackend(t).URL)
	client := newClient(t, server)
	_, err := client.DoJSON(ctx, http.MethodPost, "/api/avatar/load", map[string]any{"record": map[string]any{}}, nil)
	require.NoError(t, err)
	_, err = client.DoJSON(ctx, http.MethodPut, morphPath(waistWidthID), map[string]float64{"value": 70}, nil)
	require.NoError(t, err)
	_, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/save", nil, nil)
	require.NoError(t, err)

	resp, err := client.Get(ctx, "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "morphsync_active_workspaces 1")
	assert.Contains(t, string(body), `morphsync_saves_total{outcome="draft"} 1`)
}
