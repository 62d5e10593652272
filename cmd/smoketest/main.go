package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fitspace/morphsync/internal/e2etest"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/logging"
)

// smokeMorphID is a keyed morph present in every catalog version, Waist Width.
const smokeMorphID = "70"

type avatarView struct {
	State         string   `json:"state"`
	DirtySections []string `json:"dirtySections"`
}

type saveView struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome"`
	Error   string `json:"error"`
}

// TestGuestDraft edits an avatar without signing in and checks that saving keeps it as a draft.
func TestGuestDraft(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()
	var err error

	if _, err = client.Session(ctx); err != nil {
		return errors.Wrap(err, "start session")
	}
	var catalog struct {
		Morphs []struct {
			ID int `json:"morphId"`
		} `json:"morphs"`
	}
	if _, err = client.DoJSON(ctx, http.MethodGet, "/api/catalog", nil, &catalog); err != nil {
		return errors.Wrap(err, "get catalog")
	}
	if len(catalog.Morphs) == 0 {
		return errors.New("catalog is empty")
	}
	var estimate struct {
		Measurements map[string]float64 `json:"measurements"`
	}
	if _, err = client.DoJSON(ctx, http.MethodPost, "/api/estimate",
		map[string]any{"height": 175, "gender": "female"}, &estimate); err != nil {
		return errors.Wrap(err, "estimate")
	}
	if len(estimate.Measurements) == 0 {
		return errors.New("estimate returned no measurements")
	}

	var view avatarView
	if _, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/load",
		map[string]any{"record": map[string]any{"gender": "female", "basicMeasurements": map[string]any{"height": 175}}},
		&view); err != nil {
		return errors.Wrap(err, "load avatar")
	}
	if _, err = client.DoJSON(ctx, http.MethodPut, "/api/avatar/morphs/"+smokeMorphID,
		map[string]any{"value": 65}, &view); err != nil {
		return errors.Wrap(err, "update morph")
	}
	if view.State != "dirty" {
		return errors.New("unexpected state after edit", slog.String("state", view.State))
	}

	var saved saveView
	if _, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/save", nil, &saved); err != nil {
		return errors.Wrap(err, "save avatar")
	}
	if saved.Outcome != "draft" {
		return errors.New("unexpected save outcome",
			slog.String("outcome", saved.Outcome), slog.String("error", saved.Error))
	}

	if _, err = client.DoJSON(ctx, http.MethodPost, "/api/avatar/reset", nil, &view); err != nil {
		return errors.Wrap(err, "reset avatar")
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "service not ready", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestGuestDraft(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing guest draft", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
