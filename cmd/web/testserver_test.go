package main

import (
	"context"
	"io"
	"testing"

	"github.com/fitspace/morphsync/internal/e2etest"
	"github.com/stretchr/testify/require"
)

// startServer runs the service against backendURL with an in-memory database and autosave disabled.
func startServer(t *testing.T, backendURL string) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	lookupEnv := func(key string) (string, bool) {
		switch key {
		case "MORPHSYNC_ADDR":
			return "localhost:0", true
		case "MORPHSYNC_SQLITE_URL":
			return ":memory:", true
		case "MORPHSYNC_BACKEND_URL":
			return backendURL, true
		case "MORPHSYNC_AUTOSAVE_DELAY":
			return "-1ms", true
		case "MORPHSYNC_SECURE_COOKIES":
			return "false", true
		default:
			return "", false
		}
	}
	server, err := e2etest.StartServer(ctx, io.Discard, lookupEnv, run)
	require.NoError(t, err)
	return server
}

// newClient returns a client with a session of its own.
func newClient(t *testing.T, server *e2etest.Server) *e2etest.Client {
	t.Helper()
	client, err := e2etest.NewClient(server.URL())
	require.NoError(t, err)
	_, err = client.Session(context.Background())
	require.NoError(t, err)
	return client
}
