package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/fitspace/morphsync/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(&buf, nil)))

	ctx := logging.WithAttrs(context.Background(), slog.String("requestID", "r1"))
	first := logging.WithAvatar(ctx, "a1")
	second := logging.WithAvatar(ctx, "")

	logger.InfoContext(first, "first")
	require.Contains(t, buf.String(), "requestID=r1")
	require.Contains(t, buf.String(), "avatarID=a1")

	buf.Reset()
	logger.InfoContext(second, "second")
	require.Contains(t, buf.String(), "avatarID=unsaved")
	require.NotContains(t, buf.String(), "avatarID=a1")
}
