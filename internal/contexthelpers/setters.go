package contexthelpers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fitspace/morphsync/internal/logging"
	"github.com/fitspace/morphsync/internal/models"
)

// SetRequestID stores the request id and tags the request's log events with it.
func SetRequestID(r *http.Request, requestID string) *http.Request {
	ctx := r.Context()
	ctx = context.WithValue(ctx, requestIDContextKey, requestID)
	ctx = logging.WithAttrs(ctx, slog.String("requestID", requestID))
	return r.WithContext(ctx)
}

func SetWorkspace(r *http.Request, workspaceID string, user models.User) *http.Request {
	ctx := r.Context()
	ctx = context.WithValue(ctx, workspaceIDContextKey, workspaceID)
	ctx = context.WithValue(ctx, userContextKey, user)
	ctx = logging.WithAttrs(ctx, slog.String("workspaceID", workspaceID))
	return r.WithContext(ctx)
}

func SetCSRFToken(r *http.Request, csrfToken string) *http.Request {
	ctx := r.Context()
	ctx = context.WithValue(ctx, csrfTokenContextKey, csrfToken)
	return r.WithContext(ctx)
}
