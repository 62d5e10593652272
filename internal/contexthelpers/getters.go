package contexthelpers

import (
	"context"

	"github.com/fitspace/morphsync/internal/models"
)

func RequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(requestIDContextKey).(string)
	if !ok {
		return ""
	}

	return requestID
}

// WorkspaceID returns the id of the avatar store serving the browser session, empty before one is assigned.
func WorkspaceID(ctx context.Context) string {
	workspaceID, ok := ctx.Value(workspaceIDContextKey).(string)
	if !ok {
		return ""
	}

	return workspaceID
}

// User returns the signed-in identity or the zero User for guests.
func User(ctx context.Context) models.User {
	user, ok := ctx.Value(userContextKey).(models.User)
	if !ok {
		return models.User{}
	}

	return user
}

func IsAuthenticated(ctx context.Context) bool {
	return !User(ctx).Guest()
}

func CSRFToken(ctx context.Context) string {
	csrfToken, ok := ctx.Value(csrfTokenContextKey).(string)
	if !ok {
		return ""
	}

	return csrfToken
}
