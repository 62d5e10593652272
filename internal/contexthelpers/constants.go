package contexthelpers

type contextKey string

const (
	requestIDContextKey   = contextKey("requestID")
	workspaceIDContextKey = contextKey("workspaceID")
	userContextKey        = contextKey("user")
	csrfTokenContextKey   = contextKey("csrfToken")
)
