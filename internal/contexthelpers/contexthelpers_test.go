package contexthelpers_test

import (
	"net/http/httptest"
	"testing"

	"github.com/fitspace/morphsync/internal/contexthelpers"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestWorkspace(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/avatar", nil)
	assert.Empty(t, contexthelpers.WorkspaceID(r.Context()))
	assert.False(t, contexthelpers.IsAuthenticated(r.Context()))

	r = contexthelpers.SetWorkspace(r, "w-1", models.User{ID: "user-1"})
	r = contexthelpers.SetRequestID(r, "req-1")
	r = contexthelpers.SetCSRFToken(r, "csrf")

	ctx := r.Context()
	assert.Equal(t, "w-1", contexthelpers.WorkspaceID(ctx))
	assert.Equal(t, "user-1", contexthelpers.User(ctx).ID)
	assert.True(t, contexthelpers.IsAuthenticated(ctx))
	assert.Equal(t, "req-1", contexthelpers.RequestID(ctx))
	assert.Equal(t, "csrf", contexthelpers.CSRFToken(ctx))
}
