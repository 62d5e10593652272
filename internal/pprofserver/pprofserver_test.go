package pprofserver_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fitspace/morphsync/internal/pprofserver"
	"github.com/stretchr/testify/assert"
)

func TestHandle(t *testing.T) {
	mux := http.NewServeMux()
	pprofserver.Handle(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
