package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestETag_SetsStableTag(t *testing.T) {
	h := ETag(jsonHandler(http.StatusOK, `{"chart":"cost-per-rx"}`))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/charts/cost-per-rx", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/charts/cost-per-rx", nil))

	require.Equal(t, http.StatusOK, first.Code)
	tag := first.Header().Get("ETag")
	assert.Regexp(t, `^"[0-9a-f]{16}"$`, tag)
	assert.Equal(t, tag, second.Header().Get("ETag"))
	assert.JSONEq(t, `{"chart":"cost-per-rx"}`, first.Body.String())
}

func TestETag_NotModified(t *testing.T) {
	h := ETag(jsonHandler(http.StatusOK, `{"data":[]}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	tag := rec.Header().Get("ETag")

	tests := []struct {
		name        string
		ifNoneMatch string
		want        int
	}{
		{name: "exact", ifNoneMatch: tag, want: http.StatusNotModified},
		{name: "weak", ifNoneMatch: "W/" + tag, want: http.StatusNotModified},
		{name: "list", ifNoneMatch: `"0000000000000000", ` + tag, want: http.StatusNotModified},
		{name: "wildcard", ifNoneMatch: "*", want: http.StatusNotModified},
		{name: "stale", ifNoneMatch: `"0000000000000000"`, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("If-None-Match", tt.ifNoneMatch)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNotModified {
				assert.Zero(t, rec.Body.Len())
			}
		})
	}
}

func TestETag_SkipsErrors(t *testing.T) {
	h := ETag(jsonHandler(http.StatusNotFound, `{"error":"Chart not found"}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
	assert.Contains(t, rec.Body.String(), "Chart not found")
}

func TestETag_SkipsNonGet(t *testing.T) {
	h := ETag(jsonHandler(http.StatusOK, `{}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))

	assert.Empty(t, rec.Header().Get("ETag"))
}
