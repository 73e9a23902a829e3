package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/confluence/internal/api/response"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth("secret-key", "/api/health")(okHandler)

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"valid key", http.MethodGet, "/api/profiles", "secret-key", http.StatusOK},
		{"missing key", http.MethodGet, "/api/profiles", "", http.StatusUnauthorized},
		{"wrong key", http.MethodGet, "/api/profiles", "nope", http.StatusUnauthorized},
		{"public path", http.MethodGet, "/api/health", "", http.StatusOK},
		{"preflight", http.MethodOptions, "/api/backtest", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(h, tt.method, tt.path, tt.key).Code)
		})
	}
}

func TestAPIKeyAuth_ErrorBody(t *testing.T) {
	w := serve(APIKeyAuth("secret-key")(okHandler), http.MethodGet, "/api/analysis", "")

	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
	assert.Contains(t, resp.Error.Cause, "missing")
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	w := serve(APIKeyAuth("")(okHandler), http.MethodGet, "/api/analysis", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
