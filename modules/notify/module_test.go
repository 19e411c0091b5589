package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPostsStatusPayload(t *testing.T) {
	var (
		gotBody   []byte
		gotAuth   string
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	defer m.Close()

	out, err := m.Run(context.Background(), &Input{
		URL:     srv.URL,
		Status:  "passed",
		Target:  "all",
		Message: "coverage report written",
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out["status_code"])
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer token", gotAuth)

	var payload Payload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "statsbox", payload.Pipeline)
	assert.Equal(t, "all", payload.Target)
	assert.Equal(t, "passed", payload.Status)
	assert.Equal(t, "coverage report written", payload.Message)
	assert.False(t, payload.Time.IsZero())
}

func TestRunFailsOnErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	m := New()
	defer m.Close()

	_, err := m.Run(context.Background(), &Input{URL: srv.URL, Status: "failed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestRunRejectsEmptyURL(t *testing.T) {
	m := New()
	defer m.Close()

	_, err := m.Run(context.Background(), &Input{Status: "passed"})
	assert.Error(t, err)
}
