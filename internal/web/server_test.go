package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/vha/internal/config"
	"github.com/medassist/vha/internal/model"
	"github.com/medassist/vha/internal/pipeline"
	"github.com/medassist/vha/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	pipe, err := pipeline.Build(context.Background(), config.Default(), store)
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(pipe, store).Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestChatEndpoint(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"session_id": "s1",
		"message":    "I have chest pain and shortness of breath",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload model.Payload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "s1", payload.SessionID)
	assert.Equal(t, model.TriageHigh, payload.TriageLevel)
	assert.Contains(t, payload.Message, "911")

	state, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.TotalTurns)
}

func TestChatAssignsSessionWhenMissing(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "mild headache"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload model.Payload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotEmpty(t, payload.SessionID)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	for _, body := range []map[string]string{
		{"session_id": "s1"},
		{"session_id": "s1", "message": "   "},
	} {
		resp := postJSON(t, srv.URL+"/api/chat", body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestChatRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewSessionEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/session/new", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out["session_id"])
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"session_id": "s1",
		"message":    "mild rash for a day",
	})
	resp.Body.Close()

	histResp, err := http.Get(srv.URL + "/api/sessions/s1/history")
	require.NoError(t, err)
	defer histResp.Body.Close()
	require.Equal(t, http.StatusOK, histResp.StatusCode)

	var state model.SessionState
	require.NoError(t, json.NewDecoder(histResp.Body).Decode(&state))
	assert.Equal(t, "s1", state.SessionID)
	require.Len(t, state.History, 1)
	assert.Equal(t, "mild rash for a day", state.History[0].UserInput)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
}
