package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/events"
	"huddle/internal/models"
	"huddle/internal/realtime"
	"huddle/internal/storage/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*httptest.Server
	hub *realtime.Hub
}

func newTestServer(t *testing.T, staticDir string) *testServer {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "huddle.db"), nil)
	require.NoError(t, err)

	hub := realtime.NewHub(nil)
	srv := httptest.NewServer(New(store, hub, nil, staticDir).Engine())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		_ = store.Close()
	})
	return &testServer{Server: srv, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = strings.NewReader(raw)
		} else {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(b)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// listen opens a realtime connection and drops the chatLog hydration frame.
func (s *testServer) listen(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/socket", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, ok := readEvent(t, conn).(events.ChatLog)
	require.True(t, ok)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	e, err := events.Decode(frame)
	require.NoError(t, err)
	return e
}

func readRaw(t *testing.T, conn *websocket.Conn) events.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env events.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestCreateTaskBroadcastsIdenticalBody(t *testing.T) {
	srv := newTestServer(t, "")
	a, b := srv.listen(t), srv.listen(t)
	require.Eventually(t, func() bool { return srv.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	resp, body := srv.do(t, http.MethodPost, "/tasks", map[string]string{"task": "buy milk"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Task
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.JSONEq(t, `{"id":"`+created.ID+`","task":"buy milk","completed":false}`, string(body))

	for _, conn := range []*websocket.Conn{a, b} {
		env := readRaw(t, conn)
		assert.Equal(t, events.NameTaskAdded, env.Event)
		assert.JSONEq(t, string(body), string(env.Data))
	}

	resp, body = srv.do(t, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tasks []models.Task
	require.NoError(t, json.Unmarshal(body, &tasks))
	assert.Equal(t, []models.Task{created}, tasks)
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, "")

	resp, body := srv.do(t, http.MethodPost, "/tasks", map[string]string{"task": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "task is required")

	resp, _ = srv.do(t, http.MethodPost, "/tasks", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEmptyListIsArray(t *testing.T) {
	srv := newTestServer(t, "")
	resp, body := srv.do(t, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestUpdateTask(t *testing.T) {
	srv := newTestServer(t, "")
	_, body := srv.do(t, http.MethodPost, "/tasks", map[string]string{"task": "buy milk"})
	var created models.Task
	require.NoError(t, json.Unmarshal(body, &created))

	conn := srv.listen(t)
	// The browser client sends the whole task back with the flag flipped.
	resp, body := srv.do(t, http.MethodPatch, "/tasks/"+created.ID, map[string]any{
		"_id": created.ID, "task": created.Task, "completed": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Task
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.True(t, updated.Completed)

	assert.Equal(t, events.TaskUpdated{Task: updated}, readEvent(t, conn))

	resp, _ = srv.do(t, http.MethodPatch, "/tasks/missing", map[string]any{"completed": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPatch, "/tasks/"+created.ID, map[string]any{"task": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteTask(t *testing.T) {
	srv := newTestServer(t, "")
	_, body := srv.do(t, http.MethodPost, "/tasks", map[string]string{"task": "buy milk"})
	var created models.Task
	require.NoError(t, json.Unmarshal(body, &created))

	conn := srv.listen(t)
	resp, body := srv.do(t, http.MethodDelete, "/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Task deleted successfully!"}`, string(body))
	assert.Equal(t, events.TaskDeleted{Task: created}, readEvent(t, conn))

	resp, body = srv.do(t, http.MethodDelete, "/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Task not found"}`, string(body))
}

func TestHealthReportsClients(t *testing.T) {
	srv := newTestServer(t, "")
	srv.listen(t)
	require.Eventually(t, func() bool { return srv.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, body := srv.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","clients":1}`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.do(t, http.MethodPost, "/tasks", map[string]string{"task": "buy milk"})

	resp, body := srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "huddle_mutations_total")
}

func TestPreflightAllowsAnyOrigin(t *testing.T) {
	srv := newTestServer(t, "")
	resp, _ := srv.do(t, http.MethodOptions, "/tasks", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticFrontendFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>huddle</h1>"), 0o644))
	srv := newTestServer(t, dir)

	resp, body := srv.do(t, http.MethodGet, "/board", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "huddle")

	resp, body = srv.do(t, http.MethodGet, "/tasks/unknown/route", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "endpoint not found")
}

func TestMalformedBodyIsAClientError(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "huddle.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	engine := New(store, realtime.NewHub(nil), logger, "").Engine()

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader("{not json")),
		httptest.NewRequest(http.MethodPatch, "/tasks/1", strings.NewReader(`{"completed":"yes"}`)),
	} {
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid request body")
	}
	assert.NotContains(t, logs.String(), "request failed")
}
