package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"roomchat/internal/call"
	"roomchat/internal/constants"
	"roomchat/internal/errors"
	"roomchat/internal/media"
	"roomchat/internal/metrics"
	"roomchat/internal/models"
	"roomchat/internal/room"
	"roomchat/internal/settings"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server   *Server
	session  *room.Session
	registry *metrics.Registry
}

func newTestEnv(t *testing.T, devices media.Devices) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := metrics.NewRegistry()
	machine := call.NewMachine(media.NewController(devices, logger), logger, registry)
	session := room.NewSession(machine, logger)
	t.Cleanup(session.EndCall)

	server := NewServer(session, settings.NewAPIBaseURL(settings.NewMemory(), ""), registry, models.ServerConfig{Port: 0}, logger)
	return &testEnv{server: server, session: session, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.server.router.ServeHTTP(w, req)
	return w
}

func decodeAction(t *testing.T, w *httptest.ResponseRecorder) actionResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp actionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errors.HTTPErrorResponse {
	t.Helper()
	var resp errors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) join(t *testing.T, mode models.RoomMode) room.Snapshot {
	t.Helper()
	resp := decodeAction(t, e.do(t, http.MethodPost, "/join", joinRequest{DisplayName: "Ava", RoomID: "ops", Mode: mode}))
	return resp.State
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["joined"])
	assert.Equal(t, "idle", body["call"])
}

func TestJoinAndState(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))

	state := env.join(t, models.RoomModeGroup)
	assert.True(t, state.Room.Joined)
	assert.Equal(t, "Group Room: ops", state.Room.Title)
	assert.NotEmpty(t, state.Messages)

	w := env.do(t, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap room.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "Ava", snap.Room.DisplayName)
}

func TestMutationsBeforeJoinAreNotApplied(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))

	resp := decodeAction(t, env.do(t, http.MethodPost, "/send", textRequest{Text: strPtr("hello")}))
	assert.False(t, resp.Applied)
}

func strPtr(s string) *string { return &s }

func TestSendEditDeleteFlow(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	before := len(env.join(t, models.RoomModeDirect).Messages)

	decodeAction(t, env.do(t, http.MethodPost, "/draft", textRequest{Text: strPtr("draft text")}))
	resp := decodeAction(t, env.do(t, http.MethodPost, "/send", nil))
	require.True(t, resp.Applied)
	require.Len(t, resp.State.Messages, before+1)

	sent := resp.State.Messages[len(resp.State.Messages)-1]
	assert.Equal(t, "draft text", sent.Text)
	assert.Empty(t, resp.State.Composer.Draft)

	path := "/messages/" + itoa(sent.ID)
	resp = decodeAction(t, env.do(t, http.MethodPost, path+"/edit", textRequest{Text: strPtr("edited")}))
	assert.True(t, resp.Applied)
	last := resp.State.Messages[len(resp.State.Messages)-1]
	assert.Equal(t, "edited", last.Text)
	assert.True(t, last.Edited)

	resp = decodeAction(t, env.do(t, http.MethodPost, path+"/like", nil))
	assert.True(t, resp.Applied)

	resp = decodeAction(t, env.do(t, http.MethodDelete, path, nil))
	assert.True(t, resp.Applied)
	assert.Len(t, resp.State.Messages, before)

	resp = decodeAction(t, env.do(t, http.MethodDelete, path, nil))
	assert.False(t, resp.Applied)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestReplyAndSearch(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	state := env.join(t, models.RoomModeDirect)
	first := state.Messages[0]

	resp := decodeAction(t, env.do(t, http.MethodPost, "/messages/"+itoa(first.ID)+"/reply", nil))
	require.True(t, resp.Applied)
	require.NotNil(t, resp.State.Composer.ReplyTo)
	assert.NotEmpty(t, resp.State.Composer.ReplyLabel)

	resp = decodeAction(t, env.do(t, http.MethodDelete, "/reply", nil))
	assert.Nil(t, resp.State.Composer.ReplyTo)

	resp = decodeAction(t, env.do(t, http.MethodPost, "/search", searchRequest{Query: "zzz-no-match"}))
	assert.Empty(t, resp.State.Visible)
	assert.NotEmpty(t, resp.State.Messages)
}

func TestEditIDValidation(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	env.join(t, models.RoomModeDirect)

	w := env.do(t, http.MethodPost, "/messages/1/edit", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrCodeValidationFailed, decodeError(t, w).Error.Code)

	w = env.do(t, http.MethodPost, "/messages/abc/like", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidBody(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))

	req := httptest.NewRequest(http.MethodPost, "/join", strings.NewReader("{"))
	w := httptest.NewRecorder()
	env.server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, errors.ErrCodeInvalidInput, resp.Error.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestPickFiles(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	env.join(t, models.RoomModeDirect)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	resp := decodeAction(t, env.do(t, http.MethodPost, "/attachments", pickFilesRequest{
		Files: []fileRequest{{Name: "photo.png", Size: 2150400}},
		Paths: []string{path},
	}))
	require.True(t, resp.Applied)
	require.Len(t, resp.State.Composer.Pending, 2)
	assert.Equal(t, "2.1 MB", resp.State.Composer.Pending[0].SizeLabel)
	assert.Equal(t, "image/png", resp.State.Composer.Pending[0].Kind)
	assert.Equal(t, "notes.txt", resp.State.Composer.Pending[1].Name)
	assert.Equal(t, "5 B", resp.State.Composer.Pending[1].SizeLabel)

	id := resp.State.Composer.Pending[0].ID
	resp = decodeAction(t, env.do(t, http.MethodDelete, "/attachments/"+itoa(id), nil))
	assert.True(t, resp.Applied)
	assert.Len(t, resp.State.Composer.Pending, 1)
}

func TestPickFiles_RejectsBadPaths(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	env.join(t, models.RoomModeDirect)

	w := env.do(t, http.MethodPost, "/attachments", pickFilesRequest{Paths: []string{"../../etc/passwd"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/attachments", pickFilesRequest{Paths: []string{filepath.Join(t.TempDir(), "missing")}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body errors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrCodeNotFound, body.Error.Code)
	assert.Equal(t, "File not found: missing", body.Error.Message)
}

func TestCallLifecycle(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	env.join(t, models.RoomModeDirect)

	resp := decodeAction(t, env.do(t, http.MethodPost, "/call/video", nil))
	assert.Equal(t, models.CallModeVideo, resp.State.Call.Mode)
	assert.Equal(t, "Video Call", resp.State.Call.Label)
	require.NotNil(t, resp.State.LocalVideo)

	resp = decodeAction(t, env.do(t, http.MethodPost, "/call/mute", nil))
	assert.True(t, resp.Applied)
	assert.True(t, resp.State.Call.Muted)

	resp = decodeAction(t, env.do(t, http.MethodPost, "/call/camera", nil))
	assert.True(t, resp.Applied)
	assert.False(t, resp.State.Call.CameraOn)

	resp = decodeAction(t, env.do(t, http.MethodPost, "/call/end", nil))
	assert.True(t, resp.Applied)
	assert.Equal(t, models.CallModeIdle, resp.State.Call.Mode)
	assert.False(t, resp.State.Call.Muted)
	assert.True(t, resp.State.Call.CameraOn)

	assert.Equal(t, 1.0, env.registry.CounterValue("call_start_total", map[string]string{"mode": "video"}))
}

func TestCallRequiresJoin(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))

	w := env.do(t, http.MethodPost, "/call/audio", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, errors.ErrCodeInvalidInput, resp.Error.Code)
	assert.Equal(t, "Join a room first.", resp.Error.Message)
}

func TestCallDeviceErrors(t *testing.T) {
	tests := []struct {
		name    string
		devices media.Devices
		status  int
		code    errors.ErrorCode
		message string
	}{
		{
			name:    "no camera",
			devices: media.NewPionDevices(nil, media.WithoutCamera()),
			status:  http.StatusConflict,
			code:    errors.ErrCodeDeviceNotFound,
			message: "No camera or microphone found.",
		},
		{
			name:    "no media api",
			devices: nil,
			status:  http.StatusNotImplemented,
			code:    errors.ErrCodeUnsupported,
			message: "Media devices are not supported on this host.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.devices)
			env.join(t, models.RoomModeDirect)

			w := env.do(t, http.MethodPost, "/call/video", nil)
			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)

			state := env.session.Snapshot()
			assert.Equal(t, models.CallModeIdle, state.Call.Mode)
			assert.Equal(t, tt.message, state.Call.Error)
		})
	}
}

func TestSimulateAndTyping(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	env.join(t, models.RoomModeGroup)

	resp := decodeAction(t, env.do(t, http.MethodPost, "/typing", typingRequest{Typing: true}))
	assert.Equal(t, constants.GroupHostName+" is typing...", resp.State.Typing)

	resp = decodeAction(t, env.do(t, http.MethodPost, "/simulate", nil))
	last := resp.State.Messages[len(resp.State.Messages)-1]
	assert.Equal(t, "Quick event: Ping", last.Text)
	assert.Equal(t, constants.GroupHostName, last.SenderName)
}

func TestLeave(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	env.join(t, models.RoomModeDirect)

	resp := decodeAction(t, env.do(t, http.MethodPost, "/leave", nil))
	assert.True(t, resp.Applied)
	assert.False(t, resp.State.Room.Joined)

	resp = decodeAction(t, env.do(t, http.MethodPost, "/leave", nil))
	assert.False(t, resp.Applied)
}

func TestAPIBaseURLSettings(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))

	w := env.do(t, http.MethodGet, "/settings/api-base-url", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got apiBaseURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, constants.DefaultAPIBaseURL, got.APIBaseURL)

	w = env.do(t, http.MethodPut, "/settings/api-base-url", apiBaseURLRequest{Value: "  http://api.test:9000 "})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "http://api.test:9000", got.APIBaseURL)
	assert.Equal(t, "Saved: http://api.test:9000", got.Message)

	// settings survive leaving the room
	env.do(t, http.MethodPost, "/leave", nil)
	w = env.do(t, http.MethodGet, "/settings/api-base-url", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "http://api.test:9000", got.APIBaseURL)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	env.do(t, http.MethodGet, "/health", nil)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	key := metrics.Key("http_requests_total", map[string]string{"method": "GET", "route": "/health", "status_code": "200"})
	assert.Contains(t, snap.Counters, key)
}

func TestWebSocketPushesSnapshots(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))
	ts := httptest.NewServer(env.server.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	read := func() room.Snapshot {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var snap room.Snapshot
		require.NoError(t, json.Unmarshal(data, &snap))
		return snap
	}

	initial := read()
	assert.False(t, initial.Room.Joined)

	env.session.Join("Ava", "ops", models.RoomModeDirect)
	joined := read()
	assert.True(t, joined.Room.Joined)
	assert.Equal(t, "ops", joined.Room.RoomID)

	require.Eventually(t, func() bool {
		return env.registry.CounterValue("ws_clients_active", nil) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		return env.registry.CounterValue("ws_clients_active", nil) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInputValidation(t *testing.T) {
	env := newTestEnv(t, media.NewPionDevices(nil))

	w := env.do(t, http.MethodPost, "/join", joinRequest{DisplayName: strings.Repeat("a", 100)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrCodeValidationFailed, decodeError(t, w).Error.Code)
	assert.False(t, env.session.Joined())

	env.join(t, models.RoomModeDirect)

	w = env.do(t, http.MethodPost, "/send", textRequest{Text: strPtr(strings.Repeat("x", 5000))})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/settings/api-base-url", apiBaseURLRequest{Value: "ftp://files"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/join", map[string]string{"unexpected": "field"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShutdownBeforeStart(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, env.server.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- env.server.Start() }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "server kept running after shutdown")
	}
}
