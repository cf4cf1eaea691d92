package server

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chase-Garrett/towhee/internal/auth"
	"github.com/Chase-Garrett/towhee/internal/config"
	"github.com/Chase-Garrett/towhee/internal/protocol"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := &config.Config{
		Addr:          ":0",
		DBPath:        filepath.Join(t.TempDir(), "relay.db"),
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		LookupTimeout: time.Second,
		ReadLimit:     32768,
		SendBuffer:    16,
	}
	s := New(cfg)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if token != "" {
		wsURL += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt protocol.Event
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func waitForConnections(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Registry().Len() != want {
		if time.Now().After(deadline) {
			t.Fatalf("registry never reached %d connections", want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRelayEndToEnd(t *testing.T) {
	s, ts := newTestServer(t)

	sender := dialWS(t, ts, "")
	receiver := dialWS(t, ts, "")
	waitForConnections(t, s, 2)

	payload, _ := json.Marshal(map[string]string{"taskId": "t1", "status": "done"})
	require.NoError(t, sender.WriteJSON(protocol.Event{Type: protocol.TaskUpdate, Payload: payload}))

	evt := readEvent(t, receiver)
	assert.Equal(t, protocol.TaskUpdated, evt.Type)

	var data map[string]string
	require.NoError(t, json.Unmarshal(evt.Payload, &data))
	assert.Equal(t, "t1", data["taskId"])

	// the sender does not hear its own broadcast
	sender.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var echo protocol.Event
	assert.Error(t, sender.ReadJSON(&echo))
}

func TestRelayGuestTypingIndicator(t *testing.T) {
	s, ts := newTestServer(t)

	guest := dialWS(t, ts, "")
	receiver := dialWS(t, ts, "")
	waitForConnections(t, s, 2)

	payload, _ := json.Marshal(map[string]string{"taskId": "t1"})
	require.NoError(t, guest.WriteJSON(protocol.Event{Type: protocol.TypingStart, Payload: payload}))

	evt := readEvent(t, receiver)
	require.Equal(t, protocol.TypingStarted, evt.Type)

	var tagged protocol.SenderTagged
	require.NoError(t, json.Unmarshal(evt.Payload, &tagged))
	assert.True(t, strings.HasPrefix(tagged.UserID, "guest_"), "got %q", tagged.UserID)
}

func TestRelayVerifiedIdentityTagging(t *testing.T) {
	s, ts := newTestServer(t)
	require.NotNil(t, s.users)
	require.NoError(t, s.users.CreateUser("u-42", "Ada Lovelace", "hunter22"))

	token, err := auth.GenerateToken([]byte("test-secret"), "u-42", time.Hour)
	require.NoError(t, err)

	verified := dialWS(t, ts, token)
	receiver := dialWS(t, ts, "")
	waitForConnections(t, s, 2)

	payload, _ := json.Marshal(map[string]string{"taskId": "t1"})
	require.NoError(t, verified.WriteJSON(protocol.Event{Type: protocol.TypingStart, Payload: payload}))

	evt := readEvent(t, receiver)
	var tagged protocol.SenderTagged
	require.NoError(t, json.Unmarshal(evt.Payload, &tagged))
	assert.Equal(t, "u-42", tagged.UserID)
}

func TestRelayInvalidTokenStillConnects(t *testing.T) {
	s, ts := newTestServer(t)

	dialWS(t, ts, "definitely-not-a-jwt")
	waitForConnections(t, s, 1)
}

func TestGatewayPushReachesWebsocket(t *testing.T) {
	s, ts := newTestServer(t)

	token, err := auth.GenerateToken([]byte("test-secret"), "u-7", time.Hour)
	require.NoError(t, err)
	conn := dialWS(t, ts, token)
	waitForConnections(t, s, 1)

	delivered := s.Gateway().NotifyUser("u-7", json.RawMessage(`{"body":"reminder"}`))
	assert.Equal(t, 1, delivered)

	evt := readEvent(t, conn)
	assert.Equal(t, protocol.NotificationReceived, evt.Type)
}

func TestRelayDisconnectRemovesConnection(t *testing.T) {
	s, ts := newTestServer(t)

	conn := dialWS(t, ts, "")
	waitForConnections(t, s, 1)

	conn.Close()
	waitForConnections(t, s, 0)
}

func TestRelayUnknownEventIgnoredOverWire(t *testing.T) {
	s, ts := newTestServer(t)

	sender := dialWS(t, ts, "")
	receiver := dialWS(t, ts, "")
	waitForConnections(t, s, 2)

	require.NoError(t, sender.WriteJSON(protocol.Event{Type: "task:delete"}))
	payload, _ := json.Marshal(map[string]string{"taskId": "t1"})
	require.NoError(t, sender.WriteJSON(protocol.Event{Type: protocol.TaskUpdate, Payload: payload}))

	// only the recognized event comes through, in order
	evt := readEvent(t, receiver)
	assert.Equal(t, protocol.TaskUpdated, evt.Type)
}
