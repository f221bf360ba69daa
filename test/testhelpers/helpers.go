// Package testhelpers provides common utilities for the GoRelay integration
// tests: starting a fully wired relay server, dialing it, and speaking the
// command protocol from the client side.
package testhelpers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/metrics"
	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/internal/server"
)

// DefaultOrigin is the origin allowed by the default configuration.
const DefaultOrigin = "http://localhost:8080"

// ReadTimeout bounds every envelope read made through this package.
const ReadTimeout = 2 * time.Second

// TestServer is a running relay server backed by httptest.
type TestServer struct {
	*httptest.Server
	App      *server.App
	Registry *relay.Registry
	Metrics  *metrics.Metrics
}

// StartRelayServer starts a relay server with the default configuration,
// optionally adjusted by configure. It is closed when the test ends.
func StartRelayServer(t *testing.T, configure func(*server.Config)) *TestServer {
	t.Helper()

	cfg := server.NewConfig()
	if configure != nil {
		configure(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	registry := relay.New(relay.WithLogger(logger), relay.WithObserver(m))
	m.Track(registry)

	app := server.NewApp(*cfg, registry, m, logger)
	ts := httptest.NewServer(server.SetupRoutes(app))
	t.Cleanup(ts.Close)

	return &TestServer{Server: ts, App: app, Registry: registry, Metrics: m}
}

// WebSocketURL converts the server's http URL to its ws endpoint.
func (s *TestServer) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// Connect dials the relay with the default origin and closes the connection
// when the test ends.
func (s *TestServer) Connect(t *testing.T) *websocket.Conn {
	t.Helper()

	conn, err := ConnectWebSocket(s.WebSocketURL(), DefaultOrigin)
	if err != nil {
		t.Fatalf("Failed to connect to relay: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// WaitForClients blocks until the registry holds n connections.
func (s *TestServer) WaitForClients(t *testing.T, n int) {
	t.Helper()
	WaitFor(t, func() bool { return s.Registry.Stats().Clients == n },
		"registry to hold %d clients", n)
}

// ConnectWebSocket creates a WebSocket connection sending the given Origin
// header. An empty origin sends none.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	conn, resp, err := DialWebSocket(url, origin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// DialWebSocket is ConnectWebSocket returning the handshake response too.
// The caller owns resp.Body when resp is non-nil.
func DialWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	return dialer.Dial(url, headers)
}

// Str returns a pointer to s for optional frame fields.
func Str(s string) *string {
	return &s
}

type commandFrame struct {
	Command string  `json:"command"`
	Info    *string `json:"info"`
	Message *string `json:"message"`
}

// SendCommand writes one command frame. Nil fields are sent as JSON null.
func SendCommand(conn *websocket.Conn, command string, info, message *string) error {
	return conn.WriteJSON(commandFrame{Command: command, Info: info, Message: message})
}

// MustSendCommand is SendCommand that fails the test on error.
func MustSendCommand(t *testing.T, conn *websocket.Conn, command string, info, message *string) {
	t.Helper()
	if err := SendCommand(conn, command, info, message); err != nil {
		t.Fatalf("Failed to send %s: %v", command, err)
	}
}

// ReadEnvelope reads the next envelope, waiting at most ReadTimeout.
func ReadEnvelope(conn *websocket.Conn) (relay.Envelope, error) {
	var env relay.Envelope
	if err := conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return env, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return env, err
	}
	err = json.Unmarshal(raw, &env)
	return env, err
}

// MustReadEnvelope is ReadEnvelope that fails the test on error.
func MustReadEnvelope(t *testing.T, conn *websocket.Conn) relay.Envelope {
	t.Helper()
	env, err := ReadEnvelope(conn)
	if err != nil {
		t.Fatalf("Failed to read envelope: %v", err)
	}
	return env
}

// AssertNoEnvelope fails the test if anything arrives on conn within wait.
// The connection is unusable for reads afterwards only if a read error other
// than a timeout occurred.
func AssertNoEnvelope(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no envelope, got %s", raw)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// ListRooms sends list_rooms and decodes the listing from the reply.
func ListRooms(t *testing.T, conn *websocket.Conn) []relay.RoomInfo {
	t.Helper()

	MustSendCommand(t, conn, relay.CommandListRooms, nil, nil)
	env := MustReadEnvelope(t, conn)
	if !env.IsServer() || env.IsError {
		t.Fatalf("Expected a server listing, got %+v", env)
	}

	var listing relay.RoomListing
	if err := json.Unmarshal([]byte(env.Body), &listing); err != nil {
		t.Fatalf("Failed to decode listing %q: %v", env.Body, err)
	}
	return listing.Rooms
}

// CreateRoom creates a room called name from conn and returns the new room's
// id together with conn's own connection id, both read back from a listing.
func CreateRoom(t *testing.T, conn *websocket.Conn, name string) (relay.RoomID, relay.ConnectionID) {
	t.Helper()

	MustSendCommand(t, conn, relay.CommandCreateRoom, Str(name), nil)
	for _, room := range ListRooms(t, conn) {
		if room.Name == name && len(room.Clients) == 1 {
			return room.ID, room.Clients[0]
		}
	}
	t.Fatalf("Room %q not found in listing", name)
	return "", ""
}

// WaitFor polls cond until it holds or ReadTimeout elapses.
func WaitFor(t *testing.T, cond func() bool, format string, args ...any) {
	t.Helper()

	deadline := time.Now().Add(ReadTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for "+format, args...)
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
