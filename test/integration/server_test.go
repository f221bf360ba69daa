// Package integration exercises a fully wired GoRelay server over real HTTP
// and WebSocket connections.
package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/test/testhelpers"
)

func TestHealthEndpoint(t *testing.T) {
	srv := testhelpers.StartRelayServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, srv.URL+"/")
	defer func() { _ = resp.Body.Close() }()

	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/plain")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if string(body) != "GoRelay server is running!" {
		t.Errorf("Unexpected health body %q", body)
	}
}

func TestStatsEndpointTracksRegistry(t *testing.T) {
	srv := testhelpers.StartRelayServer(t, nil)

	readStats := func() relay.Stats {
		resp := testhelpers.MakeRequest(t, http.MethodGet, srv.URL+"/stats")
		defer func() { _ = resp.Body.Close() }()
		testhelpers.AssertStatusCode(t, resp, http.StatusOK)
		testhelpers.AssertContentType(t, resp, "application/json")

		var stats relay.Stats
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			t.Fatalf("Failed to decode stats: %v", err)
		}
		return stats
	}

	if got := readStats(); got != (relay.Stats{}) {
		t.Fatalf("Expected empty stats, got %+v", got)
	}

	alice := srv.Connect(t)
	bob := srv.Connect(t)
	srv.WaitForClients(t, 2)
	testhelpers.CreateRoom(t, alice, "alpha")
	testhelpers.CreateRoom(t, bob, "beta")

	if got := readStats(); got != (relay.Stats{Rooms: 2, Clients: 2}) {
		t.Errorf("Expected 2 rooms and 2 clients, got %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testhelpers.StartRelayServer(t, nil)

	conn := srv.Connect(t)
	srv.WaitForClients(t, 1)
	testhelpers.CreateRoom(t, conn, "lobby")

	resp := testhelpers.MakeRequest(t, http.MethodGet, srv.URL+"/metrics")
	defer func() { _ = resp.Body.Close() }()
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		"gorelay_rooms 1",
		"gorelay_clients 1",
		`gorelay_connections_total{event="opened"} 1`,
		`gorelay_commands_total{command="create_room"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestTestPageEndpoint(t *testing.T) {
	srv := testhelpers.StartRelayServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, srv.URL+"/test")
	defer func() { _ = resp.Body.Close() }()

	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/html")
}

func TestWebSocketEndpointRejectsPlainHTTP(t *testing.T) {
	srv := testhelpers.StartRelayServer(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		resp := testhelpers.MakeRequest(t, method, srv.URL+"/ws")
		testhelpers.AssertStatusCode(t, resp, http.StatusMethodNotAllowed)
		_ = resp.Body.Close()
	}

	// A GET without upgrade headers reaches the upgrader and fails there.
	resp := testhelpers.MakeRequest(t, http.MethodGet, srv.URL+"/ws")
	defer func() { _ = resp.Body.Close() }()
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
}
