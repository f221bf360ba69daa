package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/internal/server"
	"github.com/Tyrowin/gorelay/test/testhelpers"
)

func TestShutdownClosesActiveConnections(t *testing.T) {
	srv := testhelpers.StartRelayServer(t, nil)

	alice := srv.Connect(t)
	bob := srv.Connect(t)
	roomID, _ := testhelpers.CreateRoom(t, alice, "lobby")
	join(t, bob, roomID)

	// The httptest listener stays up; App.Shutdown drains the registry.
	idle := server.CreateServer("127.0.0.1:0", http.NewServeMux())
	if err := srv.App.Shutdown(idle, 5*time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		if err := conn.SetReadDeadline(time.Now().Add(testhelpers.ReadTimeout)); err != nil {
			t.Fatalf("Failed to set deadline: %v", err)
		}
		for {
			_, _, err := conn.ReadMessage()
			if err == nil {
				// Departure notices may arrive before the close frame.
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("%s: expected normal closure, got %v", name, err)
			}
			break
		}
	}

	if stats := srv.Registry.Stats(); stats != (relay.Stats{}) {
		t.Errorf("Expected empty registry after shutdown, got %+v", stats)
	}
}

func TestShutdownRejectsNewConnections(t *testing.T) {
	srv := testhelpers.StartRelayServer(t, nil)

	if err := srv.Registry.Shutdown(t.Context()); err != nil {
		t.Fatalf("Registry shutdown failed: %v", err)
	}

	conn, err := testhelpers.ConnectWebSocket(srv.WebSocketURL(), testhelpers.DefaultOrigin)
	if err != nil {
		t.Fatalf("Upgrade should still succeed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(testhelpers.ReadTimeout)); err != nil {
		t.Fatalf("Failed to set deadline: %v", err)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected immediate normal closure, got %v", err)
	}
	if stats := srv.Registry.Stats(); stats.Clients != 0 {
		t.Errorf("Expected no registered clients, got %+v", stats)
	}
}

func TestStartServerReturnsNilAfterShutdown(t *testing.T) {
	srv := testhelpers.StartRelayServer(t, nil)
	httpServer := server.CreateServer("127.0.0.1:0", server.SetupRoutes(srv.App))

	done := make(chan error, 1)
	go func() {
		done <- srv.App.StartServer(httpServer)
	}()

	time.Sleep(50 * time.Millisecond)
	if err := srv.App.Shutdown(httpServer, 5*time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil from StartServer after shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StartServer did not return after shutdown")
	}
}
