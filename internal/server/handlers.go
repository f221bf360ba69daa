// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, registry stats, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/metrics"
	"github.com/Tyrowin/gorelay/internal/relay"
)

// App bundles the registry with the HTTP-facing pieces that feed it.
type App struct {
	cfg      Config
	registry *relay.Registry
	metrics  *metrics.Metrics
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewApp wires a registry and its metrics to the WebSocket endpoint. A nil
// logger uses slog.Default.
func NewApp(cfg Config, registry *relay.Registry, m *metrics.Metrics, logger *slog.Logger) *App {
	cfg = cfg.Sanitize()
	if logger == nil {
		logger = slog.Default()
	}
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &App{
		cfg:      cfg,
		registry: registry,
		metrics:  m,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// Registry returns the registry served by the app.
func (a *App) Registry() *relay.Registry {
	return a.registry
}

// WebSocketHandler upgrades the request and hands the connection to the
// registry for the lifetime of the socket.
func (a *App) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	client := NewClient(conn, a.cfg, a.log, r.RemoteAddr)
	client.Start()

	// Read errors are logged by the client itself.
	if err := a.registry.Serve(r.Context(), client); errors.Is(err, relay.ErrRegistryClosed) {
		a.log.Info("rejected connection during shutdown", "addr", r.RemoteAddr)
	}
}

// StatsHandler reports live room and connection counts as JSON.
func (a *App) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.registry.Stats()); err != nil {
		a.log.Warn("write stats response", "err", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GoRelay server is running!")
}

// TestPageHandler serves an HTML page for exercising the relay protocol by
// hand: create, join and leave rooms, list them, and send messages.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>GoRelay WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 260px; padding: 5px; margin-right: 10px; }
        select, button { padding: 5px 10px; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        .error { color: #721c24; }
        .server { color: gray; }
    </style>
</head>
<body>
    <h1>GoRelay WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>
    <button id="connectButton" onclick="toggleConnection()">Connect</button>

    <div style="margin-top: 10px">
        <select id="command">
            <option value="create_room">create_room</option>
            <option value="join_room">join_room</option>
            <option value="leave_room">leave_room</option>
            <option value="list_rooms">list_rooms</option>
            <option value="message_room">message_room</option>
            <option value="message_client">message_client</option>
        </select>
        <input type="text" id="info" placeholder="room name, room id or client id">
        <input type="text" id="message" placeholder="message">
        <button id="sendButton" onclick="sendCommand()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');

        function addLine(text, cls) {
            const line = document.createElement('div');
            if (cls) { line.className = cls; }
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { addLine('connected', 'server'); updateStatus(true); };
            ws.onclose = function() { addLine('connection closed', 'server'); updateStatus(false); ws = null; };
            ws.onerror = function() { addLine('connection error', 'error'); };
            ws.onmessage = function(event) {
                const env = JSON.parse(event.data);
                const who = env.server_message ? 'server' : env.sender;
                addLine('[' + who + '] ' + env.message, env.is_exception ? 'error' : (env.server_message ? 'server' : ''));
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) { ws.close(); } else { connect(); }
        }

        function sendCommand() {
            if (!ws || ws.readyState !== WebSocket.OPEN) { return; }
            const info = document.getElementById('info').value;
            const message = document.getElementById('message').value;
            const frame = {
                command: document.getElementById('command').value,
                info: info === '' ? null : info,
                message: message === '' ? null : message
            };
            ws.send(JSON.stringify(frame));
            addLine('> ' + JSON.stringify(frame));
        }
    </script>
</body>
</html>`
