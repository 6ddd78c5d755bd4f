// Package server exposes HTTP handlers, including the WebSocket transport,
// health checks, a directory snapshot, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Tyrowin/gochat-relay/internal/protocol"
	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades requests to WebSocket and runs the presence
// handshake on the new connection.
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	hs           handshaker
	maxFrameSize int64
	logger       *slog.Logger
}

// NewWebSocketHandler builds the /ws handler for hub.
func NewWebSocketHandler(hub *Hub, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	policy := newOriginPolicy(hub.cfg.AllowedOrigins, logger)
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
		hs: handshaker{
			hub:     hub,
			timeout: hub.cfg.HandshakeTimeout,
			logger:  logger,
		},
		maxFrameSize: hub.cfg.MaxFrameSize,
		logger:       logger,
	}
}

// ServeHTTP validates that the request uses the GET method, upgrades the
// connection and blocks for the handshake. The hub owns the connection
// afterwards.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	t := newWSTransport(conn, h.maxFrameSize)
	if _, err := h.hs.admit(r.Context(), t); err != nil {
		h.logger.Info("connection not admitted", "addr", t.RemoteAddr(), "error", err)
		_ = t.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relay server is running!")
}

// ContactsHandler serves the current directory names as a contact list frame.
func ContactsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := hub.Contacts(r.Context())
		if err != nil {
			http.Error(w, "directory unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(protocol.ContactList(names)); err != nil {
			hub.logger.Warn("error writing contacts response", "error", err)
		}
	}
}

// TestPageHandler serves an HTML page that logs in over /ws, shows the contact
// list, and sends msg, create_chat and join frames.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		slog.Warn("error writing HTML response", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Relay WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #contacts { border: 1px solid #ccc; min-height: 60px; padding: 5px; }
        input[type="text"], input[type="password"] { width: 160px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Relay WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="login" placeholder="Login">
        <input type="password" id="password" placeholder="Password">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>

    <h3>Contacts</h3>
    <div id="contacts"></div>

    <div>
        <input type="text" id="to" placeholder="To (user or room)">
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>
    <div>
        <input type="text" id="room" placeholder="Room name">
        <button onclick="sendAction('create_chat')">Create chat</button>
        <button onclick="sendAction('join')">Join chat</button>
        <button onclick="sendAction('update_contacts')">Update</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        let token = null;
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');

        function now() {
            return new Date().toISOString().replace('T', ' ').substring(0, 19);
        }

        function addLine(text) {
            const line = document.createElement('div');
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function send(frame) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(frame));
            }
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = function() {
                send({
                    action: 'presence',
                    time: now(),
                    login: document.getElementById('login').value,
                    password: document.getElementById('password').value
                });
            };
            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                if (frame.token && frame.response === 200) {
                    token = frame.token;
                    updateStatus(true);
                    addLine('Logged in');
                } else if ('action' in frame) {
                    addLine(frame.time + ': ' + frame.from + '>' + frame.message);
                } else if ('response' in frame) {
                    addLine('Error ' + frame.response + ': ' + (frame.error || frame.alert));
                } else if ('contacts' in frame) {
                    document.getElementById('contacts').textContent = frame.contacts.join(', ');
                }
            };
            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false);
                ws = null;
                token = null;
            };
        }

        function toggleConnection() {
            if (ws) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            send({
                action: 'msg',
                time: now(),
                token: token,
                to: document.getElementById('to').value,
                from: document.getElementById('login').value,
                message: input.value
            });
            input.value = '';
        }

        function sendAction(action) {
            send({
                action: action,
                time: now(),
                token: token,
                room: document.getElementById('room').value
            });
        }
    </script>
</body>
</html>`
