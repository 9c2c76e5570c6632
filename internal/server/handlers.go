package server

import (
	"fmt"
	"net/http"

	"github.com/Tyrowin/roomrelay/internal/chat"
)

// ServeWS upgrades a GET request to a WebSocket session. A credential sent
// with the request is verified before the upgrade and a bad one is answered
// with 401; otherwise the first frame must be an authenticate event. The
// session is activated only after the credential is verified.
func (s *Supervisor) ServeWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	lastRoomID := r.URL.Query().Get("lastRoomId")

	var identity chat.Identity
	token, supplied, err := requestCredential(r)
	if err == nil && supplied {
		identity, err = s.verifier.Verify(token)
	}
	if err != nil {
		s.log.Warn("WebSocket upgrade rejected", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)

	if !supplied {
		var frameRoomID string
		identity, frameRoomID, err = s.awaitAuthenticate(conn)
		if err != nil {
			s.rejectHandshake(conn, r, err)
			return
		}
		if frameRoomID != "" {
			lastRoomID = frameRoomID
		}
	}

	if _, err := s.Activate(conn, identity, r.RemoteAddr, lastRoomID); err != nil {
		s.rejectHandshake(conn, r, err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func (s *Supervisor) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomrelay server is running! Active sessions: %d, online users: %d",
		s.SessionCount(), s.presence.OnlineUsers())
}

// TestPageHandler serves an HTML page for exercising the WebSocket protocol by
// hand: paste a token, join a room and exchange messages.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>roomrelay WebSocket Test</title>
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
        input[type="text"] { width: 300px; padding: 5px; margin: 0 10px 5px 0; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>roomrelay WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="tokenInput" placeholder="JWT from /api/auth/login">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <input type="text" id="roomInput" placeholder="Room id" disabled>
        <button id="joinButton" onclick="joinRoom()" disabled>Join</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        let currentRoom = localStorage.getItem('lastRoomId') || '';
        const messagesDiv = document.getElementById('messages');
        const tokenInput = document.getElementById('tokenInput');
        const roomInput = document.getElementById('roomInput');
        const messageInput = document.getElementById('messageInput');
        const statusDiv = document.getElementById('status');
        roomInput.value = currentRoom;

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.margin = '5px 0';
            line.style.color = color || 'gray';
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function setConnected(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            for (const id of ['roomInput', 'joinButton', 'messageInput', 'sendButton']) {
                document.getElementById(id).disabled = !connected;
            }
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        function emit(event, data) {
            ws.send(JSON.stringify({ event: event, data: data }));
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                emit('authenticate', { token: tokenInput.value.trim(), lastRoomId: currentRoom });
                setConnected(true);
            };

            ws.onmessage = function(event) {
                const env = JSON.parse(event.data);
                switch (env.event) {
                case 'room-joined':
                    currentRoom = env.data.roomId;
                    localStorage.setItem('lastRoomId', currentRoom);
                    addLine('Joined room ' + currentRoom);
                    break;
                case 'new-message':
                    addLine(env.data.username + ': ' + (env.data.content || env.data.fileUrl), 'green');
                    break;
                case 'user-typing':
                    addLine(env.data.username + ' is typing...');
                    break;
                case 'error':
                    addLine('Error: ' + env.data.message, 'red');
                    break;
                }
            };

            ws.onclose = function(event) {
                addLine('Connection closed (' + event.code + ' ' + event.reason + ')');
                setConnected(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function joinRoom() {
            const roomId = roomInput.value.trim();
            if (roomId) {
                emit('join-room', { roomId: roomId });
            }
        }

        function sendMessage() {
            const content = messageInput.value.trim();
            if (content && currentRoom) {
                emit('send-message', { roomId: currentRoom, content: content });
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('input', function() {
            if (ws && currentRoom) {
                emit('typing', { roomId: currentRoom });
            }
        });
        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
