package server

import (
	"encoding/json"
	"net/http"

	"daq-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *DisplayServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			// Send initial state on connect
			s.stateMutex.RLock()
			if s.latestFrame != nil {
				client.send <- s.latestFrame
			}
			s.stateMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case frame := <-s.broadcast:
			// Update state and broadcast
			s.stateMutex.Lock()
			s.latestFrame = frame
			s.stateMutex.Unlock()

			// Broadcast to all clients
			for client := range s.clients {
				select {
				case client.send <- frame:
					// Frame sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// UpdateFrame - updates internal state without broadcasting
func (s *DisplayServer) UpdateFrame(frame *models.MDisplayFrame) {
	if frame == nil {
		return
	}

	s.stateMutex.Lock()
	s.latestFrame = frame
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------

// Broadcast - queues one frame for all connected clients
func (s *DisplayServer) Broadcast(frame *models.MDisplayFrame) {
	if frame == nil {
		return
	}

	// Non-blocking send: the display gate must never wait on rendering
	select {
	case s.broadcast <- frame:
	default:
		s.Logger.Debug("Broadcast queue full, frame dropped")
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MDisplayFrame, 64),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *DisplayServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.setChannels(cmd.Channels)

	s.stateMutex.RLock()
	response := filterFrame(s.latestFrame, cmd.Channels)
	s.stateMutex.RUnlock()
	if response != nil {
		response.Type = "INITIAL"
	}

	// Use select to avoid blocking if client's send buffer is full
	select {
	case client.send <- response:
	default:
	}
}

// -----------------------------------------------------------------------------
// Response Filtering
// -----------------------------------------------------------------------------

// filterFrame restricts the frame trace to the subscribed channels. An empty
// subscription means all channels.
func filterFrame(frame *models.MDisplayFrame, channels []string) *models.MDisplayFrame {
	if frame == nil {
		return nil
	}
	if len(channels) == 0 || frame.Trace == nil {
		out := *frame
		return &out
	}

	wanted := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		wanted[ch] = struct{}{}
	}

	trace := &models.MTrace{Timestamps: frame.Trace.Timestamps}
	for i, name := range frame.Trace.Channels {
		if _, ok := wanted[name]; !ok {
			continue
		}
		trace.Channels = append(trace.Channels, name)
		trace.Values = append(trace.Values, frame.Trace.Values[i])
	}

	out := *frame
	out.Trace = trace
	return &out
}
