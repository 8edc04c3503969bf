package server

import (
	"encoding/json"
	"net/http"

	"serialpha/src/acquisition"
	"serialpha/src/export"
	"serialpha/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *ControlServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			// Send initial state on connect
			client.send <- s.initialState()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case r := <-s.reply:
			if _, ok := s.clients[r.client]; ok {
				select {
				case r.client.send <- r.message:
				default:
				}
			}

		case message := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- message:
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

func (s *ControlServer) initialState() *models.MLatestData {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	initial := *s.latestState
	initial.Type = acquisition.TypeInitial
	initial.Message = ""
	return &initial
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// UpdateAllDatas replaces the state served to new clients.
func (s *ControlServer) UpdateAllDatas(data interface{}) {
	state, ok := data.(*models.MLatestData)
	if !ok {
		s.Logger.Info("UpdateAllDatas expected *models.MLatestData, got %T", data)
		return
	}

	s.stateMutex.Lock()
	s.latestState = state
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------

// Broadcast queues a state for every client. It never blocks the caller:
// when the queue is full the update is dropped and the next one supersedes it.
func (s *ControlServer) Broadcast(message interface{}) {
	state, ok := message.(*models.MLatestData)
	if !ok {
		s.Logger.Info("Broadcast expected *models.MLatestData, got %T", message)
		return
	}

	select {
	case <-s.done:
	case s.broadcast <- state:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s update", state.Type)
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

func (s *ControlServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writeUpdates()
	go client.readCommands()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage runs one operator command sent over the websocket.
// Results reach every client through the regular broadcast; failures are
// answered to the sender only.
func (s *ControlServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	var err error
	switch cmd.Command {
	case "add_point":
		_, err = s.ctrl.AddTitrationPoint(cmd.Volume)
	case "select_field":
		err = s.ctrl.SelectField(cmd.Field)
	case "clear":
		s.ctrl.Clear()
	case "export":
		_, err = s.ctrl.ExportNow(export.PrefixManual)
	default:
		s.Logger.Debug("Ignoring unknown client command %q", cmd.Command)
		return
	}
	if err == nil {
		return
	}

	response := s.ctrl.State(acquisition.TypeAlert, err.Error())
	select {
	case s.reply <- clientReply{client: client, message: response}:
	case <-s.done:
	}
}
