package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsSendBuffer     = 32
	wsIdlePingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient adapts one websocket connection to the Socket capability. Sends
// land in a buffered channel; a slow consumer drops messages rather than
// stalling the room.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) Send(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) sendEvent(event ServerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.Send(data)
}

// writePump owns all writes to the connection and pings when idle.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsIdlePingPeriod)
	defer ticker.Stop()
	lastWrite := time.Now()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingPeriod {
				continue
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			lastWrite = time.Now()
		}
	}
}

// serveWS upgrades /ws/rooms/{roomID} and feeds inbound events into the room
// manager. The first event must be join_room with a valid player token.
func serveWS(rm *RoomManager, w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	go client.writePump()

	playerToken := ""
	defer func() {
		if playerToken != "" {
			rm.DisconnectPlayer(roomID, playerToken, client)
		}
		close(client.send)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			client.sendEvent(ServerEvent{Type: EventError, Message: "Invalid JSON"})
			continue
		}

		if event.Type == EventJoinRoom {
			if !rm.ConnectPlayer(roomID, event.PlayerToken, client) {
				client.sendEvent(ServerEvent{Type: EventError, Message: "Failed to join room"})
				continue
			}
			playerToken = event.PlayerToken
			continue
		}

		if playerToken == "" {
			client.sendEvent(ServerEvent{Type: EventError, Message: "Join room first"})
			continue
		}

		rm.HandleEvent(roomID, playerToken, event)
	}
}
