package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEventKind labels what a WSHub broadcast carries.
type wsEventKind string

const (
	wsEventEngineMessage wsEventKind = "engine_message"
	wsEventAlarm         wsEventKind = "alarm"
)

type wsEnvelope struct {
	Kind wsEventKind `json:"kind"`
	Data any         `json:"data"`
}

// WSHub fans EngineMessages and AlarmMessages out to every connected
// operator dashboard. A slow client is dropped rather than allowed to
// block broadcasts to everyone else.
type WSHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsEnvelope
}

// NewWSHub builds an empty hub.
func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*wsClient]struct{})}
}

// ServeHTTP upgrades the request to a websocket connection and registers
// it with the hub until the connection closes.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WSHub: upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan wsEnvelope, 32)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *WSHub) readLoop(client *wsClient) {
	defer h.remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHub) writeLoop(client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case envelope, ok := <-client.send:
			if !ok {
				_ = client.conn.Close()
				return
			}
			if err := client.conn.WriteJSON(envelope); err != nil {
				h.remove(client)
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(client)
				return
			}
		}
	}
}

func (h *WSHub) remove(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

func (h *WSHub) broadcast(envelope wsEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
			logger.Warning("WSHub: dropping slow client")
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// PublishEngineMessage broadcasts msg to every connected dashboard. The
// hub does not implement analyzer.EngineMessageSink, and the engine does
// not call this method.
func (h *WSHub) PublishEngineMessage(msg dto.EngineMessage) {
	h.broadcast(wsEnvelope{Kind: wsEventEngineMessage, Data: msg})
}

// PublishAlarm broadcasts alarm to every connected dashboard. The hub does
// not implement analyzer.AlarmSink, and alarms.Dispatcher does not call
// this method.
func (h *WSHub) PublishAlarm(alarm dto.AlarmMessage) {
	h.broadcast(wsEnvelope{Kind: wsEventAlarm, Data: alarm})
}

