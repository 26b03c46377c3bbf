package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Hub tracks the observer sockets attached to this process.
type Hub struct {
	connections map[string]*websocket.Conn

	// gorilla connections allow one concurrent writer
	writeMu map[string]*sync.Mutex

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*websocket.Conn),
		writeMu:     make(map[string]*sync.Mutex),
	}
}

func (h *Hub) Add(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.connections[id]; ok {
		old.Close()
	}
	h.connections[id] = conn
	h.writeMu[id] = &sync.Mutex{}
}

// RemoveIfMatching drops id only while it still points at conn.
func (h *Hub) RemoveIfMatching(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.connections[id]; ok && current == conn {
		current.Close()
		delete(h.connections, id)
		delete(h.writeMu, id)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Send writes one event to one observer. Unknown ids are ignored.
func (h *Hub) Send(id string, ev Event) error {
	h.mu.RLock()
	conn, ok := h.connections[id]
	mu, muOK := h.writeMu[id]
	h.mu.RUnlock()

	if !ok || !muOK {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

// Broadcast fans out on one goroutine per observer so a slow socket holds up nobody else.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, conn := range h.connections {
		go func(id string, conn *websocket.Conn) {
			if err := h.Send(id, ev); err != nil {
				h.RemoveIfMatching(id, conn)
			}
		}(id, conn)
	}
}

// ping shares the observer's write lock with Send.
func (h *Hub) ping(id string) error {
	h.mu.RLock()
	conn, ok := h.connections[id]
	mu, muOK := h.writeMu[id]
	h.mu.RUnlock()
	if !ok || !muOK {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.connections {
		conn.Close()
		delete(h.connections, id)
		delete(h.writeMu, id)
	}
}
