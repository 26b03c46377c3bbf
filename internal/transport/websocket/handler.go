package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/internal/service/authority"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Event is what observers receive.
type Event struct {
	Type      string                  `json:"type"`
	Transport domain.ConnectionType   `json:"transport,omitempty"`
	State     *domain.ConnectionState `json:"state,omitempty"`
	Packet    *protocol.Packet        `json:"packet,omitempty"`
	View      *authority.View         `json:"view,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// Command is what observers may send back.
type Command struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"`
	On        bool   `json:"on,omitempty"`
}

// StateSource is one connection manager. *session.Manager implements it.
type StateSource interface {
	Kind() domain.ConnectionType
	State() domain.ConnectionState
	Subscribe() (<-chan domain.ConnectionState, func())
	Packets() (<-chan protocol.Packet, func())
}

// Controller steers the running match. *game.Service implements it.
type Controller interface {
	Steer(direction string) error
	Boost(on bool) error
	View() (authority.View, bool)
}

type Handler struct {
	Hub      *Hub
	Sources  []StateSource
	Game     Controller
	Upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(hub *Hub, game Controller, sources ...StateSource) *Handler {
	return &Handler{
		Hub:     hub,
		Sources: sources,
		Game:    game,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.For("WS"),
	}
}

// Run relays every source's state changes and packets to the observers until ctx is done.
func (h *Handler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, src := range h.Sources {
		states, unsubscribe := src.Subscribe()
		packets, unsubscribePackets := src.Packets()
		kind := src.Kind()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			defer unsubscribePackets()
			h.relay(ctx, kind, states, packets)
		}()
	}
	wg.Wait()
}

func (h *Handler) relay(ctx context.Context, kind domain.ConnectionType, states <-chan domain.ConnectionState, packets <-chan protocol.Packet) {
	for states != nil || packets != nil {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			h.Hub.Broadcast(Event{Type: "state", Transport: kind, State: &st})
		case p, ok := <-packets:
			if !ok {
				packets = nil
				continue
			}
			// snapshots reach observers as views, heartbeats are noise
			if p.Type == protocol.PlayerState || p.Type == protocol.Heartbeat {
				continue
			}
			h.Hub.Broadcast(Event{Type: "packet", Transport: kind, Packet: &p})
		}
	}
}

// PublishView is handed to the game service as its view callback.
func (h *Handler) PublishView(v authority.View) {
	h.Hub.Broadcast(Event{Type: "view", View: &v})
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Upgrade error")
		return
	}
	h.handleConnection(conn)
}

func (h *Handler) handleConnection(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	id := uuid.NewString()
	h.Hub.Add(id, conn)
	h.log.Debug().Str("observer", id).Msg("Observer connected")

	done := make(chan struct{})
	defer func() {
		close(done)
		h.Hub.RemoveIfMatching(id, conn)
		h.log.Debug().Str("observer", id).Msg("Observer disconnected")
	}()

	go h.keepAlive(id, conn, done)
	h.greet(id)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("observer", id).Msg("Observer dropped")
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.Hub.Send(id, Event{Type: "error", Message: "invalid message format"})
			continue
		}
		h.process(id, cmd)
	}
}

func (h *Handler) keepAlive(id string, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.Hub.ping(id); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// greet sends the current picture so a fresh observer doesn't wait for the next change.
func (h *Handler) greet(id string) {
	for _, src := range h.Sources {
		st := src.State()
		h.Hub.Send(id, Event{Type: "state", Transport: src.Kind(), State: &st})
	}
	if h.Game == nil {
		return
	}
	if v, ok := h.Game.View(); ok {
		h.Hub.Send(id, Event{Type: "view", View: &v})
	}
}

func (h *Handler) process(id string, cmd Command) {
	var err error
	switch cmd.Type {
	case "ping":
		h.Hub.Send(id, Event{Type: "pong"})
		return
	case "steer":
		if h.Game == nil {
			err = domain.ErrNotConnected
			break
		}
		err = h.Game.Steer(cmd.Direction)
	case "boost":
		if h.Game == nil {
			err = domain.ErrNotConnected
			break
		}
		err = h.Game.Boost(cmd.On)
	default:
		h.Hub.Send(id, Event{Type: "error", Message: "unknown command " + cmd.Type})
		return
	}
	if err != nil {
		h.Hub.Send(id, Event{Type: "error", Message: err.Error()})
	}
}
