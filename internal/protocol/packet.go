package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type PacketType string

const (
	RoomInfo         PacketType = "ROOM_INFO"
	PlayerJoin       PacketType = "PLAYER_JOIN"
	PlayerState      PacketType = "PLAYER_STATE"
	FoodState        PacketType = "FOOD_STATE"
	PlayerEliminated PacketType = "PLAYER_ELIMINATED"
	Heartbeat        PacketType = "HEARTBEAT"
	Custom           PacketType = "CUSTOM"
)

var knownTypes = map[PacketType]struct{}{
	RoomInfo:         {},
	PlayerJoin:       {},
	PlayerState:      {},
	FoodState:        {},
	PlayerEliminated: {},
	Heartbeat:        {},
	Custom:           {},
}

func (t PacketType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Packet is one line on the wire. Treat it as immutable once built.
type Packet struct {
	Type      PacketType     `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"`
	// From is the id of the peer that delivered the packet. Receivers set it; it is
	// never encoded.
	From string `json:"from,omitempty"`
}

func NewPacket(t PacketType, payload map[string]any) Packet {
	if payload == nil {
		payload = map[string]any{}
	}
	return Packet{Type: t, Payload: payload, Timestamp: time.Now().UnixMilli()}
}

type envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp *int64          `json:"timestamp"`
}

// Encode renders a single line without the trailing newline.
// encoding/json escapes control characters, so payload strings can't break framing.
func Encode(p Packet) string {
	payload := p.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(Packet{Type: p.Type, Payload: payload, Timestamp: p.Timestamp})
	if err != nil {
		// unencodable payload values: keep the envelope, drop the body
		b, _ = json.Marshal(Packet{Type: p.Type, Payload: map[string]any{}, Timestamp: p.Timestamp})
	}
	return string(b)
}

// Decode never fails loudly: anything that isn't a known envelope returns ok=false.
func Decode(line string) (Packet, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '{' {
		return Packet{}, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return Packet{}, false
	}

	t := PacketType(env.Type)
	if !t.Valid() {
		return Packet{}, false
	}

	payload, ok := decodePayload(env.Payload)
	if !ok {
		return Packet{}, false
	}

	ts := time.Now().UnixMilli()
	if env.Timestamp != nil {
		ts = *env.Timestamp
	}
	return Packet{Type: t, Payload: payload, Timestamp: ts}, true
}

func decodePayload(raw json.RawMessage) (map[string]any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	v, err := unmarshalNumbers(raw)
	if err != nil {
		return nil, false
	}

	switch body := v.(type) {
	case map[string]any:
		return body, true
	case []any:
		return map[string]any{"data": body}, true
	case string:
		// some senders double-encode the payload object as a string
		inner, err := unmarshalNumbers([]byte(body))
		if err != nil {
			return nil, false
		}
		m, ok := inner.(map[string]any)
		return m, ok
	default:
		return nil, false
	}
}

func unmarshalNumbers(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// normalize turns json.Number into int64 when integral, float64 otherwise.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	default:
		return v
	}
}
