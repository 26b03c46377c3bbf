package protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	packets := []Packet{
		{Type: Heartbeat, Payload: map[string]any{"roomId": "lan-1"}, Timestamp: 1700000000000},
		{Type: PlayerJoin, Payload: map[string]any{"playerId": "p1", "name": "Ann"}, Timestamp: 1},
		{Type: Custom, Payload: map[string]any{}, Timestamp: 42},
		{Type: PlayerState, Payload: map[string]any{
			"score": int64(3),
			"alive": true,
			"ratio": 0.5,
			"body":  []any{[]any{int64(1), int64(2)}},
			"meta":  map[string]any{"nested": "x"},
		}, Timestamp: 99},
	}

	for _, p := range packets {
		t.Run(string(p.Type), func(t *testing.T) {
			t.Parallel()
			got, ok := Decode(Encode(p))
			require.True(t, ok)
			assert.Equal(t, p, got)
		})
	}
}

func TestEncodeIsSingleLine(t *testing.T) {
	t.Parallel()
	p := NewPacket(Custom, map[string]any{"reason": "line one\nline two\r\n"})
	line := Encode(p)
	assert.NotContains(t, line, "\n")
	assert.NotContains(t, line, "\r")

	got, ok := Decode(line)
	require.True(t, ok)
	assert.Equal(t, "line one\nline two\r\n", got.Payload["reason"])
}

func TestEncodeNilPayload(t *testing.T) {
	t.Parallel()
	got, ok := Decode(Encode(Packet{Type: Heartbeat, Timestamp: 5}))
	require.True(t, ok)
	assert.Equal(t, map[string]any{}, got.Payload)
}

func TestDecodeTolerance(t *testing.T) {
	t.Parallel()

	bad := []string{
		"",
		"garbage",
		"[1,2,3]",
		`{"type":"NOT_A_TYPE","payload":{},"timestamp":1}`,
		`{"type":"HEARTBEAT","timestamp":1}`,
		`{"type":"HEARTBEAT","payload":null}`,
		`{"type":"HEARTBEAT","payload":17}`,
		`{"type":"HEARTBEAT","payload":"not json"}`,
		`{"type":"HEARTBEAT","payload":{}`,
		`{"type":42,"payload":{}}`,
	}
	for _, line := range bad {
		_, ok := Decode(line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestDecodePayloadShapes(t *testing.T) {
	t.Parallel()

	t.Run("array payload is wrapped", func(t *testing.T) {
		p, ok := Decode(`{"type":"CUSTOM","payload":[1,"a"],"timestamp":7}`)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"data": []any{int64(1), "a"}}, p.Payload)
	})

	t.Run("string payload holding an object is parsed", func(t *testing.T) {
		p, ok := Decode(`{"type":"HEARTBEAT","payload":"{\"roomId\":\"r\"}","timestamp":7}`)
		require.True(t, ok)
		assert.Equal(t, "r", p.Payload["roomId"])
	})

	t.Run("missing timestamp defaults to now", func(t *testing.T) {
		before := time.Now().UnixMilli()
		p, ok := Decode(`{"type":"HEARTBEAT","payload":{}}`)
		require.True(t, ok)
		assert.GreaterOrEqual(t, p.Timestamp, before)
	})

	t.Run("surrounding whitespace is ignored", func(t *testing.T) {
		_, ok := Decode("  " + Encode(HeartbeatPacket("r")) + "\r\n")
		assert.True(t, ok)
	})
}

func TestFieldHelpers(t *testing.T) {
	t.Parallel()
	payload := map[string]any{"a": 3, "b": int64(4), "c": 5.0, "d": "6", "flag": int64(1), "t": true}

	for _, key := range []string{"a", "b", "c", "d"} {
		_, ok := Int(payload, key)
		assert.True(t, ok, key)
	}
	n, _ := Int(payload, "d")
	assert.Equal(t, int64(6), n)

	v, ok := Bool(payload, "flag")
	assert.True(t, ok)
	assert.True(t, v)
	v, _ = Bool(payload, "t")
	assert.True(t, v)
	_, ok = Bool(payload, "missing")
	assert.False(t, ok)
}

func TestDecodeDropsGarbageBetweenPackets(t *testing.T) {
	t.Parallel()
	stream := strings.Join([]string{
		Encode(HeartbeatPacket("r1")),
		"}}}{{{",
		Encode(RejectPacket(ReasonRoomFull)),
	}, "\n")

	var got []PacketType
	for _, line := range strings.Split(stream, "\n") {
		if p, ok := Decode(line); ok {
			got = append(got, p.Type)
		}
	}
	assert.Equal(t, []PacketType{Heartbeat, Custom}, got)
}
