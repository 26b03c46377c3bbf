package protocol

import "github.com/iamasit07/snakesync/internal/domain"

const (
	ReasonWrongPassword = "wrong password"
	ReasonRoomFull      = "room full"
	ReasonPeerLeft      = "peer left"
)

// RoomInfoPacket carries the host's view of the room; the raw password never goes out.
func RoomInfoPacket(room domain.RoomInfo) Packet {
	return NewPacket(RoomInfo, map[string]any{
		"id":             room.ID,
		"name":           room.Name,
		"hostName":       room.HostName,
		"connectionType": string(room.ConnectionType),
		"maxPlayers":     room.MaxPlayers,
		"currentPlayers": room.CurrentPlayers,
		"allowWallPass":  room.AllowWallPass,
		"hasPassword":    room.IsPasswordProtected(),
		"port":           room.Port,
		"hostAddress":    room.HostAddress,
	})
}

func DecodeRoomInfo(payload map[string]any) (domain.RoomInfo, bool) {
	id, ok := String(payload, "id")
	if !ok || id == "" {
		return domain.RoomInfo{}, false
	}
	room := domain.RoomInfo{ID: id}
	room.Name, _ = String(payload, "name")
	room.HostName, _ = String(payload, "hostName")
	room.HostAddress, _ = String(payload, "hostAddress")
	if ct, ok := String(payload, "connectionType"); ok {
		room.ConnectionType = domain.ConnectionType(ct)
	}
	if n, ok := Int(payload, "maxPlayers"); ok {
		room.MaxPlayers = int(n)
	}
	if n, ok := Int(payload, "currentPlayers"); ok {
		room.CurrentPlayers = int(n)
	}
	if n, ok := Int(payload, "port"); ok {
		room.Port = int(n)
	}
	room.AllowWallPass, _ = Bool(payload, "allowWallPass")
	room.HasPassword, _ = Bool(payload, "hasPassword")
	return room, true
}

// MergeRoomInfo applies the fields a client trusts from a host ROOM_INFO.
func MergeRoomInfo(local domain.RoomInfo, payload map[string]any) domain.RoomInfo {
	if n, ok := Int(payload, "currentPlayers"); ok {
		local.CurrentPlayers = int(n)
	}
	if v, ok := Bool(payload, "allowWallPass"); ok {
		local.AllowWallPass = v
	}
	if n, ok := Int(payload, "maxPlayers"); ok && n >= 2 {
		local.MaxPlayers = int(n)
	}
	if name, ok := String(payload, "name"); ok && name != "" {
		local.Name = name
	}
	return local
}

type Join struct {
	PlayerID string
	Name     string
	Password string
}

func JoinPacket(j Join) Packet {
	payload := map[string]any{
		"playerId": j.PlayerID,
		"name":     j.Name,
	}
	if j.Password != "" {
		payload["password"] = j.Password
	}
	return NewPacket(PlayerJoin, payload)
}

func DecodeJoin(payload map[string]any) (Join, bool) {
	var j Join
	var ok bool
	if j.PlayerID, ok = String(payload, "playerId"); !ok || j.PlayerID == "" {
		return Join{}, false
	}
	j.Name, _ = String(payload, "name")
	j.Password, _ = String(payload, "password")
	return j, true
}

func HeartbeatPacket(roomID string) Packet {
	return NewPacket(Heartbeat, map[string]any{"roomId": roomID})
}

func RejectPacket(reason string) Packet {
	return NewPacket(Custom, map[string]any{"reason": reason})
}

// RejectReason reports the reason of a CUSTOM rejection packet.
func RejectReason(p Packet) (string, bool) {
	if p.Type != Custom {
		return "", false
	}
	return String(p.Payload, "reason")
}

// PeerLeftPacket is raised locally by the host when a peer's stream ends.
func PeerLeftPacket(playerID string) Packet {
	return NewPacket(Custom, map[string]any{"reason": ReasonPeerLeft, "playerId": playerID})
}

// DecodePeerLeft returns the player id of a peer-left notice.
func DecodePeerLeft(p Packet) (string, bool) {
	if reason, ok := RejectReason(p); !ok || reason != ReasonPeerLeft {
		return "", false
	}
	return String(p.Payload, "playerId")
}

func EliminatedPacket(playerID string, at domain.Cell) Packet {
	return NewPacket(PlayerEliminated, map[string]any{
		"playerId": playerID,
		"x":        at.X,
		"y":        at.Y,
	})
}

func DecodeEliminated(payload map[string]any) (string, domain.Cell, bool) {
	id, ok := String(payload, "playerId")
	if !ok || id == "" {
		return "", domain.Cell{}, false
	}
	x, okX := Int(payload, "x")
	y, okY := Int(payload, "y")
	return id, domain.Cell{X: int(x), Y: int(y)}, okX && okY
}

func FoodStatePacket(foods []domain.Cell) Packet {
	return NewPacket(FoodState, map[string]any{"foods": cellsPayload(foods)})
}

func DecodeFoodState(payload map[string]any) []domain.Cell {
	return decodeFoods(payload)
}
