package protocol

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/iamasit07/snakesync/internal/domain"
)

const (
	// MaxAttributeBytes is the raw size a discovery record can carry before encoding.
	MaxAttributeBytes = 190
	AttributeKey      = "meta"

	maxServiceNameRunes = 20
)

// RoomAttributes is the LAN advertisement record. ID, Port and HostAddress are always present;
// MaxPlayers and Password are dropped first when the record doesn't fit.
type RoomAttributes struct {
	ID          string `json:"id"`
	Port        int    `json:"port"`
	HostAddress string `json:"hostAddress"`
	MaxPlayers  *int   `json:"maxP,omitempty"`
	Password    *int   `json:"pwd,omitempty"`
}

func AttributesFor(room domain.RoomInfo) RoomAttributes {
	maxP := room.MaxPlayers
	pwd := 0
	if room.IsPasswordProtected() {
		pwd = 1
	}
	return RoomAttributes{
		ID:          room.ID,
		Port:        room.Port,
		HostAddress: room.HostAddress,
		MaxPlayers:  &maxP,
		Password:    &pwd,
	}
}

func (a RoomAttributes) minimal() RoomAttributes {
	return RoomAttributes{ID: a.ID, Port: a.Port, HostAddress: a.HostAddress}
}

// Encode returns the base64 attribute value, falling back to the minimal subset when
// the extended record exceeds MaxAttributeBytes.
func (a RoomAttributes) Encode() string {
	raw, err := json.Marshal(a)
	if err != nil || len(raw) > MaxAttributeBytes {
		raw, _ = json.Marshal(a.minimal())
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func (a RoomAttributes) Extended() bool {
	return a.MaxPlayers != nil || a.Password != nil
}

func DecodeAttributes(value string) (RoomAttributes, bool) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return RoomAttributes{}, false
	}
	var a RoomAttributes
	if err := json.Unmarshal(raw, &a); err != nil || a.ID == "" {
		return RoomAttributes{}, false
	}
	return a, true
}

// ServiceName shortens the room name and appends the room id suffix so names stay unique.
func ServiceName(roomName, roomID string) string {
	name := []rune(strings.TrimSpace(roomName))
	if len(name) > maxServiceNameRunes {
		name = name[:maxServiceNameRunes]
	}
	suffix := roomID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return string(name) + "#" + suffix
}

// RoomNameFromService is the inverse of ServiceName for display purposes.
func RoomNameFromService(serviceName string) string {
	if i := strings.LastIndex(serviceName, "#"); i >= 0 {
		return serviceName[:i]
	}
	return serviceName
}

// RoomFromAdvert turns a resolved LAN advertisement into a joinable room description.
// The raw password is never advertised, so Password stays empty.
func RoomFromAdvert(serviceName, host string, port int, attrs RoomAttributes) domain.RoomInfo {
	room := domain.RoomInfo{
		ID:             attrs.ID,
		Name:           RoomNameFromService(serviceName),
		ConnectionType: domain.LAN,
		HostAddress:    host,
		HostName:       serviceName,
		MaxPlayers:     domain.DefaultMaxPlayers,
		Port:           port,
	}
	if room.ID == "" {
		room.ID = serviceName
	}
	if attrs.HostAddress != "" && host == "" {
		room.HostAddress = attrs.HostAddress
	}
	if attrs.Port > 0 && port == 0 {
		room.Port = attrs.Port
	}
	if attrs.MaxPlayers != nil && *attrs.MaxPlayers >= 2 {
		room.MaxPlayers = *attrs.MaxPlayers
	}
	if attrs.Password != nil {
		room.HasPassword = *attrs.Password == 1
	}
	return room
}
