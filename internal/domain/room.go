package domain

import "strings"

const DefaultMaxPlayers = 4

type RoomInfo struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	ConnectionType ConnectionType `json:"connectionType"`
	HostAddress    string         `json:"hostAddress"`
	HostName       string         `json:"hostName"`
	MaxPlayers     int            `json:"maxPlayers"`
	CurrentPlayers int            `json:"currentPlayers"`
	AllowWallPass  bool           `json:"allowWallPass"`
	Password       string         `json:"-"`
	HasPassword    bool           `json:"hasPassword"`
	Port           int            `json:"port,omitempty"`
}

// IsPasswordProtected is true when either the flag was advertised or a raw password is known.
func (r RoomInfo) IsPasswordProtected() bool {
	return r.HasPassword || r.Password != ""
}

func (r RoomInfo) IsFull() bool {
	return r.MaxPlayers > 0 && r.CurrentPlayers >= r.MaxPlayers
}

// Normalize fills defaults and keeps HasPassword consistent with Password.
func (r RoomInfo) Normalize() RoomInfo {
	r.Name = strings.TrimSpace(r.Name)
	if r.MaxPlayers < 2 {
		r.MaxPlayers = 2
	}
	if r.Password != "" {
		r.HasPassword = true
	}
	return r
}

// Public strips the raw password for anything that leaves the host.
func (r RoomInfo) Public() RoomInfo {
	r.Password = ""
	return r
}
