package domain

// ConnectionState is written only by the connection manager and copied out to readers.
type ConnectionState struct {
	Connected bool           `json:"connected"`
	Role      Role           `json:"role"`
	Phase     Phase          `json:"phase"`
	Transport ConnectionType `json:"transport,omitempty"`
	PeerName  string         `json:"peerName,omitempty"`
	LastError string         `json:"lastError,omitempty"`
	Room      *RoomInfo      `json:"room,omitempty"`
	Peers     []string       `json:"peers,omitempty"`
}

func IdleState(transport ConnectionType) ConnectionState {
	return ConnectionState{Phase: PhaseIdle, Transport: transport}
}

// Clone deep-copies the room and peer list so callers can't mutate manager state.
func (s ConnectionState) Clone() ConnectionState {
	if s.Room != nil {
		room := *s.Room
		s.Room = &room
	}
	if s.Peers != nil {
		s.Peers = append([]string(nil), s.Peers...)
	}
	return s
}

func (s ConnectionState) IsActive() bool {
	return s.Phase == PhaseListening || s.Phase == PhaseConnecting || s.Phase == PhaseConnected
}
