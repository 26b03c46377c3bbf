package domain

// basic error that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrPermission     Error = "permission not granted"
	ErrDisabled       Error = "radio is disabled"
	ErrUnsupported    Error = "transport not supported on this platform"
	ErrWrongPassword  Error = "wrong password"
	ErrRoomFull       Error = "room is full"
	ErrBlankName      Error = "name must not be blank"
	ErrNotConnected   Error = "not connected"
	ErrAlreadyActive  Error = "a session is already active"
	ErrNoLocalAddress Error = "no usable local network address"
	ErrClosed         Error = "channel closed"
)

// ConnectionType tags which transport a room or channel runs over.
type ConnectionType string

const (
	Bluetooth ConnectionType = "BLUETOOTH"
	LAN       ConnectionType = "LAN"
)

type Role string

const (
	RoleUnknown Role = ""
	RoleHost    Role = "host"
	RoleClient  Role = "client"
)

// Phase is the connection manager state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseListening  Phase = "listening"
	PhaseConnecting Phase = "connecting"
	PhaseConnected  Phase = "connected"
	PhaseError      Phase = "error"
)
