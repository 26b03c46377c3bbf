package session

import "github.com/iamasit07/snakesync/internal/domain"

// Room passwords are a deterrent, not authentication, and the two transports check
// them at different moments:
//
//   - LAN: the joining side compares the typed password against the room description
//     before any socket is opened. Rooms found through discovery never carry the raw
//     password, so for them the check passes and the host does not re-check.
//   - Bluetooth: the link has to exist before anything can be exchanged, so the client
//     sends the password in its PLAYER_JOIN and the host verifies it against its hash.
//
// Unifying the two would move the moment a LAN rejection happens; keep them separate.

// CheckLocal is the LAN pre-connect check.
func CheckLocal(room domain.RoomInfo, supplied string) error {
	if room.Password != "" && supplied != room.Password {
		return domain.ErrWrongPassword
	}
	return nil
}

func checksBeforeConnect(kind domain.ConnectionType) bool {
	return kind == domain.LAN
}

func hostVerifiesPassword(kind domain.ConnectionType) bool {
	return kind == domain.Bluetooth
}
