package uid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewLANRoomID returns a transport-qualified room id such as "lan-3f2c...".
func NewLANRoomID() string {
	return "lan-" + uuid.NewString()
}

// NewPlayerID derives a player id from the transport and the current time,
// with a short random suffix so two devices starting in the same millisecond differ.
func NewPlayerID(transport string) string {
	prefix := strings.ToLower(strings.TrimSpace(transport))
	if prefix == "" {
		prefix = "local"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}

// NewMatchID generates the id a finished match is stored under.
func NewMatchID() string {
	return uuid.NewString()
}
