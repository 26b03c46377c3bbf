package uid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDs(t *testing.T) {
	t.Parallel()

	a, b := NewLANRoomID(), NewLANRoomID()
	assert.True(t, strings.HasPrefix(a, "lan-"))
	assert.NotEqual(t, a, b)

	p := NewPlayerID("LAN")
	assert.True(t, strings.HasPrefix(p, "lan_"))
	assert.NotEqual(t, p, NewPlayerID("LAN"))
	assert.True(t, strings.HasPrefix(NewPlayerID(""), "local_"))

	assert.Len(t, NewMatchID(), 36)
}
