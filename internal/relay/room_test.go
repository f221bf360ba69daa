package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomMembership(t *testing.T) {
	rm := newRoom("r1", "lobby")
	assert.True(t, rm.empty())

	rm.add("b")
	rm.add("a")
	rm.add("a")
	assert.False(t, rm.empty())
	assert.True(t, rm.has("a"))
	assert.Equal(t, []ConnectionID{"a", "b"}, rm.memberIDs())

	rm.remove("a")
	rm.remove("missing")
	assert.False(t, rm.has("a"))
	assert.Equal(t, RoomInfo{ID: "r1", Name: "lobby", Clients: []ConnectionID{"b"}}, rm.info())

	rm.remove("b")
	assert.True(t, rm.empty())
}
