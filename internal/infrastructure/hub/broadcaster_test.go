package hub

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/bookswap/realtime/internal/domain/notification"
	"github.com/bookswap/realtime/internal/infrastructure/hub/hubtest"
)

type staticGroups map[string][]notification.Handle

func (g staticGroups) HandlesIn(groupID string) []notification.Handle {
	return append([]notification.Handle(nil), g[groupID]...)
}

func TestBroadcaster_SendToUser(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r, nil, zerolog.Nop())
	phone := hubtest.NewRecorder()
	laptop := hubtest.NewRecorder()
	other := hubtest.NewRecorder()
	r.Register("alice", phone)
	r.Register("alice", laptop)
	r.Register("bob", other)

	b.SendToUser("alice", "ping", map[string]int{"n": 1})

	assert.Equal(t, 1, phone.Count("ping"))
	assert.Equal(t, 1, laptop.Count("ping"))
	assert.Equal(t, 0, other.Count("ping"))

	r.Unregister("alice", phone)
	b.SendToUser("alice", "ping", map[string]int{"n": 2})

	assert.Equal(t, 1, phone.Count("ping"))
	assert.Equal(t, 2, laptop.Count("ping"))
}

func TestBroadcaster_SendToOfflineUserIsNoop(t *testing.T) {
	b := NewBroadcaster(NewRegistry(), nil, zerolog.Nop())
	assert.NotPanics(t, func() {
		b.SendToUser("nobody", "ping", nil)
	})
}

func TestBroadcaster_SendToGroup(t *testing.T) {
	h1 := hubtest.NewRecorder()
	h2 := hubtest.NewRecorder()
	outsider := hubtest.NewRecorder()
	groups := staticGroups{"room-1": {h1, h2}}
	b := NewBroadcaster(NewRegistry(), groups, zerolog.Nop())

	b.SendToGroup("room-1", "typing", nil)
	b.SendToGroupExcept("room-1", h1.ID(), "stop-typing", nil)
	b.SendToGroup("room-2", "typing", nil)

	assert.Equal(t, []string{"typing"}, h1.Events())
	assert.Equal(t, []string{"typing", "stop-typing"}, h2.Events())
	assert.Empty(t, outsider.Events())
}

func TestBroadcaster_BroadcastAllAndHandle(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r, nil, zerolog.Nop())
	h1 := hubtest.NewRecorder()
	h2 := hubtest.NewRecorder()
	r.Register("alice", h1)
	r.Register("bob", h2)

	b.BroadcastAll("announcement", map[string]string{"text": "maintenance"})
	b.SendToHandle(h2, "ack", nil)
	b.SendToHandle(nil, "ack", nil)

	assert.Equal(t, []string{"announcement"}, h1.Events())
	assert.Equal(t, []string{"announcement", "ack"}, h2.Events())

	var got map[string]string
	assert.True(t, h1.Last("announcement", &got))
	assert.Equal(t, "maintenance", got["text"])
}

func TestBroadcaster_FullQueueDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r, nil, zerolog.Nop())
	slow := hubtest.NewRecorder()
	slow.SetFull(true)
	fast := hubtest.NewRecorder()
	r.Register("alice", slow)
	r.Register("alice", fast)

	b.SendToUser("alice", "ping", nil)

	assert.Empty(t, slow.Events())
	assert.Equal(t, []string{"ping"}, fast.Events())
}

func TestBroadcaster_UnencodablePayload(t *testing.T) {
	r := NewRegistry()
	h := hubtest.NewRecorder()
	r.Register("alice", h)
	b := NewBroadcaster(r, nil, zerolog.Nop())

	b.SendToUser("alice", "ping", make(chan int))

	assert.Empty(t, h.Events())
}
