package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chatwave/internal/app/chat"
	"chatwave/internal/app/presence"
	"chatwave/internal/app/user"
)

type recorder struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Deliver(payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		return false
	}
	r.frames = append(r.frames, payload)
	return true
}

func (r *recorder) received() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Envelope, 0, len(r.frames))
	for _, f := range r.frames {
		var env Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func message(senderID string, participantIDs ...string) chat.Message {
	users := make([]user.User, 0, len(participantIDs))
	for _, id := range participantIDs {
		users = append(users, user.User{ID: id, Name: id})
	}
	return chat.Message{
		ID:      "m1",
		Sender:  user.User{ID: senderID, Name: senderID},
		Content: "hello",
		ChatID:  "G",
		Chat:    &chat.Chat{ID: "G", IsGroupChat: true, Users: users},
	}
}

func TestDeliverMessage_ExcludesSender(t *testing.T) {
	req := require.New(t)

	// Given alice on two devices and bob on one
	reg := presence.NewRegistry()
	alicePhone, aliceLaptop, bob := &recorder{id: "ap"}, &recorder{id: "al"}, &recorder{id: "b"}
	req.NoError(reg.Register("alice", alicePhone))
	req.NoError(reg.Register("alice", aliceLaptop))
	req.NoError(reg.Register("bob", bob))

	// When alice sends to a chat with bob
	queued := NewRouter(reg).DeliverMessage(message("alice", "alice", "bob"))

	// Then only bob receives it
	req.Equal(1, queued)
	req.Empty(alicePhone.received())
	req.Empty(aliceLaptop.received())

	got := bob.received()
	req.Len(got, 1)
	req.Equal(EventNewMessage, got[0].Type)

	var delivered chat.Message
	req.NoError(json.Unmarshal(got[0].Payload, &delivered))
	req.Equal("m1", delivered.ID)
	req.Equal("alice", delivered.Sender.ID)
}

func TestDeliverMessage_ReachesEveryDevice(t *testing.T) {
	req := require.New(t)

	reg := presence.NewRegistry()
	phone, laptop := &recorder{id: "p"}, &recorder{id: "l"}
	req.NoError(reg.Register("bob", phone))
	req.NoError(reg.Register("bob", laptop))

	queued := NewRouter(reg).DeliverMessage(message("alice", "alice", "bob"))

	req.Equal(2, queued)
	req.Len(phone.received(), 1)
	req.Len(laptop.received(), 1)
}

func TestDeliverMessage_DropsWithoutParticipants(t *testing.T) {
	req := require.New(t)

	reg := presence.NewRegistry()
	bob := &recorder{id: "b"}
	req.NoError(reg.Register("bob", bob))
	router := NewRouter(reg)

	msg := message("alice")
	req.Equal(0, router.DeliverMessage(msg))

	msg.Chat = nil
	req.Equal(0, router.DeliverMessage(msg))

	req.Empty(bob.received())
}

func TestDeliverMessage_OfflineAndFullQueuesAreSkipped(t *testing.T) {
	req := require.New(t)

	reg := presence.NewRegistry()
	bob, carol := &recorder{id: "b"}, &recorder{id: "c", full: true}
	req.NoError(reg.Register("bob", bob))
	req.NoError(reg.Register("carol", carol))

	queued := NewRouter(reg).DeliverMessage(message("alice", "alice", "bob", "carol", "dave"))

	req.Equal(1, queued)
	req.Len(bob.received(), 1)
	req.Empty(carol.received())
}

func TestDeliverMessage_DuplicateParticipantDeliveredOnce(t *testing.T) {
	req := require.New(t)

	reg := presence.NewRegistry()
	bob := &recorder{id: "b"}
	req.NoError(reg.Register("bob", bob))

	queued := NewRouter(reg).DeliverMessage(message("alice", "alice", "bob", "bob"))

	req.Equal(1, queued)
	req.Len(bob.received(), 1)
}

func TestDeliverMessage_AfterLeave(t *testing.T) {
	req := require.New(t)

	// Given bob in several rooms
	reg := presence.NewRegistry()
	bob := &recorder{id: "b"}
	req.NoError(reg.Register("bob", bob))
	req.NoError(reg.JoinRoom(bob, "G"))
	req.NoError(reg.JoinRoom(bob, "H"))
	router := NewRouter(reg)

	// When bob's session leaves
	reg.Leave(bob)

	// Then neither delivery nor relay reaches it
	req.Equal(0, router.DeliverMessage(message("alice", "alice", "bob")))
	req.Equal(0, router.Relay(&recorder{id: "x"}, "G", EventTyping))
	req.Empty(bob.received())
}

func TestRelay_SkipsOriginSession(t *testing.T) {
	req := require.New(t)

	reg := presence.NewRegistry()
	alice, bob, outsider := &recorder{id: "a"}, &recorder{id: "b"}, &recorder{id: "o"}
	req.NoError(reg.Register("alice", alice))
	req.NoError(reg.Register("bob", bob))
	req.NoError(reg.Register("olga", outsider))
	req.NoError(reg.JoinRoom(alice, "G"))
	req.NoError(reg.JoinRoom(bob, "G"))

	queued := NewRouter(reg).Relay(alice, "G", EventStopTyping)

	req.Equal(1, queued)
	req.Empty(alice.received())
	req.Empty(outsider.received())

	got := bob.received()
	req.Len(got, 1)
	req.Equal(EventStopTyping, got[0].Type)
	req.JSONEq(`"G"`, string(got[0].Payload))
}

// TestGroupScenarioBroadcast: after C leaves and D joins group G, a message from A reaches
// only B and D.
func TestGroupScenarioBroadcast(t *testing.T) {
	req := require.New(t)

	// Given sessions for A, B, C and D
	reg := presence.NewRegistry()
	sessions := map[string]*recorder{}
	for _, id := range []string{"A", "B", "C", "D"} {
		sessions[id] = &recorder{id: "s-" + id}
		req.NoError(reg.Register(id, sessions[id]))
	}

	// When A sends in G whose participants are now {A, B, D}
	queued := NewRouter(reg).DeliverMessage(message("A", "A", "B", "D"))

	// Then
	req.Equal(2, queued)
	req.Len(sessions["B"].received(), 1)
	req.Len(sessions["D"].received(), 1)
	req.Empty(sessions["A"].received())
	req.Empty(sessions["C"].received())
}
