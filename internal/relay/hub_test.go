package relay

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/TusharChoudharyy/zava-chat-app/internal/events"
	"github.com/TusharChoudharyy/zava-chat-app/internal/metrics"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
	"github.com/TusharChoudharyy/zava-chat-app/internal/registry"
)

type recordingEmitter struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (e *recordingEmitter) Emit(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, ev.Kind)
}

func (e *recordingEmitter) snapshot() []events.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]events.Kind(nil), e.kinds...)
}

type testHub struct {
	*Hub
	m  *metrics.Relay
	em *recordingEmitter
}

func startHub(t *testing.T, opts registry.Options) *testHub {
	t.Helper()

	m := metrics.NewRelay()
	em := &recordingEmitter{}
	h := NewHub(registry.New(opts), m, em)
	go h.Run()
	t.Cleanup(h.Stop)

	return &testHub{Hub: h, m: m, em: em}
}

// connect registers a client without a socket and consumes its welcome.
func (h *testHub) connect(t *testing.T, id string) *Client {
	t.Helper()

	c := NewClient(h.Hub, nil, id, DefaultLimits())
	if !h.Register(c) {
		t.Fatalf("Register(%s) on a stopped hub", id)
	}
	msg := expect(t, c, protocol.MessageTypeWelcome)
	if msg.ID != id {
		t.Fatalf("welcome id=%q, want %q", msg.ID, id)
	}
	return c
}

// flush returns once the hub has finished every message c delivered
// before the call. The hub is single-threaded, so the second delivery can
// only be accepted after the first has been handled.
func (h *testHub) flush(c *Client) {
	h.Deliver(c, &protocol.Message{Type: "flush"})
	h.Deliver(c, &protocol.Message{Type: "flush"})
}

func (h *testHub) joinRoom(t *testing.T, c *Client, roomID string, isHost bool) *protocol.Message {
	t.Helper()
	h.Deliver(c, protocol.NewJoin(roomID, isHost))
	return expect(t, c, protocol.MessageTypeJoined)
}

func expect(t *testing.T, c *Client, msgType string) *protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		if !ok {
			t.Fatalf("%s: send queue closed, want %s", c.ID, msgType)
		}
		if msg.Type != msgType {
			t.Fatalf("%s: type=%q, want %q", c.ID, msg.Type, msgType)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out waiting for %s", c.ID, msgType)
		return nil
	}
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("%s: unexpected %+v", c.ID, msg)
	default:
	}
}

func TestHub_JoinAnnouncesToOthersOnly(t *testing.T) {
	h := startHub(t, registry.Options{ReapEmpty: true})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	if joined := h.joinRoom(t, a, "abc", true); !joined.IsHost || joined.RoomID != "abc" {
		t.Fatalf("A joined=%+v, want host of abc", joined)
	}

	joined := h.joinRoom(t, b, "abc", true)
	if joined.IsHost {
		t.Fatalf("B joined as host of an existing room")
	}

	notice := expect(t, a, protocol.MessageTypePeerJoined)
	if notice.ID != "B" {
		t.Fatalf("peer_joined id=%q, want B", notice.ID)
	}

	h.flush(b)
	expectNone(t, a)
	expectNone(t, b)
}

func TestHub_RejoinDoesNotRebroadcast(t *testing.T) {
	h := startHub(t, registry.Options{ReapEmpty: true})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.joinRoom(t, a, "abc", true)
	h.joinRoom(t, b, "abc", false)
	expect(t, a, protocol.MessageTypePeerJoined)

	h.joinRoom(t, b, "abc", false)
	h.flush(b)
	expectNone(t, a)

	view, _ := h.registry.Room("abc")
	if len(view.Participants) != 2 {
		t.Fatalf("participants=%v, want 2 entries", view.Participants)
	}
}

func TestHub_SignalIsDeliveredToExactlyOneTarget(t *testing.T) {
	h := startHub(t, registry.Options{ReapEmpty: true})
	a := h.connect(t, "A")
	b := h.connect(t, "B")
	c := h.connect(t, "C")

	h.joinRoom(t, a, "abc", true)
	h.joinRoom(t, b, "abc", false)
	h.joinRoom(t, c, "abc", false)
	expect(t, a, protocol.MessageTypePeerJoined)
	expect(t, a, protocol.MessageTypePeerJoined)
	expect(t, b, protocol.MessageTypePeerJoined)

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	h.Deliver(a, protocol.NewSignal("abc", "B", payload))

	got := expect(t, b, protocol.MessageTypeSignalReceived)
	if got.From != "A" {
		t.Fatalf("from=%q, want A", got.From)
	}
	if string(got.Payload) != string(payload) {
		t.Fatalf("payload=%s, want %s", got.Payload, payload)
	}

	h.flush(a)
	expectNone(t, a)
	expectNone(t, c)

	if n := testutil.ToFloat64(h.m.SignalsRelayed); n != 1 {
		t.Fatalf("signals_relayed=%v, want 1", n)
	}
}

func TestHub_SignalToStaleTargetIsDropped(t *testing.T) {
	h := startHub(t, registry.Options{ReapEmpty: true})
	a := h.connect(t, "A")

	h.Deliver(a, protocol.NewSignal("abc", "gone", json.RawMessage(`{}`)))
	h.flush(a)
	expectNone(t, a)

	if n := testutil.ToFloat64(h.m.MessagesDropped.WithLabelValues(metrics.DropStaleTarget)); n != 1 {
		t.Fatalf("stale_target=%v, want 1", n)
	}
}

func TestHub_HostActionRequiresHost(t *testing.T) {
	h := startHub(t, registry.Options{ReapEmpty: true})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.joinRoom(t, a, "abc", true)
	h.joinRoom(t, b, "abc", false)
	expect(t, a, protocol.MessageTypePeerJoined)

	h.Deliver(a, protocol.NewHostAction("abc", "B", protocol.ActionMute))
	got := expect(t, b, protocol.MessageTypeHostAction)
	if got.Action != protocol.ActionMute {
		t.Fatalf("action=%q, want %q", got.Action, protocol.ActionMute)
	}
	if got.From != "" || got.TargetID != "" {
		t.Fatalf("host action leaked routing fields: %+v", got)
	}

	h.Deliver(b, protocol.NewHostAction("abc", "A", protocol.ActionMute))
	h.flush(b)
	expectNone(t, a)

	if n := testutil.ToFloat64(h.m.HostActionsDenied); n != 1 {
		t.Fatalf("host_actions_denied=%v, want 1", n)
	}
}

func TestHub_DisconnectAnnouncesPeerLeft(t *testing.T) {
	h := startHub(t, registry.Options{ReapEmpty: true})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.joinRoom(t, a, "abc", true)
	h.joinRoom(t, b, "abc", false)
	expect(t, a, protocol.MessageTypePeerJoined)

	h.Unregister(b)
	left := expect(t, a, protocol.MessageTypePeerLeft)
	if left.ID != "B" {
		t.Fatalf("peer_left id=%q, want B", left.ID)
	}

	if _, ok := <-b.Send; ok {
		t.Fatalf("B send queue still open after unregister")
	}

	// A second unregister of the same client is ignored.
	h.Unregister(b)
	h.flush(a)

	h.Unregister(a)
	h.flush(h.connect(t, "probe"))
	if _, ok := h.registry.Room("abc"); ok {
		t.Fatalf("empty room abc not reaped")
	}

	want := []events.Kind{
		events.RoomCreated,
		events.ParticipantJoined,
		events.ParticipantJoined,
		events.ParticipantLeft,
		events.ParticipantLeft,
		events.RoomReaped,
	}
	got := h.em.snapshot()
	if len(got) != len(want) {
		t.Fatalf("events=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events=%v, want %v", got, want)
		}
	}
}

func TestHub_JoinOtherRoomMovesIdentity(t *testing.T) {
	h := startHub(t, registry.Options{ReapEmpty: true})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.joinRoom(t, a, "one", true)
	h.joinRoom(t, b, "one", false)
	expect(t, a, protocol.MessageTypePeerJoined)

	h.joinRoom(t, a, "two", true)
	left := expect(t, b, protocol.MessageTypePeerLeft)
	if left.ID != "A" {
		t.Fatalf("peer_left id=%q, want A", left.ID)
	}
	if v, _ := h.registry.Room("two"); len(v.Participants) != 1 || v.Participants[0] != "A" {
		t.Fatalf("room two participants=%v, want [A]", v.Participants)
	}
}

func TestHub_PromotedHostLearnsRole(t *testing.T) {
	h := startHub(t, registry.Options{HostPolicy: registry.HostPolicyPromoteOldest, ReapEmpty: true})
	a := h.connect(t, "A")
	b := h.connect(t, "B")

	h.joinRoom(t, a, "abc", true)
	h.joinRoom(t, b, "abc", false)
	expect(t, a, protocol.MessageTypePeerJoined)

	h.Unregister(a)
	expect(t, b, protocol.MessageTypePeerLeft)
	promoted := expect(t, b, protocol.MessageTypeJoined)
	if !promoted.IsHost || promoted.RoomID != "abc" {
		t.Fatalf("joined=%+v, want host of abc", promoted)
	}
}

func TestHub_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	h := startHub(t, registry.Options{ReapEmpty: true})
	a := h.connect(t, "A")

	limits := DefaultLimits()
	limits.SendQueueSize = 1
	slow := NewClient(h.Hub, nil, "slow", limits)
	h.Register(slow) // welcome fills the queue

	h.joinRoom(t, a, "abc", true)
	h.Deliver(slow, protocol.NewJoin("abc", false))
	h.Deliver(a, protocol.NewSignal("abc", "slow", json.RawMessage(`{}`)))
	h.flush(a)

	if n := testutil.ToFloat64(h.m.MessagesDropped.WithLabelValues(metrics.DropQueueFull)); n < 2 {
		t.Fatalf("queue_full=%v, want at least 2", n)
	}
	expect(t, slow, protocol.MessageTypeWelcome)
}

func TestHub_UnknownTypeIsCounted(t *testing.T) {
	h := startHub(t, registry.Options{})
	a := h.connect(t, "A")

	h.Deliver(a, &protocol.Message{Type: "create_room"})
	h.flush(a)
	expectNone(t, a)

	// flush itself sends two unknown messages.
	if n := testutil.ToFloat64(h.m.MessagesDropped.WithLabelValues(metrics.DropUnknownType)); n != 3 {
		t.Fatalf("unknown_type=%v, want 3", n)
	}
}

func TestHub_StopClosesEveryQueue(t *testing.T) {
	m := metrics.NewRelay()
	h := NewHub(registry.New(registry.Options{}), m, nil)
	go h.Run()

	c := NewClient(h, nil, "A", DefaultLimits())
	h.Register(c)
	<-c.Send

	h.Stop()
	h.Stop()

	if _, ok := <-c.Send; ok {
		t.Fatalf("send queue open after Stop")
	}
	if h.Register(NewClient(h, nil, "B", DefaultLimits())) {
		t.Fatalf("Register succeeded on a stopped hub")
	}
}
