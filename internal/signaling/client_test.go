package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
)

// fakeRelay greets every connection and forwards what it reads to received.
func fakeRelay(t *testing.T, received chan<- *protocol.Message) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteJSON(protocol.NewWelcome("me"))

		for {
			var msg protocol.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- &msg
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_RoundTrip(t *testing.T) {
	received := make(chan *protocol.Message, 4)
	srv := fakeRelay(t, received)

	c, err := Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	select {
	case msg := <-c.Incoming():
		if msg.Type != protocol.MessageTypeWelcome || msg.ID != "me" {
			t.Fatalf("first message=%+v, want welcome{me}", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no welcome")
	}

	if err := c.Send(protocol.NewJoin("room", true)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case msg := <-received:
		if msg.Type != protocol.MessageTypeJoin || msg.RoomID != "room" || !msg.IsHost {
			t.Fatalf("relay got %+v, want join{room,host}", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relay received nothing")
	}

	c.Close()
	c.Close()

	if err := c.Send(protocol.NewJoin("room", false)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close err=%v, want %v", err, ErrClosed)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Incoming():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("Incoming not closed after Close")
		}
	}
}

func TestDial_BadURL(t *testing.T) {
	if _, err := Dial(context.Background(), "ws://127.0.0.1:1/ws"); err == nil {
		t.Fatalf("Dial to closed port succeeded")
	}
	if _, err := Dial(context.Background(), "://bad"); err == nil {
		t.Fatalf("Dial with bad url succeeded")
	}
}

type recordingRouter struct {
	calls []string
}

func (r *recordingRouter) HandleWelcome(id string) { r.calls = append(r.calls, "welcome:"+id) }
func (r *recordingRouter) HandleJoined(roomID string, isHost bool) {
	if isHost {
		roomID += "+host"
	}
	r.calls = append(r.calls, "joined:"+roomID)
}
func (r *recordingRouter) HandlePeerJoined(id string) { r.calls = append(r.calls, "peer_joined:"+id) }
func (r *recordingRouter) HandleSignal(from string, payload json.RawMessage) {
	r.calls = append(r.calls, "signal:"+from+":"+string(payload))
}
func (r *recordingRouter) HandlePeerLeft(id string)       { r.calls = append(r.calls, "peer_left:"+id) }
func (r *recordingRouter) HandleHostAction(action string) { r.calls = append(r.calls, "host_action:"+action) }

func TestDispatch(t *testing.T) {
	r := &recordingRouter{}
	msgs := []*protocol.Message{
		protocol.NewWelcome("A"),
		protocol.NewJoined("room", true),
		protocol.NewPeerJoined("B"),
		protocol.NewSignalReceived("B", json.RawMessage(`{"type":"offer","sdp":"x"}`)),
		{Type: "bogus"},
		protocol.NewHostActionDelivery(protocol.ActionMute),
		protocol.NewPeerLeft("B"),
	}
	for _, m := range msgs {
		Dispatch(m, r)
	}

	want := []string{
		"welcome:A",
		"joined:room+host",
		"peer_joined:B",
		`signal:B:{"type":"offer","sdp":"x"}`,
		"host_action:mute",
		"peer_left:B",
	}
	if len(r.calls) != len(want) {
		t.Fatalf("calls=%v, want %v", r.calls, want)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Fatalf("call[%d]=%q, want %q", i, r.calls[i], want[i])
		}
	}
}
