package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/registry"
	"github.com/TusharChoudharyy/zava-chat-app/internal/session"
)

func TestParseRoomInput(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"plucky-teal-otter-harbor", "plucky-teal-otter-harbor", false},
		{"  spaced  ", "spaced", false},
		{"https://zava-chat.app/join/plucky-teal-otter-harbor", "plucky-teal-otter-harbor", false},
		{"https://zava-chat.app/join/abc/", "abc", false},
		{"zava-chat.app/join/abc", "abc", false},
		{"http://localhost:3000/join/a%20b", "a b", false},
		{"https://zava-chat.app/rooms/abc", "", true},
		{"https://zava-chat.app/join/", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		got, err := parseRoomInput(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("parseRoomInput(%q) err=%v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("parseRoomInput(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMediaFlagsSource(t *testing.T) {
	if _, ok := (mediaFlags{noMedia: true}).source().(media.SilentSource); !ok {
		t.Fatalf("--no-media did not select SilentSource")
	}

	fs, ok := (mediaFlags{audio: "a.ogg", video: "v.ivf"}).source().(media.FileSource)
	if !ok || fs.AudioPath != "a.ogg" || fs.VideoPath != "v.ivf" || !fs.Loop {
		t.Fatalf("source=%+v, want looping FileSource", fs)
	}

	if (mediaFlags{}).screenSource() != nil {
		t.Fatalf("screen source without --screen")
	}
	if _, ok := (mediaFlags{screen: "s.ivf"}).screenSource().(media.VideoFile); !ok {
		t.Fatalf("--screen did not select VideoFile")
	}
}

func TestRunMeetingRejectsConflictingMediaFlags(t *testing.T) {
	err := runMeeting("abc", true, connectionFlags{}, mediaFlags{noMedia: true, audio: "a.ogg"})
	if err == nil {
		t.Fatalf("runMeeting accepted --no-media with --audio")
	}
}

func TestFetchRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rooms" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rooms":[{"id":"abc","host":"A","participants":["A","B"],"created_at":"2026-01-01T00:00:00Z"}]}`))
	}))
	defer srv.Close()

	rooms, err := fetchRooms(context.Background(), srv.Client(), srv.URL+"/rooms")
	if err != nil {
		t.Fatalf("fetchRooms: %v", err)
	}
	want := registry.View{ID: "abc", Host: "A", Participants: []string{"A", "B"}}
	if len(rooms) != 1 || rooms[0].ID != want.ID || rooms[0].Host != want.Host || len(rooms[0].Participants) != 2 {
		t.Fatalf("rooms=%+v, want [%+v]", rooms, want)
	}

	if _, err := fetchRooms(context.Background(), srv.Client(), srv.URL+"/missing"); !errors.Is(err, errRoomsHidden) {
		t.Fatalf("err=%v, want %v", err, errRoomsHidden)
	}
}

func TestAcquireMedia(t *testing.T) {
	_, err := acquireMedia(context.Background(), media.FileSource{AudioPath: "/does/not/exist.ogg"})
	if !errors.Is(err, session.ErrMediaUnavailable) {
		t.Fatalf("err=%v, want %v", err, session.ErrMediaUnavailable)
	}

	stream, err := acquireMedia(context.Background(), media.SilentSource{})
	if err != nil {
		t.Fatalf("acquireMedia: %v", err)
	}
	defer stream.Stop()

	got, err := (preparedSource{stream}).Acquire(context.Background())
	if err != nil || got != stream {
		t.Fatalf("preparedSource.Acquire=%p,%v, want %p", got, err, stream)
	}
}

func TestOpenRooms(t *testing.T) {
	exposed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rooms":[{"id":"calm-blue-otter-harbor","participants":["A"]}]}`))
	}))
	defer exposed.Close()

	taken := openRooms(context.Background(), connectionFlags{server: "ws" + strings.TrimPrefix(exposed.URL, "http") + "/ws"})
	if taken == nil {
		t.Fatalf("openRooms returned nil for an exposed relay")
	}
	if !taken("calm-blue-otter-harbor") || taken("quiet-red-fox-meadow") {
		t.Fatalf("taken reports the wrong rooms")
	}

	hidden := httptest.NewServer(http.NotFoundHandler())
	defer hidden.Close()

	if taken := openRooms(context.Background(), connectionFlags{server: "ws" + strings.TrimPrefix(hidden.URL, "http") + "/ws"}); taken != nil {
		t.Fatalf("openRooms returned a checker for a relay that hides its rooms")
	}
}
