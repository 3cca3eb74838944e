// Package session is the facade a client uses to take part in a room.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/config"
	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/mesh"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
	"github.com/TusharChoudharyy/zava-chat-app/internal/signaling"
)

const (
	DefaultWelcomeTimeout = 30 * time.Second
	DefaultJoinTimeout    = 30 * time.Second
)

type Options struct {
	Config *config.Config
	RoomID string
	IsHost bool

	Media     media.Source
	Connector mesh.Connector

	// Recorder, when set, writes every remote track to disk.
	Recorder *media.Recorder

	WelcomeTimeout time.Duration
	JoinTimeout    time.Duration
}

// Session is one participation in a room: local media, the relay
// connection and the mesh of peer links.
type Session struct {
	cfg      *config.Config
	roomID   string
	client   *signaling.Client
	stream   *media.Stream
	recorder *media.Recorder

	welcome  chan string
	joined   chan bool
	dispatch chan struct{}

	mu        sync.Mutex
	id        string
	isHost    bool
	joinAcked bool
	mesh      *mesh.Manager
	peers     map[string]protocol.MediaState
	screen    *media.Track
	leaving   bool

	leaveOnce sync.Once
	leaveErr  error

	evMu     sync.Mutex
	events   chan Event
	evClosed bool
}

// Start acquires local media, connects to the relay and joins the room.
// When it fails nothing is left running.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if opts.WelcomeTimeout == 0 {
		opts.WelcomeTimeout = DefaultWelcomeTimeout
	}
	if opts.JoinTimeout == 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	src := opts.Media
	if src == nil {
		src = media.SilentSource{}
	}

	stream, err := src.Acquire(ctx)
	if err != nil {
		return nil, wrapError("acquire media", fmt.Errorf("%w: %w", ErrMediaUnavailable, err), "check the media files or use --no-media")
	}

	client, err := signaling.Dial(ctx, opts.Config.WebSocketURL)
	if err != nil {
		stream.Stop()
		return nil, newError("connect to relay", err)
	}

	s := &Session{
		cfg:      opts.Config,
		roomID:   opts.RoomID,
		client:   client,
		stream:   stream,
		recorder: opts.Recorder,
		welcome:  make(chan string, 1),
		joined:   make(chan bool, 1),
		dispatch: make(chan struct{}),
		peers:    make(map[string]protocol.MediaState),
		events:   make(chan Event, eventBuffer),
	}
	go s.run()

	id, err := waitFor(ctx, s, s.welcome, opts.WelcomeTimeout, "welcome")
	if err != nil {
		s.abort()
		return nil, newError("connect to relay", err)
	}

	m := mesh.NewManager(mesh.Options{
		Stream:    stream,
		Signaler:  relaySignaler{client: client, roomID: opts.RoomID},
		Connector: opts.Connector,
		Presenter: presenter{s},
		OnLeave:   client.Close,
	})

	s.mu.Lock()
	s.id = id
	s.mesh = m
	s.mu.Unlock()

	log.Info().Str("client_id", id).Str("room_id", opts.RoomID).Bool("is_host", opts.IsHost).Msg("Joining room")
	if err := client.Send(protocol.NewJoin(opts.RoomID, opts.IsHost)); err != nil {
		s.abort()
		return nil, newError("join room", err)
	}

	isHost, err := waitFor(ctx, s, s.joined, opts.JoinTimeout, "joined")
	if err != nil {
		s.abort()
		return nil, newError("join room", err)
	}

	s.mu.Lock()
	s.isHost = isHost
	s.mu.Unlock()

	return s, nil
}

func waitFor[T any](ctx context.Context, s *Session, ch <-chan T, timeout time.Duration, what string) (T, error) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, nil
	case <-s.dispatch:
		return zero, ErrDisconnected
	case <-timer.C:
		return zero, fmt.Errorf("%w waiting for %s", ErrTimeout, what)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// run feeds relay messages to the session until the connection closes.
func (s *Session) run() {
	signaling.Run(s.client, router{s})
	close(s.dispatch)

	s.mu.Lock()
	leaving := s.leaving
	s.mu.Unlock()
	if !leaving {
		log.Warn().Str("room_id", s.roomID).Msg("Relay connection closed")
		s.emit(Event{Kind: EventDisconnected, Err: ErrDisconnected})
	}
}

// abort undoes a partial Start.
func (s *Session) abort() {
	s.mu.Lock()
	s.leaving = true
	m := s.mesh
	s.mu.Unlock()

	if m != nil {
		m.Leave()
	} else {
		s.stream.Stop()
		s.client.Close()
	}
	<-s.dispatch
	s.closeEvents()
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) RoomID() string {
	return s.roomID
}

func (s *Session) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHost
}

// InviteLink is the web address other people open to join this room.
func (s *Session) InviteLink() string {
	return s.cfg.InviteLink(s.roomID)
}

// Events delivers presentation events. It is closed by Leave. Events are
// dropped when the reader falls behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Participants returns the remote identities currently known, sorted.
func (s *Session) Participants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PeerMediaState returns the last media state a peer announced.
func (s *Session) PeerMediaState(peerID string) (protocol.MediaState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.peers[peerID]
	return st, ok
}

func (s *Session) Links() []mesh.LinkInfo {
	return s.mesh.Links()
}

// MediaState reports what we are currently sending.
func (s *Session) MediaState() protocol.MediaState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediaStateLocked()
}

func (s *Session) mediaStateLocked() protocol.MediaState {
	return protocol.MediaState{
		Audio:  s.stream.Audio != nil && s.stream.Audio.Enabled(),
		Video:  s.stream.Video != nil && s.stream.Video.Enabled(),
		Screen: s.screen != nil,
	}
}

// ToggleMic flips the microphone and returns whether it is now on.
func (s *Session) ToggleMic() (bool, error) {
	return s.toggle(s.stream.Audio)
}

// ToggleCamera flips the camera and returns whether it is now on.
func (s *Session) ToggleCamera() (bool, error) {
	return s.toggle(s.stream.Video)
}

func (s *Session) toggle(t *media.Track) (bool, error) {
	s.mu.Lock()
	if s.leaving {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if t == nil {
		s.mu.Unlock()
		return false, ErrMediaUnavailable
	}
	t.SetEnabled(!t.Enabled())
	on := t.Enabled()
	st := s.mediaStateLocked()
	s.mu.Unlock()

	s.mesh.SetMediaState(st)
	return on, nil
}

func (s *Session) setEnabled(t *media.Track, on bool) {
	if t == nil {
		return
	}
	s.mu.Lock()
	t.SetEnabled(on)
	st := s.mediaStateLocked()
	m := s.mesh
	s.mu.Unlock()

	if m != nil {
		m.SetMediaState(st)
	}
}

// ShareScreen replaces the outgoing camera video with a track from src on
// every link. If any link rejects the track, the previous video is put back
// and the failure is returned.
func (s *Session) ShareScreen(ctx context.Context, src media.TrackSource) error {
	s.mu.Lock()
	if s.leaving {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	track, err := src.AcquireTrack(ctx)
	if err != nil {
		return wrapError("share screen", fmt.Errorf("%w: %w", ErrMediaUnavailable, err), "")
	}

	if err := s.mesh.ReplaceVideo(track); err != nil {
		s.mu.Lock()
		restore := s.stream.Video
		if s.screen != nil {
			restore = s.screen
		}
		s.mu.Unlock()
		s.mesh.ReplaceVideo(restore)
		track.Stop()
		return newError("share screen", err)
	}

	s.mu.Lock()
	prev := s.screen
	s.screen = track
	st := s.mediaStateLocked()
	s.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	s.mesh.SetMediaState(st)
	log.Info().Str("track", track.ID()).Msg("Screen sharing started")
	return nil
}

// StopScreenShare restores the camera track. It is a no-op when nothing is
// being shared.
func (s *Session) StopScreenShare() error {
	s.mu.Lock()
	screen := s.screen
	s.mu.Unlock()

	if screen == nil {
		return nil
	}
	if err := s.mesh.ReplaceVideo(s.stream.Video); err != nil {
		return newError("stop screen share", err)
	}

	s.mu.Lock()
	s.screen = nil
	st := s.mediaStateLocked()
	s.mu.Unlock()

	screen.Stop()
	s.mesh.SetMediaState(st)
	log.Info().Msg("Screen sharing stopped")
	return nil
}

// HostAction asks the relay to deliver action to target. Only the room host
// may do this; the relay drops it otherwise.
func (s *Session) HostAction(target, action string) error {
	s.mu.Lock()
	isHost, leaving := s.isHost, s.leaving
	s.mu.Unlock()

	if leaving {
		return ErrClosed
	}
	if !isHost {
		return newError("host action", ErrNotHost)
	}
	if err := s.client.Send(protocol.NewHostAction(s.roomID, target, action)); err != nil {
		return newError("host action", err)
	}
	return nil
}

// Leave closes every link, stops local media and disconnects from the
// relay. It is safe to call more than once.
func (s *Session) Leave() error {
	s.leaveOnce.Do(func() {
		s.mu.Lock()
		s.leaving = true
		s.mu.Unlock()

		if err := s.mesh.Leave(); err != nil {
			s.leaveErr = newError("leave", err)
		}
		<-s.dispatch
		if s.recorder != nil {
			s.recorder.Wait()
		}
		s.closeEvents()
		log.Info().Str("room_id", s.roomID).Msg("Left room")
	})
	return s.leaveErr
}

func (s *Session) emit(ev Event) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if s.evClosed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Debug().Str("kind", string(ev.Kind)).Msg("Event buffer full, dropping event")
	}
}

func (s *Session) closeEvents() {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if !s.evClosed {
		s.evClosed = true
		close(s.events)
	}
}

func (s *Session) currentMesh() *mesh.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mesh
}

// relaySignaler sends mesh signals through the relay connection.
type relaySignaler struct {
	client *signaling.Client
	roomID string
}

func (r relaySignaler) SendSignal(to string, payload json.RawMessage) error {
	return r.client.Send(protocol.NewSignal(r.roomID, to, payload))
}

// router handles relay messages for a session.
type router struct{ s *Session }

func (r router) HandleWelcome(id string) {
	select {
	case r.s.welcome <- id:
	default:
	}
}

func (r router) HandleJoined(roomID string, isHost bool) {
	s := r.s
	s.mu.Lock()
	first := !s.joinAcked
	s.joinAcked = true
	changed := !first && s.isHost != isHost
	s.isHost = isHost
	s.mu.Unlock()

	if first {
		s.joined <- isHost
		return
	}
	if changed {
		log.Info().Str("room_id", roomID).Bool("is_host", isHost).Msg("Host role changed")
		s.emit(Event{Kind: EventHostChanged, IsHost: isHost})
	}
}

func (r router) HandlePeerJoined(id string) {
	m := r.s.currentMesh()
	if m == nil {
		return
	}
	r.s.addPeer(id)
	m.HandlePeerJoined(id)
}

func (r router) HandleSignal(from string, payload json.RawMessage) {
	m := r.s.currentMesh()
	if m == nil {
		return
	}
	// An offer from someone we have not seen yet means they were already in
	// the room when we joined.
	if sig, err := protocol.DecodeSignal(payload); err == nil && sig.Kind() == protocol.KindOffer {
		r.s.addPeer(from)
	}
	m.HandleSignal(from, payload)
}

func (r router) HandlePeerLeft(id string) {
	m := r.s.currentMesh()
	if m == nil {
		return
	}
	s := r.s
	s.mu.Lock()
	_, known := s.peers[id]
	delete(s.peers, id)
	s.mu.Unlock()

	m.HandlePeerLeft(id)
	if known {
		s.emit(Event{Kind: EventParticipantLeft, PeerID: id})
	}
}

func (r router) HandleHostAction(action string) {
	s := r.s
	switch action {
	case protocol.ActionMute:
		s.setEnabled(s.stream.Audio, false)
	case protocol.ActionStopVideo:
		s.setEnabled(s.stream.Video, false)
	default:
		log.Debug().Str("action", action).Msg("Ignoring unknown host action")
		return
	}
	log.Info().Str("action", action).Msg("Host action applied")
	s.emit(Event{Kind: EventHostAction, Action: action})
}

func (s *Session) addPeer(id string) {
	s.mu.Lock()
	_, known := s.peers[id]
	if !known {
		s.peers[id] = protocol.MediaState{}
	}
	s.mu.Unlock()

	if !known {
		s.emit(Event{Kind: EventParticipantJoined, PeerID: id})
	}
}

// presenter turns mesh callbacks into session events.
type presenter struct{ s *Session }

func (p presenter) StreamAdded(peerID string, track media.RemoteTrack) {
	s := p.s
	if s.recorder != nil {
		if err := s.recorder.Record(peerID, track); err != nil {
			log.Warn().Err(err).Str("peer_id", peerID).Msg("Failed to record track")
			s.emit(Event{Kind: EventError, PeerID: peerID, Err: err})
			go drain(track.Reader)
		}
	} else {
		go drain(track.Reader)
	}
	s.emit(Event{Kind: EventStreamAdded, PeerID: peerID, Track: track})
}

func (p presenter) StreamRemoved(peerID string) {
	p.s.emit(Event{Kind: EventStreamRemoved, PeerID: peerID})
}

func (p presenter) MediaStateChanged(peerID string, st protocol.MediaState) {
	s := p.s
	s.mu.Lock()
	if _, ok := s.peers[peerID]; ok {
		s.peers[peerID] = st
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventMediaState, PeerID: peerID, MediaState: st})
}

func (p presenter) LinkStateChanged(peerID string, st mesh.State) {
	p.s.emit(Event{Kind: EventLinkState, PeerID: peerID, LinkState: st})
}

// drain consumes a remote track nobody renders so its buffers keep moving.
func drain(r media.RTPReader) {
	if r == nil {
		return
	}
	for {
		if _, _, err := r.ReadRTP(); err != nil {
			if err != io.EOF {
				log.Trace().Err(err).Msg("Remote track ended")
			}
			return
		}
	}
}
