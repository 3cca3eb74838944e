package mesh

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
)

type linkEvent any

type (
	signalEvent       struct{ sig protocol.Signal }
	localCandidate    struct{ c protocol.Candidate }
	remoteTrackEvent  struct{ track media.RemoteTrack }
	controlOpenEvent  struct{}
	controlEvent      struct{ data []byte }
	failedEvent       struct{ err error }
	mediaStateEvent   struct{ state protocol.MediaState }
	replaceVideoEvent struct {
		track  *media.Track
		result chan<- error
	}
)

// Link is the client's side of one peer connection. Everything touching the
// connection runs on the link's own goroutine, in mailbox order.
type Link struct {
	peerID string
	role   Role
	m      *Manager
	logger zerolog.Logger

	inbox  *mailbox
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state State
	phase Phase

	// owned by run
	conn        Connection
	remoteSet   bool
	pending     []protocol.Candidate
	controlOpen bool
	hasMedia    bool
}

func newLink(m *Manager, peerID string, role Role) *Link {
	ctx, cancel := context.WithCancel(context.Background())
	phase := PhaseAwaitingLocalDescription
	if role == RoleResponder {
		phase = PhaseAwaitingRemoteDescription
	}
	return &Link{
		peerID: peerID,
		role:   role,
		m:      m,
		logger: log.With().Str("peer_id", peerID).Str("role", string(role)).Logger(),
		inbox:  newMailbox(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateNegotiating,
		phase:  phase,
	}
}

func (l *Link) info() LinkInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LinkInfo{PeerID: l.peerID, Role: l.role, State: l.state, Phase: l.phase}
}

func (l *Link) setPhase(p Phase) {
	l.mu.Lock()
	l.phase = p
	l.mu.Unlock()
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	if l.state == s || l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.state = s
	l.mu.Unlock()

	l.logger.Debug().Str("state", string(s)).Msg("Link state changed")
	l.m.presenter.LinkStateChanged(l.peerID, s)
}

func (l *Link) post(ev linkEvent) {
	l.inbox.put(ev)
}

// close cancels whatever the link is waiting on and returns once its
// goroutine has released the connection.
func (l *Link) close() {
	l.cancel()
	<-l.done
}

func (l *Link) callbacks() Callbacks {
	return Callbacks{
		OnCandidate:   func(c protocol.Candidate) { l.post(localCandidate{c}) },
		OnTrack:       func(t media.RemoteTrack) { l.post(remoteTrackEvent{t}) },
		OnControlOpen: func() { l.post(controlOpenEvent{}) },
		OnControl:     func(data []byte) { l.post(controlEvent{data}) },
		OnFailed:      func(err error) { l.post(failedEvent{err}) },
	}
}

func (l *Link) run(tracks []*media.Track) {
	defer close(l.done)
	defer l.finish()

	conn, err := l.m.connector.NewConnection(l.ctx, l.peerID, l.role, tracks, l.callbacks())
	if err != nil {
		l.fail(newLinkError("create connection", l.peerID, err))
		return
	}
	l.conn = conn

	if l.role == RoleInitiator {
		if err := l.offer(); err != nil {
			l.fail(err)
			return
		}
	}

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.inbox.notify:
			for _, ev := range l.inbox.take() {
				if l.ctx.Err() != nil {
					return
				}
				if err := l.handle(ev); err != nil {
					l.fail(err)
					return
				}
			}
		}
	}
}

func (l *Link) fail(err error) {
	if errors.Is(err, context.Canceled) || l.ctx.Err() != nil {
		return
	}
	l.logger.Error().Err(err).Msg("Peer link failed")
	l.m.linkFailed(l)
}

func (l *Link) finish() {
	l.inbox.close()
	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			l.logger.Debug().Err(err).Msg("Failed to close connection")
		}
	}
	l.setState(StateClosed)
	l.m.presenter.StreamRemoved(l.peerID)
}

func (l *Link) handle(ev linkEvent) error {
	switch ev := ev.(type) {
	case signalEvent:
		return l.handleSignal(ev.sig)

	case localCandidate:
		l.send(ev.c)

	case remoteTrackEvent:
		l.hasMedia = true
		l.setPhase(PhaseDone)
		l.setState(StateEstablished)
		l.logger.Info().Str("kind", string(ev.track.Kind)).Str("codec", ev.track.Codec).Msg("Remote stream available")
		l.m.presenter.StreamAdded(l.peerID, ev.track)

	case controlOpenEvent:
		l.controlOpen = true
		l.sendMediaState(l.m.MediaState())

	case controlEvent:
		msg, err := protocol.DecodeControl(ev.data)
		if err != nil {
			l.logger.Debug().Err(err).Msg("Dropping malformed control message")
			return nil
		}
		switch msg.Type {
		case protocol.ControlTypeMediaState:
			var st protocol.MediaState
			if err := msg.DecodePayload(&st); err != nil {
				l.logger.Debug().Err(err).Msg("Dropping malformed media state")
				return nil
			}
			l.m.presenter.MediaStateChanged(l.peerID, st)
		default:
			l.logger.Debug().Str("type", msg.Type).Msg("Unknown control message")
		}

	case mediaStateEvent:
		l.sendMediaState(ev.state)

	case replaceVideoEvent:
		err := l.conn.ReplaceVideo(ev.track)
		if err != nil {
			l.logger.Warn().Err(err).Msg("Failed to replace video track")
			err = newLinkError("replace video", l.peerID, err)
		}
		if ev.result != nil {
			ev.result <- err
		}

	case failedEvent:
		return newLinkError("connection", l.peerID, errors.Join(ErrLinkFailed, ev.err))
	}
	return nil
}

func (l *Link) handleSignal(sig protocol.Signal) error {
	switch s := sig.(type) {
	case protocol.Offer:
		l.setPhase(PhaseAwaitingLocalDescription)
		answer, err := l.conn.AcceptOffer(l.ctx, s.SDP)
		if err != nil {
			return newLinkError("accept offer", l.peerID, err)
		}
		l.remoteDescriptionSet()
		l.send(protocol.Answer{SDP: answer})
		l.negotiated()

	case protocol.Answer:
		if l.role != RoleInitiator || l.remoteSet {
			l.logger.Debug().Msg("Ignoring unexpected answer")
			return nil
		}
		if err := l.conn.SetAnswer(s.SDP); err != nil {
			return newLinkError("set answer", l.peerID, err)
		}
		l.remoteDescriptionSet()
		l.negotiated()

	case protocol.Candidate:
		if !l.remoteSet {
			l.pending = append(l.pending, s)
			return nil
		}
		l.addCandidate(s)
	}
	return nil
}

func (l *Link) offer() error {
	sdp, err := l.conn.CreateOffer(l.ctx)
	if err != nil {
		return newLinkError("create offer", l.peerID, err)
	}
	l.send(protocol.Offer{SDP: sdp})
	l.setPhase(PhaseAwaitingRemoteDescription)
	return nil
}

func (l *Link) remoteDescriptionSet() {
	l.remoteSet = true
	for _, c := range l.pending {
		l.addCandidate(c)
	}
	l.pending = nil
}

// negotiated marks the offer/answer exchange as complete.
func (l *Link) negotiated() {
	if l.hasMedia {
		l.setPhase(PhaseDone)
	} else {
		l.setPhase(PhaseAwaitingMedia)
	}
	l.setState(StateEstablished)
}

func (l *Link) addCandidate(c protocol.Candidate) {
	if err := l.conn.AddCandidate(c); err != nil {
		l.logger.Debug().Err(err).Msg("Failed to add remote candidate")
	}
}

func (l *Link) send(sig protocol.Signal) {
	payload, err := protocol.EncodeSignal(sig)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to encode signal")
		return
	}
	if err := l.m.signaler.SendSignal(l.peerID, payload); err != nil {
		l.logger.Warn().Err(err).Str("kind", string(sig.Kind())).Msg("Failed to send signal")
	}
}

func (l *Link) sendMediaState(st protocol.MediaState) {
	if !l.controlOpen {
		return
	}
	data, err := protocol.EncodeMediaState(st)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to encode media state")
		return
	}
	if err := l.conn.SendControl(data); err != nil {
		l.logger.Debug().Err(err).Msg("Failed to send media state")
	}
}
