package mesh

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
)

// Options wires a Manager to its collaborators.
type Options struct {
	Stream    *media.Stream
	Signaler  Signaler
	Connector Connector
	Presenter Presenter

	// OnLeave runs once at the end of Leave.
	OnLeave func()
}

// Manager keeps at most one Link per remote identity. Handlers never block
// on the network; Leave is the only synchronous operation.
type Manager struct {
	stream    *media.Stream
	signaler  Signaler
	connector Connector
	presenter Presenter
	onLeave   func()

	mu     sync.Mutex
	links  map[string]*Link
	closed bool
	state  protocol.MediaState

	// video is the outgoing video track: the camera, or a screen share.
	video *media.Track

	closing sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		stream:    opts.Stream,
		signaler:  opts.Signaler,
		connector: opts.Connector,
		presenter: opts.Presenter,
		onLeave:   opts.OnLeave,
		links:     make(map[string]*Link),
	}
	if m.presenter == nil {
		m.presenter = nopPresenter{}
	}
	if m.stream != nil {
		m.video = m.stream.Video
		m.state = protocol.MediaState{
			Audio: m.stream.Audio != nil && m.stream.Audio.Enabled(),
			Video: m.stream.Video != nil && m.stream.Video.Enabled(),
		}
	}
	return m
}

// HandlePeerJoined starts an initiator link to id unless one exists.
func (m *Manager) HandlePeerJoined(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if _, ok := m.links[id]; ok {
		log.Debug().Str("peer_id", id).Msg("Link already exists, ignoring peer_joined")
		return
	}
	m.startLocked(id, RoleInitiator)
}

// HandleSignal routes a signal payload from the relay. An offer from an
// unknown peer creates a responder link; anything else from an unknown peer
// is stale and dropped.
func (m *Manager) HandleSignal(from string, payload json.RawMessage) {
	sig, err := protocol.DecodeSignal(payload)
	if err != nil {
		log.Debug().Err(err).Str("peer_id", from).Msg("Dropping undecodable signal")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	l, ok := m.links[from]
	if !ok {
		if sig.Kind() != protocol.KindOffer {
			log.Debug().Str("peer_id", from).Str("kind", string(sig.Kind())).Msg("Dropping stale signal")
			return
		}
		l = m.startLocked(from, RoleResponder)
	}
	l.post(signalEvent{sig})
}

// HandlePeerLeft tears down the link to id.
func (m *Manager) HandlePeerLeft(id string) {
	m.mu.Lock()
	l, ok := m.links[id]
	if ok {
		delete(m.links, id)
	}
	closed := m.closed
	if ok && !closed {
		m.closing.Add(1)
	}
	m.mu.Unlock()

	if !ok || closed {
		return
	}

	log.Info().Str("peer_id", id).Msg("Peer left, closing link")
	go func() {
		defer m.closing.Done()
		l.close()
	}()
}

// SetMediaState records our outgoing media state and tells every peer.
func (m *Manager) SetMediaState(st protocol.MediaState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.state = st
	for _, l := range m.links {
		l.post(mediaStateEvent{st})
	}
}

func (m *Manager) MediaState() protocol.MediaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReplaceVideo switches the outgoing video on every link, and on links
// created later. It waits for the live links to apply the track and returns
// their failures joined.
func (m *Manager) ReplaceVideo(track *media.Track) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.video = track

	type pending struct {
		link   *Link
		result chan error
	}
	waits := make([]pending, 0, len(m.links))
	for _, l := range m.links {
		result := make(chan error, 1)
		l.post(replaceVideoEvent{track: track, result: result})
		waits = append(waits, pending{link: l, result: result})
	}
	m.mu.Unlock()

	var errs []error
	for _, w := range waits {
		select {
		case err := <-w.result:
			if err != nil {
				errs = append(errs, err)
			}
		case <-w.link.done:
		}
	}
	return errors.Join(errs...)
}

// Links returns a snapshot of every live link ordered by peer id.
func (m *Manager) Links() []LinkInfo {
	m.mu.Lock()
	infos := make([]LinkInfo, 0, len(m.links))
	for _, l := range m.links {
		infos = append(infos, l.info())
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].PeerID < infos[j].PeerID })
	return infos
}

// Leave closes every link, stops every local track and runs the OnLeave
// hook. It returns after all link goroutines have exited. The manager is
// unusable afterwards.
func (m *Manager) Leave() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.closed = true
	links := m.links
	m.links = make(map[string]*Link)
	video := m.video
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, l := range links {
		wg.Add(1)
		go func(l *Link) {
			defer wg.Done()
			l.close()
		}(l)
	}
	wg.Wait()
	m.closing.Wait()

	if m.stream != nil {
		m.stream.Stop()
	}
	if video != nil {
		video.Stop()
	}

	log.Info().Int("links", len(links)).Msg("Left mesh")

	if m.onLeave != nil {
		m.onLeave()
	}
	return nil
}

// linkFailed forgets l if it is still the current link for its peer.
func (m *Manager) linkFailed(l *Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.links[l.peerID]; ok && cur == l {
		delete(m.links, l.peerID)
	}
}

func (m *Manager) startLocked(id string, role Role) *Link {
	l := newLink(m, id, role)
	m.links[id] = l

	var tracks []*media.Track
	if m.stream != nil && m.stream.Audio != nil {
		tracks = append(tracks, m.stream.Audio)
	}
	if m.video != nil {
		tracks = append(tracks, m.video)
	}

	log.Debug().Str("peer_id", id).Str("role", string(role)).Msg("Creating peer link")
	go l.run(tracks)
	return l
}
