// Package webrtc implements mesh.Connector on top of Pion.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/config"
	"github.com/TusharChoudharyy/zava-chat-app/internal/logging"
	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/mesh"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
)

var ErrNoVideoSender = errors.New("connection has no video sender")

type Options struct {
	STUNServers []string
	TURNServers []string
	TURNUser    string
	TURNPass    string

	// ForceRelay restricts ICE to TURN candidates. It only applies when TURN
	// servers are configured.
	ForceRelay bool

	// DetectRelay is consulted when ForceRelay is false. Defaults to
	// ShouldForceRelay.
	DetectRelay func() bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	user, pass := cfg.TURNCredentials()
	return Options{
		STUNServers: cfg.STUNServers(),
		TURNServers: cfg.TURNServers(),
		TURNUser:    user,
		TURNPass:    pass,
		ForceRelay:  cfg.ForceRelay,
	}
}

// Configuration builds the ICE configuration for every peer connection.
func (o Options) Configuration() pion.Configuration {
	var servers []pion.ICEServer
	if len(o.STUNServers) > 0 {
		servers = append(servers, pion.ICEServer{URLs: o.STUNServers})
	}
	if len(o.TURNServers) > 0 {
		servers = append(servers, pion.ICEServer{
			URLs:       o.TURNServers,
			Username:   o.TURNUser,
			Credential: o.TURNPass,
		})
	}

	detect := o.DetectRelay
	if detect == nil {
		detect = ShouldForceRelay
	}

	policy := pion.ICETransportPolicyAll
	if len(o.TURNServers) > 0 && (o.ForceRelay || detect()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{ICEServers: servers, ICETransportPolicy: policy}
}

// Connector creates Pion peer connections sharing one API instance.
type Connector struct {
	api    *pion.API
	config pion.Configuration
}

func NewConnector(opts Options) (*Connector, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	// Ask senders for a keyframe every few seconds so recordings and late
	// decoders recover.
	pli, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create PLI interceptor: %w", err)
	}
	ir.Add(pli)

	se := pion.SettingEngine{LoggerFactory: logging.PionFactory{}}

	cfg := opts.Configuration()
	if cfg.ICETransportPolicy == pion.ICETransportPolicyRelay {
		log.Info().Msg("Forcing TURN relay for peer connections")
	}

	return &Connector{
		api: pion.NewAPI(
			pion.WithMediaEngine(m),
			pion.WithInterceptorRegistry(ir),
			pion.WithSettingEngine(se),
		),
		config: cfg,
	}, nil
}

func (c *Connector) NewConnection(ctx context.Context, peerID string, role mesh.Role, tracks []*media.Track, cb mesh.Callbacks) (mesh.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pc, err := c.api.NewPeerConnection(c.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	conn := &Connection{peerID: peerID, pc: pc, cb: cb}

	kinds := map[media.Kind]bool{}
	for _, t := range tracks {
		sender, err := pc.AddTrack(t.Local)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s track: %w", t.Kind, err)
		}
		if t.Kind == media.KindVideo {
			conn.video = sender
		}
		kinds[t.Kind] = true
		go drainRTCP(sender)
	}

	if role == mesh.RoleInitiator {
		// Still receive what the peer sends when we have nothing to send.
		for _, k := range []struct {
			kind media.Kind
			typ  pion.RTPCodecType
		}{
			{media.KindAudio, pion.RTPCodecTypeAudio},
			{media.KindVideo, pion.RTPCodecTypeVideo},
		} {
			if kinds[k.kind] {
				continue
			}
			if _, err := pc.AddTransceiverFromKind(k.typ, pion.RTPTransceiverInit{Direction: pion.RTPTransceiverDirectionRecvonly}); err != nil {
				pc.Close()
				return nil, fmt.Errorf("add %s transceiver: %w", k.kind, err)
			}
		}

		ordered := true
		dc, err := pc.CreateDataChannel(protocol.ControlLabel, &pion.DataChannelInit{Ordered: &ordered})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("create control channel: %w", err)
		}
		conn.attachControl(dc)
	} else {
		pc.OnDataChannel(func(dc *pion.DataChannel) {
			if dc.Label() != protocol.ControlLabel {
				log.Debug().Str("peer_id", peerID).Str("label", dc.Label()).Msg("Ignoring data channel")
				return
			}
			conn.attachControl(dc)
		})
	}

	pc.OnICECandidate(func(ic *pion.ICECandidate) {
		if ic == nil {
			return
		}
		cb.OnCandidate(candidateFromPion(ic.ToJSON()))
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		kind := media.KindAudio
		if track.Kind() == pion.RTPCodecTypeVideo {
			kind = media.KindVideo
		}
		cb.OnTrack(media.RemoteTrack{Kind: kind, Codec: track.Codec().MimeType, Reader: track})
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Debug().Str("peer_id", peerID).Str("state", state.String()).Msg("Peer connection state changed")
		if state == pion.PeerConnectionStateFailed {
			cb.OnFailed(fmt.Errorf("peer connection %s", state))
		}
	})

	return conn, nil
}

// Connection wraps one Pion peer connection.
type Connection struct {
	peerID string
	pc     *pion.PeerConnection
	cb     mesh.Callbacks
	video  *pion.RTPSender

	mu      sync.Mutex
	control *pion.DataChannel
}

func (c *Connection) attachControl(dc *pion.DataChannel) {
	dc.OnOpen(func() {
		c.mu.Lock()
		c.control = dc
		c.mu.Unlock()
		c.cb.OnControlOpen()
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		c.cb.OnControl(msg.Data)
	})
}

func (c *Connection) CreateOffer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return c.pc.LocalDescription().SDP, nil
}

func (c *Connection) AcceptOffer(ctx context.Context, sdp string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return c.pc.LocalDescription().SDP, nil
}

func (c *Connection) SetAnswer(sdp string) error {
	if err := c.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (c *Connection) AddCandidate(cand protocol.Candidate) error {
	if err := c.pc.AddICECandidate(candidateToPion(cand)); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (c *Connection) ReplaceVideo(track *media.Track) error {
	if c.video == nil {
		return ErrNoVideoSender
	}
	if track == nil {
		return c.video.ReplaceTrack(nil)
	}
	return c.video.ReplaceTrack(track.Local)
}

func (c *Connection) SendControl(data []byte) error {
	c.mu.Lock()
	dc := c.control
	c.mu.Unlock()

	if dc == nil {
		return errors.New("control channel not open")
	}
	return dc.Send(data)
}

func (c *Connection) Close() error {
	return c.pc.Close()
}

// drainRTCP reads incoming RTCP so interceptors such as NACK keep working.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func candidateToPion(c protocol.Candidate) pion.ICECandidateInit {
	return pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func candidateFromPion(c pion.ICECandidateInit) protocol.Candidate {
	return protocol.Candidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
