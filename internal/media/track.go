// Package media provides the local tracks a client sends and records the
// remote tracks it receives.
package media

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// ErrUnavailable is returned when local media cannot be acquired.
var ErrUnavailable = errors.New("local media unavailable")

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// StreamID groups our outgoing tracks on the remote side.
const StreamID = "zava"

// Track is one outgoing local track. Samples written while the track is
// disabled are discarded, so the remote side sees silence or a frozen frame.
type Track struct {
	Kind  Kind
	Local *webrtc.TrackLocalStaticSample

	enabled  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	pumps    sync.WaitGroup
}

func NewTrack(kind Kind, id string, codec webrtc.RTPCodecCapability) (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(codec, id, StreamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}
	t := &Track{Kind: kind, Local: local, stop: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func OpusCodec() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
}

func VideoCodec(mimeType string) webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: mimeType, ClockRate: 90000}
}

func (t *Track) ID() string {
	return t.Local.ID()
}

func (t *Track) Enabled() bool {
	return t.enabled.Load()
}

func (t *Track) SetEnabled(on bool) {
	t.enabled.Store(on)
}

func (t *Track) Stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// Stop halts the track's pump and waits for it to release its input.
func (t *Track) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.pumps.Wait()
}

func (t *Track) WriteSample(s media.Sample) error {
	if !t.Enabled() || t.Stopped() {
		return nil
	}
	return t.Local.WriteSample(s)
}

// run starts a pump that feeds the track until stop is closed.
func (t *Track) run(pump func(stop <-chan struct{})) {
	t.pumps.Add(1)
	go func() {
		defer t.pumps.Done()
		pump(t.stop)
	}()
}

// Stream is the set of local tracks attached to every peer link.
type Stream struct {
	Audio *Track
	Video *Track
}

func (s *Stream) Tracks() []*Track {
	var out []*Track
	if s.Audio != nil {
		out = append(out, s.Audio)
	}
	if s.Video != nil {
		out = append(out, s.Video)
	}
	return out
}

func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Stopped reports whether every track has been stopped.
func (s *Stream) Stopped() bool {
	for _, t := range s.Tracks() {
		if !t.Stopped() {
			return false
		}
	}
	return true
}
