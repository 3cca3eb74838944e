package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
)

// RTPReader is satisfied by *webrtc.TrackRemote.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RemoteTrack is a track received from a peer.
type RemoteTrack struct {
	Kind   Kind
	Codec  string
	Reader RTPReader
}

type rtpWriter interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// Recorder writes received tracks to <dir>/<peer>-audio.ogg and
// <dir>/<peer>-video.ivf.
type Recorder struct {
	dir string
	wg  sync.WaitGroup
}

func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	return &Recorder{dir: dir}, nil
}

func (r *Recorder) Path(peerID string, kind Kind) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(peerID)
	ext := "ogg"
	if kind == KindVideo {
		ext = "ivf"
	}
	return filepath.Join(r.dir, fmt.Sprintf("%s-%s.%s", name, kind, ext))
}

// Record copies t to disk until the track ends. The file is created before
// Record returns.
func (r *Recorder) Record(peerID string, t RemoteTrack) error {
	path := r.Path(peerID, t.Kind)

	var (
		w   rtpWriter
		err error
	)
	switch t.Kind {
	case KindAudio:
		if !strings.EqualFold(t.Codec, webrtc.MimeTypeOpus) {
			return fmt.Errorf("record %s: unsupported audio codec %q", peerID, t.Codec)
		}
		w, err = oggwriter.New(path, 48000, 2)
	case KindVideo:
		w, err = ivfwriter.New(path, ivfwriter.WithCodec(t.Codec))
	default:
		return fmt.Errorf("record %s: unknown track kind %q", peerID, t.Kind)
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", peerID, err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := w.Close(); err != nil {
				log.Debug().Err(err).Str("file", path).Msg("Failed to close recording")
			}
		}()

		for {
			pkt, _, err := t.Reader.ReadRTP()
			if err != nil {
				return
			}
			if err := w.WriteRTP(pkt); err != nil {
				log.Debug().Err(err).Str("file", path).Msg("Dropping packet")
			}
		}
	}()

	log.Info().Str("peer_id", peerID).Str("file", path).Msg("Recording remote track")
	return nil
}

// Wait blocks until every recorded track has ended.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
