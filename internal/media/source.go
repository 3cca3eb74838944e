package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"
)

const (
	oggPageDuration   = 20 * time.Millisecond
	defaultFrameDelay = 33 * time.Millisecond
)

// Source acquires the local stream for a session.
type Source interface {
	Acquire(ctx context.Context) (*Stream, error)
}

// TrackSource acquires a single video track, used for screen sharing.
type TrackSource interface {
	AcquireTrack(ctx context.Context) (*Track, error)
}

// SilentSource creates audio and video tracks that never carry samples.
type SilentSource struct{}

func (SilentSource) Acquire(context.Context) (*Stream, error) {
	audio, err := NewTrack(KindAudio, "audio", OpusCodec())
	if err != nil {
		return nil, err
	}
	video, err := NewTrack(KindVideo, "video", VideoCodec(webrtc.MimeTypeVP8))
	if err != nil {
		return nil, err
	}
	return &Stream{Audio: audio, Video: video}, nil
}

// FileSource plays an Ogg/Opus file as the microphone and an IVF file as
// the camera. A kind without a path gets a silent track.
type FileSource struct {
	AudioPath string
	VideoPath string
	Loop      bool
}

func (s FileSource) Acquire(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var audio, video *Track

	if s.AudioPath != "" {
		t, err := openOggTrack(s.AudioPath, s.Loop)
		if err != nil {
			return nil, err
		}
		audio = t
	} else {
		t, err := NewTrack(KindAudio, "audio", OpusCodec())
		if err != nil {
			return nil, err
		}
		audio = t
	}

	if s.VideoPath != "" {
		t, err := openIVFTrack(s.VideoPath, "video", s.Loop)
		if err != nil {
			audio.Stop()
			return nil, err
		}
		video = t
	} else {
		t, err := NewTrack(KindVideo, "video", VideoCodec(webrtc.MimeTypeVP8))
		if err != nil {
			audio.Stop()
			return nil, err
		}
		video = t
	}

	return &Stream{Audio: audio, Video: video}, nil
}

// VideoFile is a TrackSource backed by an IVF file.
type VideoFile struct {
	Path string
	Loop bool
}

func (v VideoFile) AcquireTrack(ctx context.Context) (*Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return openIVFTrack(v.Path, "screen", v.Loop)
}

func openOggTrack(path string, loop bool) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}

	t, err := NewTrack(KindAudio, "audio", OpusCodec())
	if err != nil {
		f.Close()
		return nil, err
	}

	t.run(func(stop <-chan struct{}) {
		defer f.Close()

		var lastGranule uint64
		ticker := time.NewTicker(oggPageDuration)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			page, header, err := ogg.ParseNextPage()
			if errors.Is(err, io.EOF) && loop {
				if ogg, err = rewindOgg(f); err != nil {
					log.Warn().Err(err).Str("file", path).Msg("Failed to rewind audio")
					return
				}
				lastGranule = 0
				continue
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Warn().Err(err).Str("file", path).Msg("Failed to read audio page")
				}
				return
			}

			// Duration of the page from the change in granule position.
			sampleCount := float64(header.GranulePosition - lastGranule)
			lastGranule = header.GranulePosition
			duration := time.Duration((sampleCount/48000)*1000) * time.Millisecond

			if err := t.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
				log.Debug().Err(err).Msg("Failed to write audio sample")
			}
		}
	})
	return t, nil
}

func rewindOgg(f *os.File) (*oggreader.OggReader, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	ogg, _, err := oggreader.NewWith(f)
	return ogg, err
}

func openIVFTrack(path, id string, loop bool) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ivf, header, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}

	mimeType, err := mimeForFourCC(header.FourCC)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}

	t, err := NewTrack(KindVideo, id, VideoCodec(mimeType))
	if err != nil {
		f.Close()
		return nil, err
	}

	delay := defaultFrameDelay
	if header.TimebaseDenominator != 0 && header.TimebaseNumerator != 0 {
		delay = time.Millisecond * time.Duration((float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000)
	}

	t.run(func(stop <-chan struct{}) {
		defer f.Close()

		ticker := time.NewTicker(delay)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			frame, _, err := ivf.ParseNextFrame()
			if errors.Is(err, io.EOF) && loop {
				if _, err := f.Seek(0, io.SeekStart); err != nil {
					log.Warn().Err(err).Str("file", path).Msg("Failed to rewind video")
					return
				}
				if ivf, _, err = ivfreader.NewWith(f); err != nil {
					log.Warn().Err(err).Str("file", path).Msg("Failed to rewind video")
					return
				}
				continue
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Warn().Err(err).Str("file", path).Msg("Failed to read video frame")
				}
				return
			}

			if err := t.WriteSample(media.Sample{Data: frame, Duration: delay}); err != nil {
				log.Debug().Err(err).Msg("Failed to write video sample")
			}
		}
	})
	return t, nil
}

func mimeForFourCC(fourCC string) (string, error) {
	switch fourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	case "AV01":
		return webrtc.MimeTypeAV1, nil
	default:
		return "", fmt.Errorf("unsupported ivf codec %q", fourCC)
	}
}
