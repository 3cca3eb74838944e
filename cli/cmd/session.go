package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/TusharChoudharyy/zava-chat-app/internal/config"
	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/session"
	"github.com/TusharChoudharyy/zava-chat-app/internal/ui"
	"github.com/TusharChoudharyy/zava-chat-app/internal/webrtc"
)

// connectionFlags are shared by every command that talks to the relay.
type connectionFlags struct {
	domain   string
	server   string
	stun     string
	turn     string
	turnUser string
	turnPass string
	relay    bool
}

// mediaFlags pick what the local participant sends.
type mediaFlags struct {
	audio   string
	video   string
	screen  string
	record  string
	noMedia bool
}

var (
	flagConn  connectionFlags
	flagMedia mediaFlags
)

func addConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	cmd.Flags().StringVarP(&f.domain, "domain", "d", "", "Custom domain")
	cmd.Flags().StringVar(&f.server, "server", "", "Relay WebSocket URL (default wss://<domain>/ws)")
}

func addSessionFlags(cmd *cobra.Command, f *connectionFlags, m *mediaFlags) {
	addConnectionFlags(cmd, f)
	cmd.Flags().StringVarP(&f.stun, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&f.turn, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVarP(&f.turnUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&f.turnPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().BoolVarP(&f.relay, "relay", "r", false, "Force relay mode")

	cmd.Flags().StringVar(&m.audio, "audio", "", "Ogg/Opus file to use as the microphone")
	cmd.Flags().StringVar(&m.video, "video", "", "IVF file to use as the camera")
	cmd.Flags().StringVar(&m.screen, "screen", "", "IVF file to share when screen sharing")
	cmd.Flags().StringVar(&m.record, "record", "", "Directory to record remote tracks into")
	cmd.Flags().BoolVar(&m.noMedia, "no-media", false, "Join with silent tracks")
}

func loadConfig(f connectionFlags) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Domain:     f.domain,
		Server:     f.server,
		STUNServer: f.stun,
		TURNServer: f.turn,
		TURNUser:   f.turnUser,
		TURNPass:   f.turnPass,
		ForceRelay: f.relay,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (m mediaFlags) source() media.Source {
	if m.noMedia {
		return media.SilentSource{}
	}
	return media.FileSource{AudioPath: m.audio, VideoPath: m.video, Loop: true}
}

func (m mediaFlags) screenSource() media.TrackSource {
	if m.screen == "" {
		return nil
	}
	return media.VideoFile{Path: m.screen, Loop: true}
}

// preparedSource hands session.Start a stream that was acquired up front.
type preparedSource struct {
	stream *media.Stream
}

func (p preparedSource) Acquire(context.Context) (*media.Stream, error) {
	return p.stream, nil
}

func acquireMedia(ctx context.Context, src media.Source) (*media.Stream, error) {
	sp := ui.NewWaitingSpinner("Preparing camera and microphone...")
	sp.Start()
	stream, err := src.Acquire(ctx)
	sp.Stop()
	if err != nil {
		return nil, fmt.Errorf("acquire media: %w: %w (check the media files or use --no-media)", session.ErrMediaUnavailable, err)
	}
	return stream, nil
}

// runMeeting starts a session in roomID and shows the meeting view until
// the user leaves.
func runMeeting(roomID string, isHost bool, f connectionFlags, m mediaFlags) error {
	if m.noMedia && (m.audio != "" || m.video != "") {
		return errors.New("--no-media cannot be combined with --audio or --video")
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	connector, err := webrtc.NewConnector(webrtc.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("set up WebRTC: %w", err)
	}

	var recorder *media.Recorder
	if m.record != "" {
		recorder, err = media.NewRecorder(m.record)
		if err != nil {
			return fmt.Errorf("set up recorder: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintln(ui.Output)
	stream, err := acquireMedia(ctx, m.source())
	if err != nil {
		return err
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	s, err := session.Start(ctx, session.Options{
		Config:    cfg,
		RoomID:    roomID,
		IsHost:    isHost,
		Media:     preparedSource{stream},
		Connector: connector,
		Recorder:  recorder,
	})
	stopSpinner()
	if err != nil {
		return err
	}
	stop()

	fmt.Fprintln(ui.Output, ui.RoomInfo{
		RoomID:     s.RoomID(),
		InviteLink: s.InviteLink(),
		Host:       s.IsHost(),
	}.View())

	meetingErr := ui.RunMeeting(s, m.screenSource())
	if err := s.Leave(); err != nil && meetingErr == nil {
		meetingErr = err
	}
	if meetingErr != nil {
		return meetingErr
	}

	ui.PrintSuccess("Left the room")
	if recorder != nil {
		ui.PrintInfof("Recordings saved in %s", m.record)
	}
	return nil
}
