package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/mesh"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
	"github.com/TusharChoudharyy/zava-chat-app/internal/session"
)

// Controller is the part of a session the meeting view drives.
// *session.Session satisfies it.
type Controller interface {
	ID() string
	RoomID() string
	IsHost() bool
	InviteLink() string
	MediaState() protocol.MediaState
	Participants() []string
	PeerMediaState(peerID string) (protocol.MediaState, bool)
	Links() []mesh.LinkInfo
	Events() <-chan session.Event

	ToggleMic() (bool, error)
	ToggleCamera() (bool, error)
	ShareScreen(ctx context.Context, src media.TrackSource) error
	StopScreenShare() error
	HostAction(target, action string) error
}

const maxLogLines = 6

type eventMsg struct {
	ev session.Event
	ok bool
}

// MeetingModel is the live bubbletea view of a room.
type MeetingModel struct {
	ctl      Controller
	screen   media.TrackSource
	spinner  spinner.Model
	selected int
	notice   string
	log      []string
	quitting bool
	Err      error
}

// NewMeetingModel builds the view. screen may be nil when no screen source
// was configured.
func NewMeetingModel(ctl Controller, screen media.TrackSource) *MeetingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &MeetingModel{ctl: ctl, screen: screen, spinner: s}
}

func (m *MeetingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m *MeetingModel) waitForEvent() tea.Cmd {
	events := m.ctl.Events()
	return func() tea.Msg {
		ev, ok := <-events
		return eventMsg{ev: ev, ok: ok}
	}
}

func (m *MeetingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case eventMsg:
		if !msg.ok {
			m.quitting = true
			return m, tea.Quit
		}
		m.record(msg.ev)
		if msg.ev.Kind == session.EventDisconnected {
			m.Err = msg.ev.Err
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *MeetingModel) handleKey(key string) tea.Cmd {
	peers := m.ctl.Participants()
	if m.selected >= len(peers) {
		m.selected = max(0, len(peers)-1)
	}

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit

	case "m":
		on, err := m.ctl.ToggleMic()
		m.notice = toggleNotice("Microphone", on, err)

	case "v":
		on, err := m.ctl.ToggleCamera()
		m.notice = toggleNotice("Camera", on, err)

	case "s":
		switch {
		case m.ctl.MediaState().Screen:
			if err := m.ctl.StopScreenShare(); err != nil {
				m.notice = ErrorStyle.Render(err.Error())
			} else {
				m.notice = "Screen sharing stopped"
			}
		case m.screen == nil:
			m.notice = WarningStyle.Render("No screen source, start with --screen <file.ivf>")
		default:
			if err := m.ctl.ShareScreen(context.Background(), m.screen); err != nil {
				m.notice = ErrorStyle.Render(err.Error())
			} else {
				m.notice = "Sharing screen " + IconScreen
			}
		}

	case "c":
		m.notice = fmt.Sprintf("%s Invite: %s", IconCopy, m.ctl.InviteLink())

	case "x":
		if len(peers) == 0 {
			m.notice = MutedStyle.Render("Nobody to mute")
			break
		}
		target := peers[m.selected]
		if err := m.ctl.HostAction(target, protocol.ActionMute); err != nil {
			m.notice = ErrorStyle.Render(err.Error())
		} else {
			m.notice = fmt.Sprintf("Asked %s to mute", shortID(target))
		}

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(peers)-1 {
			m.selected++
		}
	}
	return nil
}

func toggleNotice(what string, on bool, err error) string {
	if err != nil {
		return ErrorStyle.Render(fmt.Sprintf("%s: %v", what, err))
	}
	if on {
		return what + " on"
	}
	return what + " off"
}

func (m *MeetingModel) record(ev session.Event) {
	var line string
	switch ev.Kind {
	case session.EventParticipantJoined:
		line = fmt.Sprintf("%s %s joined", IconPeer, shortID(ev.PeerID))
	case session.EventParticipantLeft:
		line = fmt.Sprintf("%s %s left", IconPeer, shortID(ev.PeerID))
	case session.EventStreamAdded:
		line = fmt.Sprintf("Receiving %s from %s", ev.Track.Kind, shortID(ev.PeerID))
	case session.EventHostAction:
		line = WarningStyle.Render(fmt.Sprintf("The host asked you to %s", strings.ReplaceAll(ev.Action, "_", " ")))
	case session.EventHostChanged:
		if ev.IsHost {
			line = fmt.Sprintf("%s You are now the host", IconHost)
		}
	case session.EventDisconnected:
		line = ErrorStyle.Render("Disconnected from relay")
	case session.EventError:
		line = ErrorStyle.Render(fmt.Sprintf("%s: %v", shortID(ev.PeerID), ev.Err))
	}
	if line == "" {
		return
	}
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m *MeetingModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := fmt.Sprintf("%s %s", IconRoom, m.ctl.RoomID())
	if m.ctl.IsHost() {
		header += " " + BadgeStyle.Render("HOST")
	}
	b.WriteString(HeaderStyle.Render(header))
	b.WriteString("\n")

	st := m.ctl.MediaState()
	b.WriteString(fmt.Sprintf("%s You (%s)  %s\n\n", m.spinner.View(), shortID(m.ctl.ID()), MediaIcons(st.Audio, st.Video, st.Screen)))

	b.WriteString(ParticipantsView(m.rows()))
	b.WriteString("\n")

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString(MutedStyle.Render("  • ") + line + "\n")
		}
	}
	if m.notice != "" {
		b.WriteString("\n" + m.notice + "\n")
	}

	help := "m mic • v camera • s screen • c invite • q leave"
	if m.ctl.IsHost() {
		help = "m mic • v camera • s screen • c invite • ↑/↓ select • x mute peer • q leave"
	}
	b.WriteString(FooterStyle.Render(help))
	return b.String()
}

func (m *MeetingModel) rows() []ParticipantRow {
	links := map[string]mesh.LinkInfo{}
	for _, l := range m.ctl.Links() {
		links[l.PeerID] = l
	}

	var rows []ParticipantRow
	for i, id := range m.ctl.Participants() {
		st, _ := m.ctl.PeerMediaState(id)
		state := "connecting"
		if l, ok := links[id]; ok {
			state = string(l.State)
		}
		rows = append(rows, ParticipantRow{
			ID:       id,
			Link:     state,
			Audio:    st.Audio,
			Video:    st.Video,
			Screen:   st.Screen,
			Selected: m.ctl.IsHost() && i == m.selected,
		})
	}
	return rows
}

// RunMeeting shows the meeting view until the user quits or the relay
// connection drops.
func RunMeeting(ctl Controller, screen media.TrackSource) error {
	model := NewMeetingModel(ctl, screen)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return err
	}
	return model.Err
}
