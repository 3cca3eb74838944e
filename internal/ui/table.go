package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RoomInfo is the box printed after a room is created or joined.
type RoomInfo struct {
	RoomID     string
	InviteLink string
	Host       bool
}

func (r RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	title := "Joined room"
	if r.Host {
		title = "Room ready, you are the host " + IconHost
	}

	content := fmt.Sprintf("%s %s\n\n%s Room:    %s\n%s Invite:  %s",
		IconSuccess, title,
		IconRoom, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconLink, MutedStyle.Render(r.InviteLink),
	)
	return boxStyle.Render(content)
}

// ParticipantRow is one line of the meeting's participant table.
type ParticipantRow struct {
	ID       string
	Link     string
	Audio    bool
	Video    bool
	Screen   bool
	Selected bool
}

func ParticipantsView(rows []ParticipantRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("Nobody else is here yet. Share the invite link.")
	}

	var data [][]string
	for _, r := range rows {
		marker := " "
		if r.Selected {
			marker = "›"
		}
		data = append(data, []string{marker, shortID(r.ID), r.Link, MediaIcons(r.Audio, r.Video, r.Screen)})
	}

	selected := -1
	for i, r := range rows {
		if r.Selected {
			selected = i
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("", "Peer", "Link", "Media").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row == selected:
				return tableCellStyle.Inherit(SelectedStyle)
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		}).
		Render()
}

// RoomRow is one room reported by the relay's /rooms endpoint.
type RoomRow struct {
	ID           string
	Participants int
	HasHost      bool
	CreatedAt    time.Time
}

// RoomsTable renders the relay's room listing.
func RoomsTable(rows []RoomRow, now time.Time) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.Style().Format.Header = text.FormatUpper
	t.AppendHeader(prettytable.Row{"Room", "Participants", "Host", "Age"})

	for _, r := range rows {
		host := "-"
		if r.HasHost {
			host = IconHost
		}
		t.AppendRow(prettytable.Row{r.ID, strconv.Itoa(r.Participants), host, now.Sub(r.CreatedAt).Round(time.Second).String()})
	}
	t.AppendFooter(prettytable.Row{"Total", strconv.Itoa(len(rows)), "", ""})
	return t.Render()
}

// shortID keeps tables narrow; identities are UUIDs.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
