package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/TusharChoudharyy/zava-chat-app/internal/registry"
	"github.com/TusharChoudharyy/zava-chat-app/internal/ui"
)

const roomsTimeout = 10 * time.Second

var errRoomsHidden = errors.New("this relay does not expose its room list")

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms open on the relay",
	Long: `List the rooms currently open on the relay. The relay must be started
with expose_rooms enabled.

Examples:
  zava rooms
  zava rooms --server ws://localhost:8080/ws`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(flagConn)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), roomsTimeout)
		defer cancel()

		rooms, err := fetchRooms(ctx, http.DefaultClient, cfg.HTTPBase()+"/rooms")
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			ui.PrintInfo("No open rooms")
			return nil
		}

		rows := make([]ui.RoomRow, 0, len(rooms))
		for _, r := range rooms {
			rows = append(rows, ui.RoomRow{
				ID:           r.ID,
				Participants: len(r.Participants),
				HasHost:      r.Host != "",
				CreatedAt:    r.CreatedAt,
			})
		}
		fmt.Fprintln(ui.Output, ui.RoomsTable(rows, time.Now()))
		return nil
	},
}

func fetchRooms(ctx context.Context, client *http.Client, endpoint string) ([]registry.View, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rooms: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errRoomsHidden
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch rooms: unexpected status %s", resp.Status)
	}

	var body struct {
		Rooms []registry.View `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return body.Rooms, nil
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	addConnectionFlags(roomsCmd, &flagConn)
}
