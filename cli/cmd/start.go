package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TusharChoudharyy/zava-chat-app/internal/roomid"
)

const roomLookupTimeout = 2 * time.Second

var startCmd = &cobra.Command{
	Use:     "start [room-id]",
	Aliases: []string{"host"},
	Short:   "Start a room as its host",
	Long: `Start a room and become its host. The host can ask other participants
to mute or turn off their camera. A memorable room id is generated when
none is given.

Examples:
  zava start
  zava start team-standup
  zava start --video camera.ivf --audio mic.ogg
  zava start --no-media --record ./recordings`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var roomID string
		if len(args) == 1 {
			roomID = args[0]
			if !roomid.Valid(roomID) {
				return fmt.Errorf("invalid room id %q: use lowercase letters, digits, dashes and underscores", roomID)
			}
		} else {
			roomID = roomid.NewUnique(openRooms(cmd.Context(), flagConn))
		}
		return runMeeting(roomID, true, flagConn, flagMedia)
	},
}

// openRooms reports which room ids are already in use on the relay. When the
// relay hides its room list, every id counts as free.
func openRooms(ctx context.Context, f connectionFlags) func(string) bool {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, roomLookupTimeout)
	defer cancel()

	rooms, err := fetchRooms(ctx, http.DefaultClient, cfg.HTTPBase()+"/rooms")
	if err != nil {
		log.Debug().Err(err).Msg("Room list unavailable, skipping uniqueness check")
		return nil
	}

	taken := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		taken[r.ID] = true
	}
	return func(id string) bool { return taken[id] }
}

func init() {
	rootCmd.AddCommand(startCmd)
	addSessionFlags(startCmd, &flagConn, &flagMedia)
}
