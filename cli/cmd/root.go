package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/TusharChoudharyy/zava-chat-app/internal/ui"
	"github.com/TusharChoudharyy/zava-chat-app/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "zava",
	Short:   "Peer-to-peer audio and video rooms from the terminal",
	Long:    `Zava joins peer-to-peer audio/video rooms over WebRTC. Media flows directly between participants; the relay only introduces peers and forwards their negotiation messages. Rooms are shared with the Zava web app, so terminal and browser participants can meet in the same room.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
