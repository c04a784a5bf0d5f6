package cmd

import (
	"voicewave/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the VoiceWave API server",
	Long:  `Starts the HTTP server serving the VoiceWave API and websocket comment rooms.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
