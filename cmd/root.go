package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pairline/pairline/internal/ui"
	"github.com/pairline/pairline/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "pairline",
	Short:   "1:1 video room coordinator over WebRTC",
	Long: `Pairline runs rendezvous rooms for two-party WebRTC calls. The serve
command hosts the signaling server; the join command enters a room from
the terminal, negotiates the call, and relays chat over the signaling
channel.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupts are handled per command: serve drains connections, join
// leaves the room through its UI.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
