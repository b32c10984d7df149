package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "oschsl",
		Short: "OSC handshake server and discovery client",
		Long: `oschsl advertises a roster of apps over an OSC-framed UDP handshake
channel and receives OSC messages on a separate data channel.

  serve     run the server
  discover  query a server for its roster
  send      send one OSC message
  replay    resend captured handshake datagrams`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		discoverCmd(),
		sendCmd(),
		replayCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
