package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaclejames/OSC-HSL/osc"
)

func discoverCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover <host:port>",
		Short: "Query a handshake endpoint for its app roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := osc.NewClient().Discover(ctx, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION")
			for _, app := range status.Apps {
				fmt.Fprintf(w, "%s\t%s\t%s\n", app.ID, app.FriendlyName, app.Version)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if len(status.AdditionalData) > 0 {
				fmt.Printf("\nadditional data: %d bytes\n", len(status.AdditionalData))
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "How long to wait for the status reply")

	return cmd
}
