package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaclejames/OSC-HSL/osc"
)

func replayCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "replay <capture-file> <host:port>",
		Short: "Resend datagrams recorded with serve --capture",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			client := osc.NewClient()
			r := osc.NewCaptureReader(f)
			sent := 0
			for {
				datagram, err := r.ReadDatagram()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("capture %s: %w", args[0], err)
				}
				if err := client.SendRaw(cmd.Context(), args[1], datagram); err != nil {
					return err
				}
				sent++
				if interval > 0 {
					time.Sleep(interval)
				}
			}

			fmt.Printf("replayed %d datagrams to %s\n", sent, args[1])
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 10*time.Millisecond, "Pause between datagrams")

	return cmd
}
