package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benaclejames/OSC-HSL/osc"
)

func sendCmd() *cobra.Command {
	var typeTag string

	cmd := &cobra.Command{
		Use:   "send <host:port> <address> [argument]",
		Short: "Send one OSC message",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg interface{}
			if len(args) == 3 {
				var err error
				if arg, err = parseArgument(typeTag, args[2]); err != nil {
					return err
				}
			} else if typeTag == "T" || typeTag == "F" {
				arg = typeTag == "T"
			}

			msg, err := osc.NewMessage(args[1], arg)
			if err != nil {
				return err
			}
			return osc.NewClient().Send(cmd.Context(), args[0], msg)
		},
	}

	cmd.Flags().StringVarP(&typeTag, "type", "t", "s", "Argument type tag: i, h, f, d, s, T, F")

	return cmd
}

func parseArgument(typeTag, value string) (interface{}, error) {
	switch typeTag {
	case "i":
		n, err := strconv.ParseInt(value, 10, 32)
		return int32(n), err
	case "h":
		return strconv.ParseInt(value, 10, 64)
	case "f":
		f, err := strconv.ParseFloat(value, 32)
		return float32(f), err
	case "d":
		return strconv.ParseFloat(value, 64)
	case "s":
		return value, nil
	case "T", "F":
		return strconv.ParseBool(value)
	default:
		return nil, fmt.Errorf("unsupported type tag %q", typeTag)
	}
}
