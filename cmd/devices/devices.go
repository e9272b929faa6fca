// Package devices lists the capture devices of the platform audio backend.
package devices

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/voicecap/internal/audiocore/sources/malgo"
)

// Command creates the devices command.
func Command() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := malgo.ListDevices()
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devices, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")

	return cmd
}

func printDevices(w io.Writer, devices []malgo.DeviceInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No capture devices found")
		return err
	}

	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %d: %s (id %s)\n", marker, d.Index, d.Name, d.ID); err != nil {
			return err
		}
	}
	return nil
}
