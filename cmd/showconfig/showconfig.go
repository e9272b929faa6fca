// Package showconfig prints the effective configuration.
package showconfig

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/voicecap/internal/conf"
)

// Command creates the showconfig command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "showconfig",
		Short: "Print the effective configuration as YAML",
		Long:  "Print the configuration after defaults, config file, environment and flags are merged. The sentry DSN is masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := settings.ToYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
