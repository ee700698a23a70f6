package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/ywherr"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file against spec §3's invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguredFile()
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return ywherr.New(ywherr.KindConfiguration, "validate", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}
