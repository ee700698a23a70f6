package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeswehack/ywh2bt-go/internal/tester"
)

func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Probe every configured platform and tracker (spec §4.8)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguredFile()
			if err != nil {
				return err
			}
			results, err := tester.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			for _, r := range results {
				status := "ok"
				if r.Err != nil {
					status = r.Err.Error()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", r.Kind, r.Name, status)
			}
			if !tester.Success(results) {
				return fmt.Errorf("one or more endpoints failed connectivity testing")
			}
			return nil
		},
	}
}
