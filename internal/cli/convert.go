package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yeswehack/ywh2bt-go/internal/config"
)

func newConvertCommand() *cobra.Command {
	var (
		destinationFile   string
		destinationFormat string
		override          bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Round-trip a configuration file through the typed model (spec §6)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if destinationFile == "" {
				return newUsageError("--destination-file is required")
			}
			destFormat, err := resolveFormat(destinationFile, destinationFormat)
			if err != nil {
				return err
			}
			if destinationFile != "-" {
				if _, statErr := os.Stat(destinationFile); statErr == nil && !override {
					return newUsageError("%s already exists; pass --override to replace it", destinationFile)
				}
			}

			cfg, err := loadConfiguredFile()
			if err != nil {
				return err
			}

			data, err := config.Marshal(cfg, destFormat)
			if err != nil {
				return err
			}
			if destinationFile == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(destinationFile, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&destinationFile, "destination-file", "", `output path, or "-" for stdout`)
	cmd.Flags().StringVar(&destinationFormat, "destination-format", "", `"yaml" or "json" (default: inferred from --destination-file's extension)`)
	cmd.Flags().BoolVar(&override, "override", false, "overwrite --destination-file if it already exists")
	return cmd
}
