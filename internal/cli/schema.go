package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"

	"github.com/yeswehack/ywh2bt-go/internal/config"
)

func newSchemaCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Dump the configuration schema (spec §6)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Schema()
			if err != nil {
				return err
			}
			switch format {
			case "", "text":
				return writeSchemaText(cmd, s)
			case "markdown":
				return writeSchemaMarkdown(cmd, s)
			case "json":
				return writeSchemaJSON(cmd, s)
			default:
				return newUsageError(`unknown --format %q: must be "text", "markdown" or "json"`, format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", `"text", "markdown" or "json"`)
	return cmd
}

func writeSchemaJSON(cmd *cobra.Command, s *jsonschema.Schema) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(data, '\n'))
	return err
}

func writeSchemaText(cmd *cobra.Command, s *jsonschema.Schema) error {
	for name, prop := range s.Properties {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", name, prop.Type)
	}
	return nil
}

func writeSchemaMarkdown(cmd *cobra.Command, s *jsonschema.Schema) error {
	fmt.Fprintln(cmd.OutOrStdout(), "| field | type |")
	fmt.Fprintln(cmd.OutOrStdout(), "| --- | --- |")
	for name, prop := range s.Properties {
		fmt.Fprintf(cmd.OutOrStdout(), "| %s | %s |\n", name, prop.Type)
	}
	return nil
}
