// Package cli assembles the command surface spec §6 names — validate,
// synchronize (alias sync), test, convert, schema — on top of
// github.com/spf13/cobra, grounded on the pack's githubnext-gh-aw and
// hk9890-perles repos rather than the teacher (the teacher's own
// cmd/at/main.go has no subcommand concept, just a single run loop).
//
// Exit-code classification (spec §6 "0 success, 1 core error, 2 usage
// error, 130 interrupted") lives here, one layer above the teacher's own
// into/logi process lifecycle: cmd/ywh2bt/main.go still drives signal
// handling and top-level logging through into.Init exactly as
// cmd/at/main.go does, and only consults Execute's returned error to
// decide between the finer-grained 1/2 split that into itself has no
// notion of.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/ywherr"
)

var (
	version = "dev"

	configFile   string
	configFormat string
)

// SetVersion records the build's version string for `--version`/`-V`,
// set from cmd/ywh2bt/main.go the same way the teacher's main.go sets
// config.Service from its own name/version pair.
func SetVersion(v string) { version = v }

// NewRootCommand builds the ywh2bt command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ywh2bt",
		Short:         "Mirror YesWeHack bug-bounty reports into external issue trackers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "ywh2bt version %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}
	root.Flags().BoolP("version", "V", false, "print version information")

	root.PersistentFlags().StringVar(&configFile, "config-file", "", "path to the configuration file")
	root.PersistentFlags().StringVar(&configFormat, "config-format", "", `"yaml" or "json" (default: inferred from --config-file's extension)`)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(
		newValidateCommand(),
		newSynchronizeCommand(),
		newTestCommand(),
		newConvertCommand(),
		newSchemaCommand(),
	)
	return root
}

// loadConfiguredFile resolves --config-file/--config-format off the
// persistent flags and loads the document. A missing --config-file is a
// usage error (spec §6 "2 on argument error"), not a core one.
func loadConfiguredFile() (config.Config, error) {
	if configFile == "" {
		return config.Config{}, newUsageError("--config-file is required")
	}
	format, err := resolveFormat(configFile, configFormat)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configFile, format)
	if err != nil {
		return config.Config{}, ywherr.New(ywherr.KindConfiguration, "load config", err)
	}
	return cfg, nil
}

// resolveFormat turns an explicit --*-format flag, or (if blank) the
// path's extension, into a config.Format; an unrecognized explicit value
// is a usage error, while an unrecognized/missing extension with no
// explicit flag defaults to YAML, matching config.Load's own default.
func resolveFormat(path, explicit string) (config.Format, error) {
	switch explicit {
	case "":
		return formatFromExtension(path), nil
	case "yaml":
		return config.FormatYAML, nil
	case "json":
		return config.FormatJSON, nil
	default:
		return "", newUsageError("unknown format %q: must be \"yaml\" or \"json\"", explicit)
	}
}

func formatFromExtension(path string) config.Format {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			switch path[i+1:] {
			case "json":
				return config.FormatJSON
			default:
				return config.FormatYAML
			}
		}
	}
	return config.FormatYAML
}
