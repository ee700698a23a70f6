package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Format names a configuration document's on-disk encoding (spec §6
// "A document in JSON or YAML").
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Load reads and decodes a configuration document from path in the
// given format (spec §6 "validate --config-file=<path>
// [--config-format=yaml|json]"). It does not call Validate; callers
// decide whether and when to validate.
func Load(path string, format Format) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode json config: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unknown config format %q", format)
	}
	return cfg, nil
}

// Save encodes cfg in the given format and writes it to path (spec §6
// "convert --destination-file=<path|-> --destination-format=<yaml|json>").
// path is always treated as a file name, "-" included; callers writing to
// stdout use Marshal instead.
func Save(cfg Config, path string, format Format) error {
	data, err := Marshal(cfg, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal encodes cfg in the given format without touching the
// filesystem, used both by Save and by callers writing to stdout.
func Marshal(cfg Config, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json config: %w", err)
		}
		return data, nil
	case FormatYAML, "":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode yaml config: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
}
