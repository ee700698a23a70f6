package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the configuration tree root (spec §3 "Configuration tree",
// §6): `trackers` (tagged-union map) and `yeswehack` (platforms map) at
// the document's top level.
type Config struct {
	Trackers  map[string]TrackerConfig  `json:"-" yaml:"-"`
	Platforms map[string]PlatformConfig `json:"-" yaml:"-"`
}

// documentShape is the generic (pre-dispatch) view of the configuration
// document shared by both the JSON and YAML decode paths.
type documentShape struct {
	Trackers  map[string]any            `json:"trackers" yaml:"trackers"`
	Yeswehack map[string]PlatformConfig `json:"yeswehack" yaml:"yeswehack"`
}

// decodeTrackers dispatches each raw tracker entry to its registered
// variant by peeking the `type` field, then remarshals the entry's
// remaining fields into the concrete struct. Using a JSON round-trip as
// the common decode path (rather than reflection per format) lets one
// tagged-union dispatcher serve both the YAML and JSON entry points
// without duplicating decode logic per format, mirroring the teacher's
// preference for one code path reused by multiple callers.
func decodeTrackers(raw map[string]any) (map[string]TrackerConfig, error) {
	out := make(map[string]TrackerConfig, len(raw))
	for name, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tracker %q: expected a mapping, got %T", name, v)
		}

		typeName, _ := m["type"].(string)
		if typeName == "" {
			return nil, fmt.Errorf("tracker %q: missing required \"type\" field", name)
		}

		factory := GetTrackerConfigFactory(typeName)
		if factory == nil {
			return nil, unknownTrackerTypeError(name, typeName)
		}
		cfg := factory()

		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("tracker %q: %w", name, err)
		}
		if err := json.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("tracker %q: %w", name, err)
		}
		out[name] = cfg
	}
	return out, nil
}

// UnmarshalYAML implements yaml.Unmarshaler so *Config can be decoded
// directly by gopkg.in/yaml.v3 (ambient stack, SPEC_FULL §4.0).
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var doc documentShape
	if err := node.Decode(&doc); err != nil {
		return err
	}
	trackers, err := decodeTrackers(toGenericMap(doc.Trackers))
	if err != nil {
		return err
	}
	c.Trackers = trackers
	c.Platforms = doc.Yeswehack
	return nil
}

// MarshalYAML implements yaml.Marshaler, round-tripping the tagged union
// back out as plain maps (P1).
func (c Config) MarshalYAML() (any, error) {
	return c.toDocumentShape()
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Config) UnmarshalJSON(data []byte) error {
	var doc documentShape
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	trackers, err := decodeTrackers(doc.Trackers)
	if err != nil {
		return err
	}
	c.Trackers = trackers
	c.Platforms = doc.Yeswehack
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Config) MarshalJSON() ([]byte, error) {
	doc, err := c.toDocumentShape()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (c Config) toDocumentShape() (map[string]any, error) {
	trackers := make(map[string]any, len(c.Trackers))
	for name, t := range c.Trackers {
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("tracker %q: %w", name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("tracker %q: %w", name, err)
		}
		m["type"] = t.Type()
		trackers[name] = m
	}
	return map[string]any{
		"trackers":  trackers,
		"yeswehack": c.Platforms,
	}, nil
}

// toGenericMap re-keys a YAML-decoded map[string]any tree (which yaml.v3
// may produce with map[string]any sub-maps depending on node shape) into
// the map[string]any shape decodeTrackers expects, tolerating the
// map[any]any shape older yaml libraries in the pack sometimes emit for
// nested mappings.
func toGenericMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeYAMLValue(v)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = normalizeYAMLValue(vv)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = normalizeYAMLValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = normalizeYAMLValue(vv)
		}
		return s
	default:
		return v
	}
}
