package config

import (
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema derives a JSON-Schema-equivalent of the configuration model (spec
// §6 "A JSON-Schema-equivalent of this model must be derivable from the
// types"), backing the `schema` CLI command.
//
// google/jsonschema-go's reflection-based ForType (adopted from the pack's
// githubnext-gh-aw, which uses it the same way for MCP tool schemas in
// pkg/cli/mcp_schema.go) derives a schema per concrete Go type; the tagged
// union over tracker variants is assembled here as a `oneOf` across the
// four built-in variants listed below, since ForType alone has no notion
// of this package's runtime type registry; types added later through
// RegisterTrackerConfigType do not appear in the schema.
func Schema() (*jsonschema.Schema, error) {
	trackerVariants := []struct {
		name string
		typ  reflect.Type
	}{
		{"github", reflect.TypeOf(GitHubConfig{})},
		{"gitlab", reflect.TypeOf(GitLabConfig{})},
		{"jira", reflect.TypeOf(JiraConfig{})},
		{"servicenow", reflect.TypeOf(ServiceNowConfig{})},
	}

	oneOf := make([]*jsonschema.Schema, 0, len(trackerVariants))
	for _, v := range trackerVariants {
		s, err := jsonschema.ForType(v.typ, &jsonschema.ForOptions{})
		if err != nil {
			return nil, fmt.Errorf("deriving schema for tracker type %q: %w", v.name, err)
		}
		oneOf = append(oneOf, s)
	}

	platformSchema, err := jsonschema.ForType(reflect.TypeOf(PlatformConfig{}), &jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("deriving schema for yeswehack platform: %w", err)
	}

	trackerSchema := &jsonschema.Schema{
		Type:  "object",
		OneOf: oneOf,
	}

	root := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"trackers": {
				Type:                 "object",
				AdditionalProperties: trackerSchema,
			},
			"yeswehack": {
				Type:                 "object",
				AdditionalProperties: platformSchema,
			},
		},
		Required: []string{"trackers", "yeswehack"},
	}

	return root, nil
}
