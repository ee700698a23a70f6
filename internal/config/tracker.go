// Package config implements C9: the typed, validated configuration domain
// of platforms, programs, trackers and feedback options (spec §3, §4.9,
// §6).
//
// Tracker configuration is a tagged union (Design Notes §9 "dynamic tagged
// subtype registry"): a `type` discriminator selects a concrete Go struct
// at decode time through an init-time registry, directly modeled on the
// teacher's node-type registry in
// internal/service/workflow/node.go (RegisterNodeType/GetNodeFactory) —
// here the tag maps to a config variant's zero value rather than a node
// factory. There is no runtime class mutation and no reflection-driven
// metaclass trick, per Design Notes §9.
package config

import "fmt"

// TrackerConfig is implemented by every concrete tracker configuration
// variant. Type returns the `type` discriminator used both to decode and
// to select the matching adapter constructor in internal/trackers.
type TrackerConfig interface {
	Type() string
}

// Common fields shared by every tracker variant (spec §6): "common fields:
// url/host, project, verify (TLS verification flag, default true)".
type Common struct {
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Host    string `json:"host,omitempty" yaml:"host,omitempty"`
	Project string `json:"project" yaml:"project"`
	Verify  *bool  `json:"verify,omitempty" yaml:"verify,omitempty"`
}

// VerifyTLS returns whether TLS certificate verification is enabled,
// defaulting to true when unset (spec §6).
func (c Common) VerifyTLS() bool {
	return c.Verify == nil || *c.Verify
}

// GitHubConfig is the `github` tracker variant.
type GitHubConfig struct {
	Common `yaml:",inline"`

	Token string `json:"token" yaml:"token"`

	// UploadAttachments enables GitHub's officially supported
	// attachment-upload mechanism (DESIGN.md "Open Questions resolved");
	// when false or unavailable, attachment references are replaced with
	// a placeholder (spec §4.5 adapter-specific notes).
	UploadAttachments bool `json:"upload_attachments,omitempty" yaml:"upload_attachments,omitempty"`
}

func (GitHubConfig) Type() string { return "github" }

// GitLabConfig is the `gitlab` tracker variant.
type GitLabConfig struct {
	Common `yaml:",inline"`

	Token string `json:"token" yaml:"token"`
}

func (GitLabConfig) Type() string { return "gitlab" }

// JiraConfig is the `jira` tracker variant. Jira uses wiki dialect via C1
// and OAuth-based authentication (spec §4.5).
type JiraConfig struct {
	Common `yaml:",inline"`

	Login         string `json:"login,omitempty" yaml:"login,omitempty"`
	Password      string `json:"password,omitempty" yaml:"password,omitempty"`
	IssuetypeName string `json:"issuetype_name,omitempty" yaml:"issuetype_name,omitempty"`

	OAuthArgs map[string]string `json:"oauth_args,omitempty" yaml:"oauth_args,omitempty"`
}

func (JiraConfig) Type() string { return "jira" }

// ServiceNowConfig is the `servicenow` tracker variant. Two resource
// streams (journal comments, attachments) are merged chronologically by
// the adapter (spec §4.5).
type ServiceNowConfig struct {
	Common `yaml:",inline"`

	Login    string `json:"login" yaml:"login"`
	Password string `json:"password" yaml:"password"`
}

func (ServiceNowConfig) Type() string { return "servicenow" }

// trackerConfigFactories is the tagged-union registry: type discriminator
// to a constructor for that variant's zero value.
var trackerConfigFactories = map[string]func() TrackerConfig{
	"github":     func() TrackerConfig { return &GitHubConfig{} },
	"gitlab":     func() TrackerConfig { return &GitLabConfig{} },
	"jira":       func() TrackerConfig { return &JiraConfig{} },
	"servicenow": func() TrackerConfig { return &ServiceNowConfig{} },
}

// RegisterTrackerConfigType registers a tracker config factory for a given
// type discriminator. Exported so out-of-tree tracker types can extend the
// registry the same way internal/service/workflow/nodes packages extend
// the teacher's node registry.
func RegisterTrackerConfigType(typeName string, factory func() TrackerConfig) {
	trackerConfigFactories[typeName] = factory
}

// GetTrackerConfigFactory returns the registered factory for typeName, or
// nil if no tracker type is registered under that name.
func GetTrackerConfigFactory(typeName string) func() TrackerConfig {
	return trackerConfigFactories[typeName]
}

// RegisteredTrackerConfigTypes lists every registered discriminator, used
// in the decode error for an unknown tracker type.
func RegisteredTrackerConfigTypes() []string {
	out := make([]string, 0, len(trackerConfigFactories))
	for t := range trackerConfigFactories {
		out = append(out, t)
	}
	return out
}

func unknownTrackerTypeError(name, typeName string) error {
	return fmt.Errorf("tracker %q: unknown tracker type %q (known: %v)", name, typeName, RegisteredTrackerConfigTypes())
}
