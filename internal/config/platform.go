package config

// PlatformConfig is one `yeswehack` entry: credentials/headers plus the
// programs to synchronize (spec §3 "Configuration tree", §6 "Configuration
// file").
type PlatformConfig struct {
	APIURL string `json:"api_url" yaml:"api_url"`

	// AppsHeaders requires a non-blank X-YesWeHack-Apps header (spec §6).
	AppsHeaders map[string]string `json:"apps_headers" yaml:"apps_headers"`

	Login    string `json:"login,omitempty" yaml:"login,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Totp     string `json:"totp,omitempty" yaml:"totp,omitempty"`
	PAT      string `json:"pat,omitempty" yaml:"pat,omitempty"`

	OAuthArgs map[string]string `json:"oauth_args,omitempty" yaml:"oauth_args,omitempty"`
	Verify    *bool             `json:"verify,omitempty" yaml:"verify,omitempty"`

	Programs []ProgramConfig `json:"programs" yaml:"programs"`
}

// VerifyTLS returns whether TLS certificate verification is enabled,
// defaulting to true when unset.
func (p PlatformConfig) VerifyTLS() bool {
	return p.Verify == nil || *p.Verify
}

// UsesPAT reports whether this platform authenticates with a personal
// access token rather than login/password(+TOTP) (spec §4.4 authenticate).
func (p PlatformConfig) UsesPAT() bool {
	return p.PAT != ""
}

// ProgramConfig names a program slug to synchronize, the trackers it
// targets (spec §3.a invariant), and its independent synchronize/feedback
// options.
type ProgramConfig struct {
	Slug string `json:"slug" yaml:"slug"`

	SynchronizeOptions SynchronizeOptions `json:"synchronize_options,omitempty" yaml:"synchronize_options,omitempty"`
	FeedbackOptions    FeedbackOptions    `json:"feedback_options,omitempty" yaml:"feedback_options,omitempty"`

	BugTrackersName []string `json:"bugtrackers_name" yaml:"bugtrackers_name"`
}

// SynchronizeOptions gates which outbound log kinds are pushed to a
// tracker (spec §4.6 "Decide which logs to send out", step 2).
type SynchronizeOptions struct {
	UploadPublicComments  bool `json:"upload_public_comments,omitempty" yaml:"upload_public_comments,omitempty"`
	UploadPrivateComments bool `json:"upload_private_comments,omitempty" yaml:"upload_private_comments,omitempty"`
	UploadDetailsUpdate   bool `json:"upload_details_update,omitempty" yaml:"upload_details_update,omitempty"`
	UploadRewardUpdate    bool `json:"upload_reward_update,omitempty" yaml:"upload_reward_update,omitempty"`
	UploadStatusUpdate    bool `json:"upload_status_update,omitempty" yaml:"upload_status_update,omitempty"`

	// ResyncAlreadyTracked controls whether reports with tracking-status
	// T are still polled for new activity (spec §4.7 "plus {T} if any
	// SynchronizeOptions flag enabling continuous mirroring is set").
	ResyncAlreadyTracked bool `json:"resync_already_tracked,omitempty" yaml:"resync_already_tracked,omitempty"`
}

// ContinuousMirroring reports whether any flag that requires polling an already-tracked
// report is set (spec §4.7).
func (o SynchronizeOptions) ContinuousMirroring() bool {
	return o.ResyncAlreadyTracked || o.UploadPublicComments || o.UploadPrivateComments ||
		o.UploadDetailsUpdate || o.UploadRewardUpdate || o.UploadStatusUpdate
}

// FeedbackOptions gates whether tracker-side activity is mirrored back to
// the platform (spec §4.6 "Decide which tracker comments to pull in").
type FeedbackOptions struct {
	DownloadComments bool `json:"download_comments,omitempty" yaml:"download_comments,omitempty"`
}
