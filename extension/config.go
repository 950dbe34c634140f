package extension

import "time"

// Config holds the Reconcile extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.reconcile" or "reconcile" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Channels is the list of channel tokens the engine polls for replies.
	Channels []string `json:"channels" mapstructure:"channels" yaml:"channels"`

	// PollInterval is how frequently each channel is drained (default: 2.5s).
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval" yaml:"poll_interval"`

	// Currency is the ISO code used for balances and credits (default: "syp").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// MirrorRetries is the number of attempts per mirror push (default: 3).
	MirrorRetries int `json:"mirror_retries" mapstructure:"mirror_retries" yaml:"mirror_retries"`

	// MirrorBackoff is the linear backoff step between mirror push attempts
	// (default: 800ms).
	MirrorBackoff time.Duration `json:"mirror_backoff" mapstructure:"mirror_backoff" yaml:"mirror_backoff"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:  2500 * time.Millisecond,
		Currency:      "syp",
		MirrorRetries: 3,
		MirrorBackoff: 800 * time.Millisecond,
	}
}
