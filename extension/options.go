package extension

import (
	"time"

	reconcile "github.com/xraph/reconcile"
	"github.com/xraph/reconcile/hook"
	"github.com/xraph/reconcile/mirror"
	"github.com/xraph/reconcile/source"
	"github.com/xraph/reconcile/store"
)

// Option configures the Reconcile Forge extension.
type Option func(*Extension)

// WithStore sets the store for the reconcile engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithSource sets the message source the engine polls for admin replies.
func WithSource(src source.Source) Option {
	return func(e *Extension) {
		e.source = src
	}
}

// WithMirror sets the external balance mirror.
func WithMirror(m mirror.Mirror) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, reconcile.WithMirror(m))
	}
}

// WithEngineOption passes a reconcile.Option through to the underlying engine.
func WithEngineOption(opt reconcile.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithHook registers a reconcile hook.
func WithHook(h hook.Hook) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, reconcile.WithHook(h))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithChannels sets the channel tokens the engine polls.
func WithChannels(tokens ...string) Option {
	return func(e *Extension) { e.config.Channels = append(e.config.Channels, tokens...) }
}

// WithPollInterval sets how frequently each channel is drained.
func WithPollInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.PollInterval = d }
}

// WithCurrency sets the ISO code used for balances and credits.
func WithCurrency(code string) Option {
	return func(e *Extension) { e.config.Currency = code }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
