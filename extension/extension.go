// Package extension provides the Forge extension adapter for Reconcile.
//
// It implements the forge.Extension interface to integrate Reconcile
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.reconcile" or
// "reconcile" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	reconcile "github.com/xraph/reconcile"
	"github.com/xraph/reconcile/source"
	"github.com/xraph/reconcile/store"
	"github.com/xraph/reconcile/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "reconcile"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Reply-correlation and balance reconciliation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Reconcile as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *reconcile.Engine
	store      store.Store
	source     source.Source
	engineOpts []reconcile.Option
}

// New creates a new Reconcile Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Reconcile engine.
// This is nil until Register is called.
func (e *Extension) Engine() *reconcile.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the reconcile engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.source == nil {
		return errors.New("reconcile: a message source is required; use WithSource")
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := reconcile.New(e.store, e.source, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*reconcile.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("reconcile: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("reconcile: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs reconcile.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []reconcile.Option {
	opts := make([]reconcile.Option, 0, len(e.engineOpts)+4)

	if len(e.config.Channels) > 0 {
		opts = append(opts, reconcile.WithChannel(e.config.Channels...))
	}
	if e.config.DisableMigrate {
		opts = append(opts, reconcile.WithoutMigrate())
	}
	if e.config.PollInterval > 0 {
		opts = append(opts, reconcile.WithPollInterval(e.config.PollInterval))
	}
	if e.config.Currency != "" {
		opts = append(opts, reconcile.WithCurrency(e.config.Currency))
	}
	if e.config.MirrorRetries > 0 && e.config.MirrorBackoff > 0 {
		opts = append(opts, reconcile.WithMirrorRetry(e.config.MirrorRetries, e.config.MirrorBackoff))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("reconcile: configuration is required but not found in config files; " +
				"ensure 'extensions.reconcile' or 'reconcile' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("reconcile: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("channels", len(e.config.Channels)),
		forge.F("poll_interval", e.config.PollInterval),
		forge.F("currency", e.config.Currency),
		forge.F("mirror_retries", e.config.MirrorRetries),
		forge.F("mirror_backoff", e.config.MirrorBackoff),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.reconcile" first (namespaced pattern).
	if cm.IsSet("extensions.reconcile") {
		if err := cm.Bind("extensions.reconcile", &cfg); err == nil {
			e.Logger().Debug("reconcile: loaded config from file",
				forge.F("key", "extensions.reconcile"),
			)
			return cfg, true
		}
		e.Logger().Warn("reconcile: failed to bind extensions.reconcile config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "reconcile" key.
	if cm.IsSet("reconcile") {
		if err := cm.Bind("reconcile", &cfg); err == nil {
			e.Logger().Debug("reconcile: loaded config from file",
				forge.F("key", "reconcile"),
			)
			return cfg, true
		}
		e.Logger().Warn("reconcile: failed to bind reconcile config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.MirrorRetries == 0 {
		cfg.MirrorRetries = defaults.MirrorRetries
	}
	if cfg.MirrorBackoff == 0 {
		cfg.MirrorBackoff = defaults.MirrorBackoff
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// Channel lists are additive.
	yamlConfig.Channels = append(yamlConfig.Channels, programmaticConfig.Channels...)

	// String fields: YAML takes precedence.
	if yamlConfig.Currency == "" && programmaticConfig.Currency != "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.PollInterval == 0 && programmaticConfig.PollInterval != 0 {
		yamlConfig.PollInterval = programmaticConfig.PollInterval
	}
	if yamlConfig.MirrorRetries == 0 && programmaticConfig.MirrorRetries != 0 {
		yamlConfig.MirrorRetries = programmaticConfig.MirrorRetries
	}
	if yamlConfig.MirrorBackoff == 0 && programmaticConfig.MirrorBackoff != 0 {
		yamlConfig.MirrorBackoff = programmaticConfig.MirrorBackoff
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
