// Package config loads the ambient settings that wire together a
// loader.Config, hostabi.Host defaults, and the sandbox runners: cache
// location, registry templates, HTTP timeouts, and concurrency caps.
// Values come from an optional YAML file overlaid with environment
// variables, the same two-layer shape the teacher's rig packages use
// for struct tags (see pkg/runbook's yaml-tagged Runbook/Step), adapted
// here to also carry `env:"..."` tags for caarlos0/env.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/slipwayhq/slipway/pkg/loader"
	"github.com/slipwayhq/slipway/pkg/sandbox/jsrunner"
	"github.com/slipwayhq/slipway/pkg/session"
)

// Config is the engine's top-level ambient configuration.
//
// Defaults are applied by defaults() after the YAML/env overlay runs,
// rather than via caarlos0/env's envDefault tag, so that a value set in
// the YAML file is never clobbered by a default for an unset
// environment variable.
type Config struct {
	// CacheDir holds the resolved-component cache (internal/cache) and
	// the loader's downloaded HTTP archives.
	CacheDir string `yaml:"cache_dir" env:"SLIPWAY_CACHE_DIR"`
	// BaseDir roots relative Local references.
	BaseDir string `yaml:"base_dir" env:"SLIPWAY_BASE_DIR"`
	// RegistryTemplates are tried in order for Registry references,
	// e.g. "https://registry.example.com/{publisher}/{name}/{version}.tar".
	RegistryTemplates []string `yaml:"registry_templates" env:"SLIPWAY_REGISTRY_TEMPLATES" envSeparator:","`

	// FetchTimeout bounds every host.fetch_bin/fetch_text ABI call.
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"SLIPWAY_FETCH_TIMEOUT"`
	// LoaderConcurrency bounds simultaneous in-flight component
	// resolutions (loader.Config.Concurrency).
	LoaderConcurrency int `yaml:"loader_concurrency" env:"SLIPWAY_LOADER_CONCURRENCY"`
	// SessionConcurrency bounds simultaneous sibling component runs
	// within one scheduling round (session.Config.Concurrency). 1
	// keeps execution fully serial and deterministic (§5 default).
	SessionConcurrency int `yaml:"session_concurrency" env:"SLIPWAY_SESSION_CONCURRENCY"`

	// JS sandbox backend settings (pkg/sandbox/jsrunner.Config).
	// BrowserHeadless defaults to false (zero value), matching
	// jsrunner.Config.defaults() which leaves it untouched; set it
	// explicitly via YAML or env to run headless.
	BrowserHeadless bool          `yaml:"browser_headless" env:"SLIPWAY_BROWSER_HEADLESS"`
	BrowserBin      string        `yaml:"browser_bin" env:"SLIPWAY_BROWSER_BIN"`
	BrowserTimeout  time.Duration `yaml:"browser_timeout" env:"SLIPWAY_BROWSER_TIMEOUT"`
}

func (c *Config) defaults() {
	if c.CacheDir == "" {
		c.CacheDir = "~/.slipway/cache"
	}
	if c.BaseDir == "" {
		c.BaseDir = "."
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.LoaderConcurrency <= 0 {
		c.LoaderConcurrency = 8
	}
	if c.SessionConcurrency <= 0 {
		c.SessionConcurrency = 1
	}
	if c.BrowserTimeout <= 0 {
		c.BrowserTimeout = 30 * time.Second
	}
}

// Load reads path (if it exists) as YAML, then overlays environment
// variables on top — env always wins, matching the teacher's layered
// config-then-env precedence in cmd/devopsclaw. A missing path is not
// an error: defaults and env alone are a valid configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{}); err != nil {
		return nil, fmt.Errorf("config: applying environment: %w", err)
	}

	cfg.defaults()
	cfg.CacheDir = expandHome(cfg.CacheDir)
	cfg.BaseDir = expandHome(cfg.BaseDir)

	return cfg, nil
}

// LoaderConfig builds the loader.Config this configuration describes.
func (c *Config) LoaderConfig() loader.Config {
	return loader.Config{
		BaseDir:           c.BaseDir,
		CacheDir:          c.CacheDir,
		RegistryTemplates: c.RegistryTemplates,
		Concurrency:       c.LoaderConcurrency,
	}
}

// SessionConfig builds the session.Config this configuration describes.
func (c *Config) SessionConfig() session.Config {
	return session.Config{Concurrency: c.SessionConcurrency}
}

// JSRunnerConfig builds the jsrunner.Config this configuration describes.
func (c *Config) JSRunnerConfig() jsrunner.Config {
	return jsrunner.Config{
		Headless:       c.BrowserHeadless,
		DefaultTimeout: c.BrowserTimeout,
		BrowserBin:     c.BrowserBin,
	}
}

func expandHome(p string) string {
	if p == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return home
	}
	if len(p) >= 2 && p[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return home + p[1:]
	}
	return p
}
