// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"voicecast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.StorageDir = filepath.Join(base, "media")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.OpenAI.APIKey = "test"
	cfg.Limits.RateLimitPerMinute = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithProvider sets the default synthesis backend on the test config.
func WithProvider(slug string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.TTS.Provider = slug
	}
}

// WithSilenceGap overrides the inter-segment silence gap.
func WithSilenceGap(ms int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Audio.SilenceGapMs = ms
	}
}
