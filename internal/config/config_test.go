package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voicecast/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatalf("missing file reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Audio.OutputFormat != "mp3" || cfg.Audio.OutputBitrate != "192k" {
		t.Fatalf("audio defaults wrong: %+v", cfg.Audio)
	}
	if cfg.TTS.Provider != "openai" || cfg.TTS.DefaultVoice != "alloy" || cfg.TTS.DefaultSpeed != 1.0 {
		t.Fatalf("tts defaults wrong: %+v", cfg.TTS)
	}
	if cfg.Limits.MaxSegments != 50 || cfg.Limits.MaxSegmentChars != 4096 {
		t.Fatalf("limit defaults wrong: %+v", cfg.Limits)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[paths]
api_bind = "0.0.0.0:9000"
storage_base_url = "https://cdn.example.com/media/"

[audio]
output_format = "AAC"
silence_gap_ms = 250

[tts]
provider = "azure_openai"
default_voice = "onyx"
`)

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatalf("file not detected")
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("api_bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Paths.StorageBaseURL != "https://cdn.example.com/media" {
		t.Fatalf("base url not trimmed: %q", cfg.Paths.StorageBaseURL)
	}
	if cfg.Audio.OutputFormat != "aac" {
		t.Fatalf("format not lowercased: %q", cfg.Audio.OutputFormat)
	}
	if cfg.Audio.SilenceGapMs != 250 {
		t.Fatalf("silence_gap_ms = %d", cfg.Audio.SilenceGapMs)
	}
	if cfg.TTS.Provider != "azure_openai" || cfg.TTS.DefaultVoice != "onyx" {
		t.Fatalf("tts overrides lost: %+v", cfg.TTS)
	}
	// Untouched keys keep their defaults.
	if cfg.Audio.OutputBitrate != "192k" {
		t.Fatalf("bitrate default lost: %q", cfg.Audio.OutputBitrate)
	}
}

func TestLoadEnvironmentBeatsFile(t *testing.T) {
	path := writeConfig(t, `
[tts]
default_voice = "fable"

[limits]
rate_limit_per_min = 5
`)
	t.Setenv("VOICECAST_DEFAULT_VOICE", "shimmer")
	t.Setenv("VOICECAST_RATE_LIMIT", "20")
	t.Setenv("VOICECAST_OPENAI_API_KEY", "env-secret")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TTS.DefaultVoice != "shimmer" {
		t.Fatalf("default_voice = %q, want env override", cfg.TTS.DefaultVoice)
	}
	if cfg.Limits.RateLimitPerMinute != 20 {
		t.Fatalf("rate limit = %d, want env override", cfg.Limits.RateLimitPerMinute)
	}
	if cfg.OpenAI.APIKey != "env-secret" {
		t.Fatalf("api key = %q", cfg.OpenAI.APIKey)
	}
}

func TestLoadExpandsTildePaths(t *testing.T) {
	path := writeConfig(t, `
[paths]
data_dir = "~/voicecast-data"
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if cfg.Paths.DataDir != filepath.Join(home, "voicecast-data") {
		t.Fatalf("data_dir = %q", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for name, body := range map[string]string{
		"bad format":   "[audio]\noutput_format = \"ogg\"\n",
		"bad bitrate":  "[audio]\noutput_bitrate = \"fast\"\n",
		"bad provider": "[tts]\nprovider = \"espeak\"\n",
		"bad speed":    "[tts]\ndefault_speed = 9.0\n",
		"negative gap": "[audio]\nsilence_gap_ms = -1\n",
	} {
		path := writeConfig(t, body)
		if _, _, _, err := config.Load(path); err == nil {
			t.Errorf("%s: expected validation failure", name)
		} else if !strings.Contains(err.Error(), "invalid configuration") {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.OutputFormat = "ogg"
	cfg.TTS.Provider = "espeak"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, fragment := range []string{"audio.output_format", "tts.provider"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error should mention %s: %v", fragment, err)
		}
	}
}

func TestFFmpegDetection(t *testing.T) {
	cfg := config.Default()

	if _, ok := cfg.FFmpeg(); ok {
		t.Fatal("empty path must disable the external encoder")
	}

	cfg.Audio.FFmpegPath = filepath.Join(t.TempDir(), "missing")
	if _, ok := cfg.FFmpeg(); ok {
		t.Fatal("missing binary must not be reported as usable")
	}

	binary := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write stub binary: %v", err)
	}
	cfg.Audio.FFmpegPath = binary
	if path, ok := cfg.FFmpeg(); !ok || path != binary {
		t.Fatalf("executable not detected: %q, %v", path, ok)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}
