package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var bitratePattern = regexp.MustCompile(`^[0-9]+k?$`)

var supportedFormats = map[string]struct{}{
	"mp3": {},
	"aac": {},
	"wav": {},
}

var supportedProviders = map[string]struct{}{
	"openai":       {},
	"azure_openai": {},
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures mid-job.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		problems = append(problems, "paths.storage_dir must not be empty")
	}

	if _, ok := supportedFormats[c.Audio.OutputFormat]; !ok {
		problems = append(problems, fmt.Sprintf("audio.output_format %q is not one of mp3, aac, wav", c.Audio.OutputFormat))
	}
	if !bitratePattern.MatchString(c.Audio.OutputBitrate) {
		problems = append(problems, fmt.Sprintf("audio.output_bitrate %q must look like 192k", c.Audio.OutputBitrate))
	}
	if c.Audio.SilenceGapMs < 0 {
		problems = append(problems, "audio.silence_gap_ms must not be negative")
	}
	if c.Audio.TargetLUFS > 0 || c.Audio.TargetLUFS < -70 {
		problems = append(problems, "audio.target_lufs must be between -70 and 0")
	}

	if c.Limits.MaxSegments <= 0 {
		problems = append(problems, "limits.max_segments must be positive")
	}
	if c.Limits.MaxSegmentChars <= 0 {
		problems = append(problems, "limits.max_segment_chars must be positive")
	}
	if c.Limits.RateLimitPerMinute < 0 {
		problems = append(problems, "limits.rate_limit_per_min must not be negative")
	}

	if _, ok := supportedProviders[c.TTS.Provider]; !ok {
		problems = append(problems, fmt.Sprintf("tts.provider %q is not one of openai, azure_openai", c.TTS.Provider))
	}
	if c.TTS.DefaultSpeed < 0.25 || c.TTS.DefaultSpeed > 4.0 {
		problems = append(problems, "tts.default_speed must be between 0.25 and 4.0")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
