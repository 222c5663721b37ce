package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	StorageDir     string `toml:"storage_dir"`
	StorageBaseURL string `toml:"storage_base_url"`
	LogDir         string `toml:"log_dir"`
	APIBind        string `toml:"api_bind"`
}

// Audio contains configuration for audio assembly and the optional
// external encoder.
type Audio struct {
	FFmpegPath        string  `toml:"ffmpeg_path"`
	OutputFormat      string  `toml:"output_format"`
	OutputBitrate     string  `toml:"output_bitrate"`
	SilenceGapMs      int     `toml:"silence_gap_ms"`
	NormalizeLoudness bool    `toml:"normalize_loudness"`
	TargetLUFS        float64 `toml:"target_lufs"`
}

// Limits contains manuscript validation and request throttling limits.
type Limits struct {
	MaxSegments        int `toml:"max_segments"`
	MaxSegmentChars    int `toml:"max_segment_chars"`
	RateLimitPerMinute int `toml:"rate_limit_per_min"`
}

// TTS contains defaults applied to turns that do not pin their own
// provider or voice.
type TTS struct {
	Provider     string  `toml:"provider"`
	DefaultVoice string  `toml:"default_voice"`
	DefaultSpeed float64 `toml:"default_speed"`
}

// OpenAI contains credentials for the OpenAI speech endpoint.
type OpenAI struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// AzureOpenAI contains credentials for an Azure OpenAI deployment.
type AzureOpenAI struct {
	APIKey       string `toml:"api_key"`
	Endpoint     string `toml:"endpoint"`
	DeploymentID string `toml:"deployment_id"`
	APIVersion   string `toml:"api_version"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for voicecast.
//
// Resolution precedence when the same key is defined in multiple places:
// explicit override (command flag) > environment variable > config file >
// built-in default. Load applies the file over defaults and the
// environment over the file; flags are applied by the CLI afterwards.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Audio         Audio         `toml:"audio"`
	Limits        Limits        `toml:"limits"`
	TTS           TTS           `toml:"tts"`
	OpenAI        OpenAI        `toml:"openai"`
	AzureOpenAI   AzureOpenAI   `toml:"azure_openai"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/voicecast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has environment overrides applied and all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("voicecast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.StorageBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.StorageBaseURL), "/")

	c.Audio.FFmpegPath = strings.TrimSpace(c.Audio.FFmpegPath)
	c.Audio.OutputFormat = strings.ToLower(strings.TrimSpace(c.Audio.OutputFormat))
	c.Audio.OutputBitrate = strings.TrimSpace(c.Audio.OutputBitrate)

	c.TTS.Provider = strings.TrimSpace(c.TTS.Provider)
	c.TTS.DefaultVoice = strings.TrimSpace(c.TTS.DefaultVoice)
	if c.TTS.DefaultSpeed == 0 {
		c.TTS.DefaultSpeed = defaultSpeed
	}

	c.AzureOpenAI.Endpoint = strings.TrimRight(strings.TrimSpace(c.AzureOpenAI.Endpoint), "/")
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StorageDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpeg returns the configured encoder binary path and whether it points
// at an executable file. An empty path disables the external encoder and
// selects the pure-Go stitch fallback.
func (c *Config) FFmpeg() (string, bool) {
	path := strings.TrimSpace(c.Audio.FFmpegPath)
	if path == "" {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, false
	}
	return path, info.Mode().Perm()&0o111 != 0
}

// ExpandPath resolves ~ prefixes and returns an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
