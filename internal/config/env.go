package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables override values read from the config file but lose
// to explicit command-line overrides. Names follow the VOICECAST_ prefix.
func (c *Config) applyEnvOverrides() {
	envString("VOICECAST_DATA_DIR", &c.Paths.DataDir)
	envString("VOICECAST_STORAGE_DIR", &c.Paths.StorageDir)
	envString("VOICECAST_STORAGE_BASE_URL", &c.Paths.StorageBaseURL)
	envString("VOICECAST_LOG_DIR", &c.Paths.LogDir)
	envString("VOICECAST_API_BIND", &c.Paths.APIBind)

	envString("VOICECAST_FFMPEG_PATH", &c.Audio.FFmpegPath)
	envString("VOICECAST_OUTPUT_FORMAT", &c.Audio.OutputFormat)
	envString("VOICECAST_OUTPUT_BITRATE", &c.Audio.OutputBitrate)
	envInt("VOICECAST_SILENCE_GAP_MS", &c.Audio.SilenceGapMs)

	envInt("VOICECAST_MAX_SEGMENTS", &c.Limits.MaxSegments)
	envInt("VOICECAST_MAX_SEGMENT_CHARS", &c.Limits.MaxSegmentChars)
	envInt("VOICECAST_RATE_LIMIT", &c.Limits.RateLimitPerMinute)

	envString("VOICECAST_TTS_PROVIDER", &c.TTS.Provider)
	envString("VOICECAST_DEFAULT_VOICE", &c.TTS.DefaultVoice)

	envString("VOICECAST_OPENAI_API_KEY", &c.OpenAI.APIKey)
	envString("VOICECAST_OPENAI_TTS_MODEL", &c.OpenAI.Model)

	envString("VOICECAST_AZURE_OPENAI_API_KEY", &c.AzureOpenAI.APIKey)
	envString("VOICECAST_AZURE_OPENAI_ENDPOINT", &c.AzureOpenAI.Endpoint)
	envString("VOICECAST_AZURE_OPENAI_DEPLOYMENT_ID", &c.AzureOpenAI.DeploymentID)
	envString("VOICECAST_AZURE_OPENAI_API_VERSION", &c.AzureOpenAI.APIVersion)

	envString("VOICECAST_NTFY_TOPIC", &c.Notifications.NtfyTopic)

	envString("VOICECAST_LOG_FORMAT", &c.Logging.Format)
	envString("VOICECAST_LOG_LEVEL", &c.Logging.Level)
}

func envString(name string, target *string) {
	if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func envInt(name string, target *int) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return
	}
	*target = parsed
}
