package config

const (
	defaultDataDir        = "~/.local/share/voicecast"
	defaultStorageDir     = "~/.local/share/voicecast/media"
	defaultStorageBaseURL = "http://127.0.0.1:7512/media"
	defaultLogDir         = "~/.local/share/voicecast/logs"
	defaultAPIBind        = "127.0.0.1:7512"

	defaultOutputFormat  = "mp3"
	defaultOutputBitrate = "192k"
	defaultSilenceGapMs  = 500
	defaultTargetLUFS    = -16.0

	defaultMaxSegments     = 50
	defaultMaxSegmentChars = 4096
	defaultRateLimit       = 10

	defaultProvider    = "openai"
	defaultVoice       = "alloy"
	defaultSpeed       = 1.0
	defaultOpenAIModel = "tts-1"

	defaultAzureAPIVersion = "2024-05-01-preview"

	defaultNtfyTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			StorageDir:     defaultStorageDir,
			StorageBaseURL: defaultStorageBaseURL,
			LogDir:         defaultLogDir,
			APIBind:        defaultAPIBind,
		},
		Audio: Audio{
			OutputFormat:  defaultOutputFormat,
			OutputBitrate: defaultOutputBitrate,
			SilenceGapMs:  defaultSilenceGapMs,
			TargetLUFS:    defaultTargetLUFS,
		},
		Limits: Limits{
			MaxSegments:        defaultMaxSegments,
			MaxSegmentChars:    defaultMaxSegmentChars,
			RateLimitPerMinute: defaultRateLimit,
		},
		TTS: TTS{
			Provider:     defaultProvider,
			DefaultVoice: defaultVoice,
			DefaultSpeed: defaultSpeed,
		},
		OpenAI: OpenAI{
			Model: defaultOpenAIModel,
		},
		AzureOpenAI: AzureOpenAI{
			APIVersion: defaultAzureAPIVersion,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
