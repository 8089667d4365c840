package config

const (
	defaultRootDir             = "~/ramble"
	defaultWorkDir             = "~/.local/share/ramble/work"
	defaultLogDir              = "~/.local/share/ramble/logs"
	defaultDBPath              = "~/.local/share/ramble/ramble.db"
	defaultTranscriptionHost   = "https://api.assemblyai.com"
	defaultTranscriptionPoll   = 5
	defaultTranscriptionWait   = 600
	defaultLanguage            = "en_us"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "anthropic/claude-sonnet-4"
	defaultLLMTimeoutSeconds   = 120
	defaultLLMTitle            = "Ramble Memo Processor"
	defaultPollInterval        = 60
	defaultMaxFileSizeMB       = 200
	defaultMaxRetries          = 3
	defaultRetryBackoffSeconds = 2
	defaultStabilityWindow     = 5
	defaultCompressionQuality  = "medium"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultNtfyRequestTimeout  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Storage: Storage{
			RootDir: defaultRootDir,
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Transcription: Transcription{
			Service:        "assemblyai",
			BaseURL:        defaultTranscriptionHost,
			TimeoutSeconds: defaultTranscriptionWait,
			PollSeconds:    defaultTranscriptionPoll,
			Language:       defaultLanguage,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Processing: Processing{
			PollIntervalSeconds: defaultPollInterval,
			MaxFileSizeMB:       defaultMaxFileSizeMB,
			MaxRetries:          defaultMaxRetries,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
			StabilityWindowSecs: defaultStabilityWindow,
			CompressAudio:       true,
			CompressionQuality:  defaultCompressionQuality,
		},
		Persistence: Persistence{
			Enabled: false,
			DBPath:  defaultDBPath,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			Completions:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
