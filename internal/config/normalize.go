package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var envRefPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// normalize expands environment references and tilde paths and fills in
// defaults for zero-valued tuning fields.
func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Transcription.APIKey,
		&c.LLM.APIKey,
		&c.Notifications.NtfyTopic,
	} {
		expanded, err := resolveEnvRef(*field)
		if err != nil {
			return err
		}
		*field = strings.TrimSpace(expanded)
	}

	for _, field := range []*string{
		&c.Storage.RootDir,
		&c.Storage.WorkDir,
		&c.Storage.LogDir,
		&c.Persistence.DBPath,
	} {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Transcription.Service = strings.ToLower(strings.TrimSpace(c.Transcription.Service))
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Processing.CompressionQuality = strings.ToLower(strings.TrimSpace(c.Processing.CompressionQuality))

	if c.Processing.PollIntervalSeconds <= 0 {
		c.Processing.PollIntervalSeconds = defaultPollInterval
	}
	if c.Processing.MaxRetries <= 0 {
		c.Processing.MaxRetries = defaultMaxRetries
	}
	if c.Processing.RetryBackoffSeconds <= 0 {
		c.Processing.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Processing.StabilityWindowSecs <= 0 {
		c.Processing.StabilityWindowSecs = defaultStabilityWindow
	}
	if c.Processing.MaxFileSizeMB <= 0 {
		c.Processing.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if c.Transcription.PollSeconds <= 0 {
		c.Transcription.PollSeconds = defaultTranscriptionPoll
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptionWait
	}

	return nil
}

// resolveEnvRef expands values written as ${VAR} from the environment. Values
// without the reference syntax pass through unchanged. A reference to an unset
// variable is an error so missing credentials surface at startup, not at the
// first vendor call.
func resolveEnvRef(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	match := envRefPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return value, nil
	}
	resolved, ok := os.LookupEnv(match[1])
	if !ok {
		return "", fmt.Errorf("environment variable %s referenced in config is not set", match[1])
	}
	return resolved, nil
}
