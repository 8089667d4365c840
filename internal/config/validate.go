package config

import (
	"errors"
	"fmt"
	"strings"
)

var compressionQualities = map[string]struct{}{
	"low":    {},
	"medium": {},
	"high":   {},
}

// Validate verifies the configuration is complete enough to start the daemon.
// Missing credentials are fatal here so the poll loop is never entered with a
// collaborator that cannot be reached.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Storage.RootDir) == "" {
		problems = append(problems, "storage.root_dir is required")
	}
	if strings.TrimSpace(c.Transcription.APIKey) == "" {
		problems = append(problems, "transcription.api_key is required")
	}
	if c.Transcription.Service != "" && c.Transcription.Service != "assemblyai" {
		problems = append(problems, fmt.Sprintf("transcription.service %q is not supported", c.Transcription.Service))
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		problems = append(problems, "llm.api_key is required")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		problems = append(problems, "llm.model is required")
	}
	if c.Processing.CompressAudio {
		if _, ok := compressionQualities[c.Processing.CompressionQuality]; !ok {
			problems = append(problems, fmt.Sprintf("processing.compression_quality %q must be low, medium, or high", c.Processing.CompressionQuality))
		}
	}
	if c.Persistence.Enabled && strings.TrimSpace(c.Persistence.DBPath) == "" {
		problems = append(problems, "persistence.db_path is required when persistence is enabled")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
