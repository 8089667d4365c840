package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"ramble/internal/services"
	"ramble/internal/session"
)

const (
	defaultBaseURL      = "https://api.assemblyai.com"
	defaultHTTPTimeout  = 60 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

// Config captures the runtime settings for the transcription service.
type Config struct {
	APIKey         string
	BaseURL        string
	Language       string
	TimeoutSeconds int
	PollSeconds    int
}

// Client talks to the AssemblyAI transcription API: upload the audio bytes,
// create a transcript job, then poll until it completes or errors.
type Client struct {
	cfg        Config
	httpClient *http.Client

	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPollInterval overrides how often job status is checked.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithPollTimeout bounds how long a single job is polled before giving up.
func WithPollTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.pollTimeout = timeout
		}
	}
}

// NewClient constructs a transcription client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	interval := defaultPollInterval
	if cfg.PollSeconds > 0 {
		interval = time.Duration(cfg.PollSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:   strings.TrimSpace(cfg.APIKey),
			BaseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Language: strings.TrimSpace(cfg.Language),
		},
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: interval,
		pollTimeout:  defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// Name reports the service identifier recorded in output metadata.
func (c *Client) Name() string { return "assemblyai" }

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL          string `json:"audio_url"`
	LanguageCode      string `json:"language_code,omitempty"`
	LanguageDetection bool   `json:"language_detection,omitempty"`
}

type transcriptResponse struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Text          string  `json:"text"`
	AudioDuration float64 `json:"audio_duration"`
	LanguageCode  string  `json:"language_code"`
	Confidence    float64 `json:"confidence"`
	Error         string  `json:"error"`
	Words         []struct {
		Text  string `json:"text"`
		Start int64  `json:"start"`
		End   int64  `json:"end"`
	} `json:"words"`
}

// Transcribe uploads the local audio file and polls the resulting job until
// it completes. Vendor 5xx responses and timeouts come back transient;
// unsupported or corrupt audio comes back permanent.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (*session.Transcript, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcriber", "transcribe", "api key required", nil)
	}

	audioURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	jobID, err := c.createJob(ctx, audioURL)
	if err != nil {
		return nil, err
	}
	return c.awaitJob(ctx, jobID)
}

func (c *Client) upload(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "transcriber", "upload", "open audio", err)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/upload", file)
	if err != nil {
		return "", fmt.Errorf("upload: new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var parsed uploadResponse
	if err := c.do(req, "upload", &parsed); err != nil {
		return "", err
	}
	if parsed.UploadURL == "" {
		return "", services.Wrap(services.ErrTransient, "transcriber", "upload", "empty upload_url", nil)
	}
	return parsed.UploadURL, nil
}

func (c *Client) createJob(ctx context.Context, audioURL string) (string, error) {
	payload := transcriptRequest{AudioURL: audioURL}
	if c.cfg.Language != "" && c.cfg.Language != "auto" {
		payload.LanguageCode = c.cfg.Language
	} else {
		payload.LanguageDetection = true
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("create job: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/transcript", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("create job: new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var parsed transcriptResponse
	if err := c.do(req, "create-job", &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", services.Wrap(services.ErrTransient, "transcriber", "create-job", "empty job id", nil)
	}
	return parsed.ID, nil
}

func (c *Client) awaitJob(ctx context.Context, jobID string) (*session.Transcript, error) {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		parsed, err := c.jobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch parsed.Status {
		case "completed":
			return toTranscript(parsed), nil
		case "error":
			return nil, classifyJobError(parsed.Error)
		case "queued", "processing":
		default:
			return nil, services.Wrap(services.ErrTransient, "transcriber", "poll",
				fmt.Sprintf("unknown job status %q", parsed.Status), nil)
		}

		if time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrTransient, "transcriber", "poll",
				fmt.Sprintf("job %s still %s after %s", jobID, parsed.Status, c.pollTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) jobStatus(ctx context.Context, jobID string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v2/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("poll: new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	var parsed transcriptResponse
	if err := c.do(req, "poll", &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *Client) do(req *http.Request, op string, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "transcriber", op, "http request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "transcriber", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		marker := services.ErrPermanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "transcriber", op,
			fmt.Sprintf("http %d: %s", resp.StatusCode, summarizeBody(body)), nil)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return services.Wrap(services.ErrTransient, "transcriber", op, "decode response", err)
	}
	return nil
}

// classifyJobError maps vendor-reported job failures onto the retry taxonomy.
// Format and decode problems never improve with retries.
var permanentJobErrors = []string{
	"format",
	"unsupported",
	"decode",
	"corrupt",
	"download error",
	"file is empty",
}

func classifyJobError(message string) error {
	lowered := strings.ToLower(message)
	for _, marker := range permanentJobErrors {
		if strings.Contains(lowered, marker) {
			return services.Wrap(services.ErrPermanent, "transcriber", "job", message, nil)
		}
	}
	return services.Wrap(services.ErrTransient, "transcriber", "job", message, nil)
}

func toTranscript(parsed *transcriptResponse) *session.Transcript {
	transcript := &session.Transcript{
		Text:            parsed.Text,
		DurationSeconds: parsed.AudioDuration,
		Language:        parsed.LanguageCode,
		Confidence:      parsed.Confidence,
	}
	for _, word := range parsed.Words {
		transcript.Words = append(transcript.Words, session.Word{
			Text:    word.Text,
			StartMS: word.Start,
			EndMS:   word.End,
		})
	}
	return transcript
}

// HealthCheck verifies the API key is accepted by listing recent transcripts.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("transcriber health: api key required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v2/transcript?limit=1", nil)
	if err != nil {
		return fmt.Errorf("transcriber health: new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcriber health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("transcriber health: credentials rejected (http %d)", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("transcriber health: http %d", resp.StatusCode)
	}
	return nil
}

func summarizeBody(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	const limit = 160
	if len(clean) > limit {
		return clean[:limit] + "..."
	}
	return clean
}
