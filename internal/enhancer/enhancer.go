// Package enhancer is the pipeline stage that structures a raw transcript
// into titled topics through the LLM collaborator.
package enhancer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ramble/internal/logging"
	"ramble/internal/services"
	"ramble/internal/services/llm"
	"ramble/internal/session"
	"ramble/internal/stage"
	"ramble/internal/textutil"
)

// Completer is the LLM collaborator boundary.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
	Model() string
}

// Handler submits the transcript for structuring and validates the response.
// A reply that does not reduce to the expected shape is a validation failure
// and repeats the LLM call, never the transcription.
type Handler struct {
	client Completer
	logger *slog.Logger
}

func NewHandler(client Completer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{client: client, logger: logger}
}

func (h *Handler) Name() string { return "enhancer" }

func (h *Handler) Target() session.Stage { return session.StageEnhanced }

func (h *Handler) Prepare(ctx context.Context, sess *session.Session) error {
	if sess.Transcript == nil || strings.TrimSpace(sess.Transcript.Text) == "" {
		return services.Wrap(services.ErrPermanent, h.Name(), "prepare", "no transcript on session", nil)
	}
	return nil
}

type structuringResponse struct {
	SessionTitle string  `json:"session_title"`
	OverrideDate *string `json:"override_date"`
	Topics       []struct {
		FilenameSlug string `json:"filename_slug"`
		Title        string `json:"title"`
		Content      string `json:"content"`
	} `json:"topics"`
}

func (h *Handler) Execute(ctx context.Context, sess *session.Session) error {
	userPrompt := buildUserPrompt(sess.Transcript.Text, sess.NominalDate)
	content, err := h.client.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		if llm.IsRetryableTransport(err) {
			return services.Wrap(services.ErrTransient, h.Name(), "complete", "llm request failed", err)
		}
		return services.Wrap(services.ErrValidation, h.Name(), "complete", "llm request failed", err)
	}

	var parsed structuringResponse
	if err := llm.DecodeLLMJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrValidation, h.Name(), "decode", "response is not valid JSON", err)
	}

	topics, err := validateTopics(parsed)
	if err != nil {
		return err
	}

	sess.Title = strings.TrimSpace(parsed.SessionTitle)
	sess.Topics = topics
	sess.Summary = buildSummary(sess.Title, topics)
	h.applyOverrideDate(sess, parsed.OverrideDate)

	h.logger.Info("structuring complete",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String("title", sess.Title),
		logging.Int("topics", len(sess.Topics)))
	return nil
}

func validateTopics(parsed structuringResponse) ([]session.Topic, error) {
	if strings.TrimSpace(parsed.SessionTitle) == "" {
		return nil, services.Wrap(services.ErrValidation, "enhancer", "validate", "missing session_title", nil)
	}
	if len(parsed.Topics) == 0 {
		return nil, services.Wrap(services.ErrValidation, "enhancer", "validate", "response contains no topics", nil)
	}

	topics := make([]session.Topic, 0, len(parsed.Topics))
	seen := make(map[string]struct{}, len(parsed.Topics))
	for i, raw := range parsed.Topics {
		content := strings.TrimSpace(raw.Content)
		if content == "" {
			return nil, services.Wrap(services.ErrValidation, "enhancer", "validate",
				fmt.Sprintf("topic %d has empty content", i+1), nil)
		}
		source := raw.FilenameSlug
		if strings.TrimSpace(source) == "" {
			source = raw.Title
		}
		slug := textutil.Slugify(source)
		if slug == "" {
			return nil, services.Wrap(services.ErrValidation, "enhancer", "validate",
				fmt.Sprintf("topic %d has no usable slug", i+1), nil)
		}
		// Duplicate slugs would overwrite each other's output files.
		for base, n := slug, 2; ; n++ {
			if _, dup := seen[slug]; !dup {
				break
			}
			slug = fmt.Sprintf("%s-%d", base, n)
		}
		seen[slug] = struct{}{}

		title := strings.TrimSpace(raw.Title)
		if title == "" {
			title = textutil.TitleFromSlug(slug)
		}
		topics = append(topics, session.Topic{Slug: slug, Title: title, Content: content})
	}
	return topics, nil
}

func buildSummary(title string, topics []session.Topic) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	for _, topic := range topics {
		b.WriteString("\n\n## ")
		b.WriteString(topic.Title)
		b.WriteString("\n\n")
		b.WriteString(topic.Content)
	}
	return b.String()
}

// applyOverrideDate keeps a reported date only when it differs from the
// nominal date by more than one calendar day. Near misses are treated as LLM
// misreads of recent dates, not corrections.
func (h *Handler) applyOverrideDate(sess *session.Session, reported *string) {
	if reported == nil {
		return
	}
	raw := strings.TrimSpace(*reported)
	if raw == "" || strings.EqualFold(raw, "null") {
		return
	}
	override, err := time.Parse("2006-01-02", raw)
	if err != nil {
		h.logger.Warn("ignoring unparseable override date",
			logging.String(logging.FieldSessionID, sess.ID),
			logging.String("override_date", raw))
		return
	}
	if !overrideAccepted(sess.NominalDate, override) {
		h.logger.Debug("override date within one day of nominal, keeping nominal",
			logging.String(logging.FieldSessionID, sess.ID),
			logging.String("override_date", raw))
		return
	}
	sess.OverrideDate = &override
	h.logger.Info("accepted override date",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String("override_date", raw))
}

func overrideAccepted(nominal, override time.Time) bool {
	n := time.Date(nominal.Year(), nominal.Month(), nominal.Day(), 0, 0, 0, 0, time.UTC)
	o := time.Date(override.Year(), override.Month(), override.Day(), 0, 0, 0, 0, time.UTC)
	diff := o.Sub(n)
	if diff < 0 {
		diff = -diff
	}
	return diff > 24*time.Hour
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(h.Name(), err)
	}
	return stage.Healthy(h.Name())
}
