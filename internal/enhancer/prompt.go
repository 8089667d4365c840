package enhancer

import (
	"fmt"
	"time"

	"ramble/internal/textutil"
)

const systemPrompt = "You are an expert at processing voice memos into structured, " +
	"actionable content. Always respond with valid JSON."

const promptTemplate = `Process this voice memo transcript into organized topic documents.

The memo was recorded on %s.

ORIGINAL TRANSCRIPT:
%s

Please:
1. CLEAN: Remove filler words (um, uh, like, you know) and fix transcription artifacts (run-on sentences, missing punctuation, capitalization) while preserving the speaker's natural voice and intent
2. EXCLUDE: Remove incidental interactions that are not part of the main content, such as talking to pets or greeting passers-by
3. SEPARATE: Split the content into self-contained topics. A memo about one subject yields exactly one topic
4. PRESERVE FLOW: Maintain the natural progression within each topic and the speaker's original meaning
5. COMPLETE: Naturally finish any incomplete thoughts without adding new ideas
6. DATE: If the speaker explicitly states the memo is about a different date (for example "these are my notes from last Tuesday"), report that date; otherwise report null

Format the response as JSON:
{
  "session_title": "Concise title for the whole memo",
  "override_date": null,
  "topics": [
    {
      "filename_slug": "short-hyphenated-slug",
      "title": "Topic Title",
      "content": "Well-structured markdown content for this topic"
    }
  ]
}

Rules: override_date must be an ISO date (YYYY-MM-DD) or null. Each filename_slug must be lowercase, hyphenated, at most %d characters, and unique within the response. The topics array must contain at least one entry. Ensure the JSON is valid.`

func buildUserPrompt(transcriptText string, nominalDate time.Time) string {
	return fmt.Sprintf(promptTemplate,
		nominalDate.Format("2006-01-02"),
		transcriptText,
		textutil.MaxSlugLength)
}
