package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxSlugLength bounds generated filename slugs.
const MaxSlugLength = 40

var titleCaser = cases.Title(language.English)

// Slugify converts a title into a lowercase hyphenated token safe for use as
// a file or directory name, truncated to MaxSlugLength at a hyphen boundary
// where possible.
func Slugify(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "untitled"
	}
	var b strings.Builder
	lastHyphen := true
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "untitled"
	}
	if len(slug) > MaxSlugLength {
		truncated := slug[:MaxSlugLength]
		if idx := strings.LastIndexByte(truncated, '-'); idx > MaxSlugLength/2 {
			truncated = truncated[:idx]
		}
		slug = strings.Trim(truncated, "-")
	}
	return slug
}

// TitleFromSlug derives a human-readable display title from a hyphenated slug.
func TitleFromSlug(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "Untitled"
	}
	words := strings.ReplaceAll(strings.ReplaceAll(slug, "-", " "), "_", " ")
	return titleCaser.String(strings.Join(strings.Fields(words), " "))
}

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)
