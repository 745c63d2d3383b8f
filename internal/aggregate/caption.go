package aggregate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// PhotoPostTag is always the first tag of an imported post.
	PhotoPostTag = "photo-post"
	// MaxSlugLength is the hard cap Ghost accepts for slugs.
	MaxSlugLength = 190
	// MaxSummaryLength caps the caption-derived meta description.
	MaxSummaryLength = 500

	slugPrefix   = "Photo "
	fallbackSlug = "photo"
)

var hashtagPattern = regexp.MustCompile(`#[A-Za-z0-9-]+`)

// Title returns the caption up to the earlier of the first '.' and the first
// newline, or the whole caption when neither occurs.
func Title(caption string) string {
	end := len(caption)
	if i := strings.IndexByte(caption, '.'); i >= 0 && i < end {
		end = i
	}
	if i := strings.IndexByte(caption, '\n'); i >= 0 && i < end {
		end = i
	}
	return caption[:end]
}

// Tags returns PhotoPostTag followed by every hashtag in the caption, '#'
// stripped, in order of appearance. Repeated hashtags are kept.
func Tags(caption string) []string {
	matches := hashtagPattern.FindAllString(caption, -1)
	tags := make([]string, 0, len(matches)+1)
	tags = append(tags, PhotoPostTag)
	for _, m := range matches {
		tags = append(tags, strings.TrimPrefix(m, "#"))
	}
	return tags
}

// Lines splits the caption into its non-blank lines.
func Lines(caption string) []string {
	var lines []string
	for _, line := range strings.Split(caption, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Slug builds a URL-safe slug from "Photo " + title, at most MaxSlugLength
// bytes. It is never empty.
func Slug(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		slugPrefix+title,
	)
	if err != nil {
		folded = slugPrefix + title
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// Summary caps the caption at MaxSummaryLength runes.
func Summary(caption string) string {
	return truncateRunes(caption, MaxSummaryLength)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
