package telegram

import (
	"regexp"
	"strings"
)

// A hashtag is '#' followed by word characters; \w under RE2 with the
// unicode flag covers Cyrillic tags like #логопед.
var hashtagRe = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// ExtractHashtags returns hashtag tokens in post order, lower-cased,
// without the leading '#'. Duplicates are retained. Empty text yields an
// empty slice.
func ExtractHashtags(text string) []string {
	if text == "" {
		return nil
	}
	matches := hashtagRe.FindAllString(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, strings.ToLower(strings.TrimPrefix(m, "#")))
	}
	return tags
}

// StripHashtags removes every hashtag token from the text. Surrounding
// whitespace is left untouched so the splitter sees the original layout.
func StripHashtags(text string) string {
	return hashtagRe.ReplaceAllString(text, "")
}
