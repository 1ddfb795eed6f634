package telegram

import (
	"regexp"
	"strings"
)

const (
	titleHardCap = 200
	// titlePlaceholder is used when a post has no usable text before the
	// separator (e.g. a bare photo with only hashtags).
	titlePlaceholder = "Без названия"
	// snapTolerance: a word-boundary cut may shorten the text by at most
	// 30% of the target length, otherwise we hard-truncate.
	snapTolerance = 0.3
)

var newlineRe = regexp.MustCompile(`\s*\n+\s*`)

// SplitResult carries the three text representations of a post.
type SplitResult struct {
	Title    string
	CardText string
	FullText string
}

// SplitText derives title, card (preview) and full (page) text from a
// hashtag-stripped post.
//
// The title always comes from the text before the first separator
// occurrence; the full text is everything after it (or the whole text when
// the separator is empty or absent); the card text is the full text cut
// down to the title's length at a word boundary.
func SplitText(stripped, separator string, previewLength int) SplitResult {
	pre := stripped
	full := strings.TrimSpace(stripped)

	if separator != "" {
		if idx := strings.Index(stripped, separator); idx >= 0 {
			pre = stripped[:idx]
			full = strings.TrimSpace(stripped[idx+len(separator):])
		}
	}

	title := strings.TrimSpace(newlineRe.ReplaceAllString(pre, " "))
	if previewLength > 0 {
		title = truncateAtWord(title, previewLength)
	}
	title = hardTruncate(title, titleHardCap)
	if title == "" {
		title = titlePlaceholder
	}

	card := truncateAtWord(full, len([]rune(title)))

	return SplitResult{Title: title, CardText: card, FullText: full}
}

// truncateAtWord cuts text to at most limit runes, snapping back to the
// nearest preceding space when that space is no more than snapTolerance
// short of the limit.
func truncateAtWord(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return strings.TrimRight(text, " ")
	}

	cut := runes[:limit]
	lastSpace := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == ' ' {
			lastSpace = i
			break
		}
	}

	minKeep := int(float64(limit) * (1 - snapTolerance))
	if lastSpace >= minKeep {
		cut = cut[:lastSpace]
	}
	return strings.TrimRight(string(cut), " ")
}

func hardTruncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
