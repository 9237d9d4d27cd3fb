package stats

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Broadcaster abbreviations that stay fully uppercased wherever they
// appear in a derived channel name.
var broadcasterTokens = []string{"bbc", "itv", "uk"}

var tokenPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(broadcasterTokens))
	for i, token := range broadcasterTokens {
		patterns[i] = regexp.MustCompile("(?i)" + token)
	}
	return patterns
}()

// Humanize derives a display label from a channel id: underscores become
// spaces, each word gets a leading capital, and known broadcaster
// abbreviations are uppercased wherever they occur, case-insensitively.
// Pure function; payload-supplied names never feed into it.
func Humanize(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, word := range words {
		// Word boundaries are rune boundaries, not byte boundaries.
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	label := strings.Join(words, " ")

	for i, pattern := range tokenPatterns {
		upper := strings.ToUpper(broadcasterTokens[i])
		label = pattern.ReplaceAllString(label, upper)
	}
	return label
}
