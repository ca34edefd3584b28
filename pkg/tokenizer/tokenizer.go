package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// CountTokens estimates how many model tokens text uses. It takes the larger
// of a word-based and a character-based guess so that long unbroken strings
// such as URLs are not undercounted.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	byWords := len(strings.Fields(text)) * 4 / 3
	byChars := utf8.RuneCountInString(text) / 4
	return max(byWords, byChars, 1)
}
