package conversation

import "strings"

const maxTitleRunes = 50

// TitleFrom derives a conversation title from its first question.
func TitleFrom(question string) string {
	q := strings.Join(strings.Fields(question), " ")
	r := []rune(q)
	if len(r) <= maxTitleRunes {
		return q
	}
	return string(r[:maxTitleRunes])
}
