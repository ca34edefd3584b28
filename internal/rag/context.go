package rag

import (
	"strings"

	"github.com/nikhilbhutani/askgenie/internal/models"
	"github.com/nikhilbhutani/askgenie/internal/vectorstore"
)

const contextSeparator = "\n\n---\n\n"

// FilterByChatbot keeps the matches whose metadata names chatbotID exactly.
// Stores may ignore or partially apply a server-side filter, so results are
// always checked again here.
func FilterByChatbot(matches []vectorstore.Match, chatbotID string) []vectorstore.Match {
	out := matches[:0:0]
	for _, m := range matches {
		if m.Metadata.ChatbotID == chatbotID {
			out = append(out, m)
		}
	}
	return out
}

// BuildContext joins chunk texts in match order.
func BuildContext(matches []vectorstore.Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Content
	}
	return strings.Join(parts, contextSeparator)
}

// UniqueSources lists source URLs in order of first occurrence.
func UniqueSources(matches []vectorstore.Match) []string {
	seen := make(map[string]bool, len(matches))
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		url := m.Metadata.URL
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		sources = append(sources, url)
	}
	return sources
}

// RenderTranscript formats messages oldest first, one "User:" or "AI:" line
// per turn.
func RenderTranscript(msgs []models.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.Role == models.RoleAI {
			b.WriteString("AI: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
