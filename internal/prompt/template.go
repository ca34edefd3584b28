package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// AnswerTemplate is the single prompt sent to the answer model. It expects
// the variables context, history and question.
const AnswerTemplate = `You are a detailed assistant for a website. Answer the question using only the context below. If the answer is not in the context, say that you don't know.

Instructions:
- Give a complete answer, using several paragraphs when the question needs it.
- Use point-wise lists when they make the answer clearer.
- Include specific details such as departments, names and programs when the context mentions them.
- Keep a professional tone.

CONTEXT:
{{context}}

CONVERSATION SO FAR:
{{history}}

QUESTION: {{question}}`

// Render replaces {{variable}} placeholders in the template with values from vars.
// Substituted values are not scanned again, so user text containing braces is
// inserted verbatim.
func Render(template string, vars map[string]string) (string, error) {
	missing := findMissingVars(template, vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	result := variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-2]
		if val, ok := vars[key]; ok {
			return val
		}
		return match
	})

	return result, nil
}

// RenderAnswer fills AnswerTemplate.
func RenderAnswer(context, history, question string) string {
	if strings.TrimSpace(history) == "" {
		history = "(none)"
	}
	out, _ := Render(AnswerTemplate, map[string]string{
		"context":  context,
		"history":  history,
		"question": question,
	})
	return out
}

// ExtractVariables returns a list of variable names found in the template.
func ExtractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

func findMissingVars(template string, vars map[string]string) []string {
	required := ExtractVariables(template)
	var missing []string
	for _, v := range required {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
