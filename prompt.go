package docrag

import (
	"fmt"
	"strings"

	"github.com/flarexio/docrag/vector"
)

// AssembleContext joins the text of the first n results with a single space
// and truncates it to maxChars characters.
func AssembleContext(results []vector.Result, n int, maxChars int) string {
	if n > len(results) {
		n = len(results)
	}

	texts := make([]string, n)
	for i := 0; i < n; i++ {
		texts[i] = results[i].Text
	}

	context := strings.Join(texts, " ")

	runes := []rune(context)
	if maxChars >= 0 && len(runes) > maxChars {
		context = string(runes[:maxChars])
	}

	return context
}

func BuildPrompt(question string, context string) string {
	if context == "" {
		return fmt.Sprintf("Please answer: %s", question)
	}

	return fmt.Sprintf("Question: %s\n\nContext: %s\n\nPlease answer the question based on the context above.",
		question, context)
}

// Sources lists the filename of every result in rank order.
func Sources(results []vector.Result) []string {
	sources := make([]string, len(results))
	for i, r := range results {
		sources[i] = r.Filename()
	}

	return sources
}
