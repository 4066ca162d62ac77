package rag

import (
	"fmt"
	"strings"

	"avatarchat-backend/internal/models"
)

// DefaultContextTokenBudget caps how much retrieved text gets folded into the
// agent prompt. Token counts are estimated, not tokenized.
const DefaultContextTokenBudget = 2000

// FormatContext renders retrieved documents as a delimited prompt block.
// Each document contributes its title plus up to 1000 characters of content;
// once the estimated token total (0.25 tokens per character) would exceed the
// budget, remaining documents collapse into a count placeholder.
func FormatContext(docs []models.Document, maxTokens int) string {
	if len(docs) == 0 {
		return ""
	}

	parts := []string{"--- Retrieved Context ---"}
	total := 0.0
	for i, doc := range docs {
		content := doc.Content
		if len(content) > 1000 {
			content = content[:1000]
		}
		entry := fmt.Sprintf("Document %d: %s\n%s", i+1, doc.Title, content)

		estimated := float64(len(entry)) * 0.25
		if total+estimated > float64(maxTokens) {
			parts = append(parts, fmt.Sprintf("... (%d more documents)", len(docs)-i))
			break
		}
		parts = append(parts, entry)
		total += estimated
	}
	parts = append(parts, "--- End of Context ---")

	return strings.Join(parts, "\n\n")
}
