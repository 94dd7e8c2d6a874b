package usecase

import (
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

const filterSystemPrompt = "Extract metadata filters."

const conversationSystemPrompt = `You are a fact-conscious assistant. Use retrieved document chunks to answer user queries factually.
- Clearly cite sources (document and page number).
- If unsure, respond with "I don't know" or "This cannot be confirmed."
- Use qualifiers ("As of [date]...", "According to the document...").`

func buildFilterPrompt(query string) string {
	return `You are a highly skilled assistant that reads user search queries and extracts metadata filters.
Return a JSON object with optional keys: doc_id, page_num, date.

For example, from "in document report1 page 3", return:
{ "doc_id": "report1", "page_num": "3" }

User query: "` + query + `"`
}

func buildConversationPrompt(query, history, snippets string) string {
	var b strings.Builder
	b.WriteString("User asked:\n")
	b.WriteString(query)
	b.WriteString("\n\nContext from memory:\n")
	b.WriteString(history)
	b.WriteString("\n\nRetrieved document snippets:\n")
	b.WriteString(snippets)
	b.WriteString("\n\nNow provide a concise, accurate answer referencing the sources.\n")
	return b.String()
}

// renderSnippets flattens results as "[doc_id pg page_num] content", one per line.
func renderSnippets(results []domain.RankedResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, "["+r.DocID+" pg "+r.PageNum+"] "+r.Content)
	}
	return strings.Join(lines, "\n")
}
