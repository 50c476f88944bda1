package chat

import (
	"fmt"
	"strings"

	"docchat/internal/domain"
)

const instructions = "You are an assistant that answers using the context provided by the user's documents. " +
	"Keep the answer well formatted without special characters such as * or #. " +
	"Use line breaks to separate ideas.\n"

// BuildPrompt renders the conversation history followed by the context
// documents into a single prompt.
func BuildPrompt(history []domain.Message, docs []domain.Document) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\nConversation history:\n")
	for _, m := range history {
		switch m.Role {
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	if len(docs) > 0 {
		b.WriteString("\nBased on the following documents:\n\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "Document %q:\n%s\n\n", d.Filename, d.Content)
		}
	}
	return b.String()
}
