package domain

import (
	"context"
	"time"
)

// Document is a single ingested workspace file.
// TermVector is computed once at ingestion and must be treated as read-only.
type Document struct {
	ID         string
	Content    string
	Filename   string
	IngestedAt time.Time
	TermVector map[string]float64
}

// SearchResult represents a ranked document with its relevance score.
type SearchResult struct {
	Document Document
	Score    float64
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// ChatResponse is the answer to a user message plus the documents that were
// proposed to the model as context.
type ChatResponse struct {
	Text         string
	Source       string
	RelevantDocs []Document
}

// LLM generates a text completion for a prompt.
type LLM interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
