// Package chat answers user messages with a language model, using the most
// relevant workspace documents as context.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"docchat/internal/domain"
	"docchat/internal/relevance"
)

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// Options tunes a Service.
type Options struct {
	ContextDocuments    int
	SummaryMaxSentences int
}

// Service owns the relevance index and the conversation. Ingestion takes the
// write lock so document-frequency updates and the append are seen together.
type Service struct {
	mu      sync.RWMutex
	index   *relevance.Index
	summary string
	stale   bool

	histMu  sync.Mutex
	history []domain.Message

	llm        domain.LLM
	summarizer domain.Summarizer
	opts       Options
	log        *logrus.Entry
	now        func() time.Time
}

// NewService wires an index, a model and a summarizer together.
func NewService(index *relevance.Index, llm domain.LLM, summarizer domain.Summarizer, opts Options, log *logrus.Entry) *Service {
	if opts.ContextDocuments <= 0 {
		opts.ContextDocuments = 1
	}
	return &Service{
		index:      index,
		llm:        llm,
		summarizer: summarizer,
		opts:       opts,
		log:        log.WithField("component", "chat"),
		now:        time.Now,
		stale:      true,
	}
}

// AddDocument ingests one document.
func (s *Service) AddDocument(content, filename string) domain.Document {
	s.mu.Lock()
	doc := s.index.AddDocument(content, filename)
	s.stale = true
	n := s.index.Len()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"filename": filename,
		"id":       doc.ID,
		"terms":    len(doc.TermVector),
		"corpus":   n,
	}).Info("document ingested")
	return doc
}

// Documents returns the ingested documents in insertion order.
func (s *Service) Documents() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Documents()
}

// Search ranks the corpus against query and returns at most topK results.
// topK <= 0 returns everything.
func (s *Service) Search(query string, topK int) []domain.SearchResult {
	s.mu.RLock()
	res := s.index.Rank(query)
	s.mu.RUnlock()
	if topK > 0 && topK < len(res) {
		res = res[:topK]
	}
	return res
}

// Summary returns a short extractive summary of every ingested document.
func (s *Service) Summary() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stale {
		return s.summary, nil
	}
	var all strings.Builder
	for _, d := range s.index.Documents() {
		all.WriteString(d.Content)
		all.WriteString("\n")
	}
	summary, err := s.summarizer.Summarize(all.String(), s.opts.SummaryMaxSentences)
	if err != nil {
		return "", fmt.Errorf("summarize workspace: %w", err)
	}
	s.summary, s.stale = summary, false
	return summary, nil
}

// History returns a copy of the conversation so far.
func (s *Service) History() []domain.Message {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	out := make([]domain.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Send records the user message, picks context documents, asks the model and
// records its answer.
func (s *Service) Send(ctx context.Context, text string) (domain.ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatResponse{}, ErrEmptyMessage
	}

	s.histMu.Lock()
	s.history = append(s.history, domain.Message{Role: domain.RoleUser, Content: text, Timestamp: s.now()})
	history := make([]domain.Message, len(s.history))
	copy(history, s.history)
	s.histMu.Unlock()

	s.mu.RLock()
	ranked := s.index.FindMostRelevant(text)
	s.mu.RUnlock()
	docs := ranked
	if len(docs) > s.opts.ContextDocuments {
		docs = docs[:s.opts.ContextDocuments]
	}

	log := s.log.WithFields(logrus.Fields{"provider": s.llm.Name(), "context_docs": len(docs)})
	log.Debug("sending prompt")
	answer, err := s.llm.Generate(ctx, BuildPrompt(history, docs))
	if err != nil {
		log.WithError(err).Warn("generation failed")
		return domain.ChatResponse{}, fmt.Errorf("%s: %w", s.llm.Name(), err)
	}

	s.histMu.Lock()
	s.history = append(s.history, domain.Message{Role: domain.RoleAssistant, Content: answer, Timestamp: s.now()})
	s.histMu.Unlock()

	resp := domain.ChatResponse{Text: answer, RelevantDocs: docs}
	if len(docs) > 0 {
		resp.Source = docs[0].Filename
	}
	return resp, nil
}
