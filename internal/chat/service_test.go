package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
	"docchat/internal/logging"
	"docchat/internal/relevance"
	"docchat/internal/summarizer"
)

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func newService(llm domain.LLM, opts Options) *Service {
	return NewService(relevance.NewIndex(), llm, summarizer.NewFrequencySummarizer(), opts, logging.Discard())
}

func TestSendUsesTopDocumentAsContext(t *testing.T) {
	llm := &fakeLLM{reply: "Cats are great pets."}
	svc := newService(llm, Options{})
	svc.AddDocument("cats are great pets", "cats.md")
	svc.AddDocument("dogs are great pets too", "dogs.md")

	resp, err := svc.Send(context.Background(), "tell me about cats")
	require.NoError(t, err)

	assert.Equal(t, "Cats are great pets.", resp.Text)
	assert.Equal(t, "cats.md", resp.Source)
	require.Len(t, resp.RelevantDocs, 1)
	assert.Equal(t, "cats.md", resp.RelevantDocs[0].Filename)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "User: tell me about cats")
	assert.Contains(t, prompt, "Document \"cats.md\":\ncats are great pets")
	assert.NotContains(t, prompt, "dogs.md")
}

func TestSendContextDocumentsOption(t *testing.T) {
	llm := &fakeLLM{reply: "ok"}
	svc := newService(llm, Options{ContextDocuments: 2})
	svc.AddDocument("alpha", "a.md")
	svc.AddDocument("beta", "b.md")
	svc.AddDocument("gamma", "c.md")

	resp, err := svc.Send(context.Background(), "gamma")
	require.NoError(t, err)
	require.Len(t, resp.RelevantDocs, 2)
	assert.Equal(t, "c.md", resp.RelevantDocs[0].Filename)
	assert.Equal(t, "a.md", resp.RelevantDocs[1].Filename)
}

func TestSendWithoutDocuments(t *testing.T) {
	llm := &fakeLLM{reply: "I have no documents."}
	svc := newService(llm, Options{})

	resp, err := svc.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Empty(t, resp.Source)
	assert.Empty(t, resp.RelevantDocs)
	assert.NotContains(t, llm.prompts[0], "Based on the following documents")
}

func TestSendRecordsHistory(t *testing.T) {
	llm := &fakeLLM{reply: "first answer"}
	svc := newService(llm, Options{})

	_, err := svc.Send(context.Background(), "first question")
	require.NoError(t, err)
	llm.reply = "second answer"
	_, err = svc.Send(context.Background(), "second question")
	require.NoError(t, err)

	hist := svc.History()
	require.Len(t, hist, 4)
	assert.Equal(t, domain.RoleUser, hist[0].Role)
	assert.Equal(t, domain.RoleAssistant, hist[1].Role)
	assert.Equal(t, "second answer", hist[3].Content)
	assert.Contains(t, llm.prompts[1], "User: first question\nAssistant: first answer\nUser: second question\n")
}

func TestSendEmptyMessage(t *testing.T) {
	llm := &fakeLLM{}
	svc := newService(llm, Options{})

	_, err := svc.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, llm.prompts)
	assert.Empty(t, svc.History())
}

func TestSendModelError(t *testing.T) {
	boom := errors.New("unauthorized")
	svc := newService(&fakeLLM{err: boom}, Options{})

	_, err := svc.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "fake")

	hist := svc.History()
	require.Len(t, hist, 1)
	assert.Equal(t, domain.RoleUser, hist[0].Role)
}

func TestSearchTopK(t *testing.T) {
	svc := newService(&fakeLLM{}, Options{})
	svc.AddDocument("cats", "1")
	svc.AddDocument("dogs", "2")
	svc.AddDocument("birds", "3")

	res := svc.Search("dogs", 2)
	require.Len(t, res, 2)
	assert.Equal(t, "2", res[0].Document.Filename)
	assert.Len(t, svc.Search("dogs", 0), 3)
}

func TestSummaryRefreshesAfterIngestion(t *testing.T) {
	svc := newService(&fakeLLM{}, Options{SummaryMaxSentences: 1})
	svc.AddDocument("Cats purr.", "a.md")

	first, err := svc.Summary()
	require.NoError(t, err)
	assert.Equal(t, "Cats purr.", first)

	svc.AddDocument("Dogs bark loudly at dogs.", "b.md")
	second, err := svc.Summary()
	require.NoError(t, err)
	assert.Equal(t, "Dogs bark loudly at dogs.", second)
}

func TestConcurrentIngestAndSearch(t *testing.T) {
	svc := newService(&fakeLLM{reply: "ok"}, Options{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			svc.AddDocument(fmt.Sprintf("document number %d about pets", i), fmt.Sprintf("%d.md", i))
		}(i)
		go func() {
			defer wg.Done()
			for _, r := range svc.Search("pets", 0) {
				assert.LessOrEqual(t, r.Score, 1.0)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, svc.Documents(), 20)
}
