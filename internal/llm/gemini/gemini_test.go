package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	model  string
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func answer(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestGenerate(t *testing.T) {
	fake := &fakeModels{resp: answer("  Cats are pets.\n")}
	c := newClient(fake, "")

	got, err := c.Generate(context.Background(), "tell me about cats")
	require.NoError(t, err)
	assert.Equal(t, "Cats are pets.", got)
	assert.Equal(t, defaultModel, fake.model)
	assert.Equal(t, "tell me about cats", fake.prompt)
	assert.Equal(t, "gemini", c.Name())
}

func TestGenerateEmptyAnswer(t *testing.T) {
	c := newClient(&fakeModels{resp: &genai.GenerateContentResponse{}}, "gemini-pro")
	_, err := c.Generate(context.Background(), "x")
	assert.ErrorContains(t, err, "no text")
}

func TestGenerateWrapsError(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := newClient(&fakeModels{err: boom}, "")
	_, err := c.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("DOCCHAT_GEMINI_EMPTY", "")
	_, err := NewClient(context.Background(), Config{APIKeyEnv: "DOCCHAT_GEMINI_EMPTY"})
	assert.ErrorContains(t, err, "DOCCHAT_GEMINI_EMPTY")
}
