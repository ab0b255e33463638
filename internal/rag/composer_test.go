package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/backend/internal/db"
	"github.com/codeatlas/backend/internal/llm"
)

type fakeRetriever struct {
	context   string
	lastScope db.Scope
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, scope db.Scope) string {
	f.lastScope = scope
	return f.context
}

type fakeLLM struct {
	response string
	err      error
	prompt   string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestAnswer(t *testing.T) {
	retriever := &fakeRetriever{context: "Relevant code elements:\n- login: validates credentials"}
	client := &fakeLLM{response: "  login validates user credentials.  "}
	composer := NewComposer(retriever, client, nil)

	answer, err := composer.Answer(context.Background(), Request{
		Question: "how does login work?",
		RepoID:   "repo-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "login validates user credentials.", answer.Response)
	assert.Equal(t, retriever.context, answer.ContextUsed)
	assert.Equal(t, "repo-1", retriever.lastScope.RepoID)
	assert.Contains(t, client.prompt, "how does login work?")
	assert.Contains(t, client.prompt, retriever.context)
}

func TestAnswerFileScope(t *testing.T) {
	retriever := &fakeRetriever{context: "File context: ..."}
	client := &fakeLLM{response: "answer"}
	composer := NewComposer(retriever, client, nil)

	_, err := composer.Answer(context.Background(), Request{
		Question:    "what does this file do?",
		FilePath:    "src/auth.py",
		ContextJSON: `{"entities": []}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "src/auth.py", retriever.lastScope.FilePath)
	assert.Equal(t, `{"entities": []}`, retriever.lastScope.ContextJSON)
	assert.Contains(t, client.prompt, "src/auth.py")
	assert.Contains(t, client.prompt, "200 words")
}

func TestAnswerTrimsHistory(t *testing.T) {
	retriever := &fakeRetriever{context: db.NoContextSentinel}
	client := &fakeLLM{response: "answer"}
	composer := NewComposer(retriever, client, nil)

	history := []Message{
		{Role: "user", Content: "turn-1"},
		{Role: "assistant", Content: "turn-2"},
		{Role: "user", Content: "turn-3"},
		{Role: "assistant", Content: "turn-4"},
		{Role: "user", Content: "turn-5"},
		{Role: "assistant", Content: "turn-6"},
		{Role: "user", Content: "turn-7"},
	}

	_, err := composer.Answer(context.Background(), Request{
		Question: "and then?",
		History:  history,
	})
	require.NoError(t, err)

	assert.NotContains(t, client.prompt, "turn-1")
	assert.NotContains(t, client.prompt, "turn-2")
	assert.Contains(t, client.prompt, "turn-3")
	assert.Contains(t, client.prompt, "turn-7")

	// The missing-context sentinel travels into the prompt unchanged.
	assert.Contains(t, client.prompt, db.NoContextSentinel)
}

func TestAnswerModelError(t *testing.T) {
	composer := NewComposer(&fakeRetriever{context: "ctx"}, &fakeLLM{err: errors.New("model down")}, nil)

	_, err := composer.Answer(context.Background(), Request{Question: "q"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "model down"))
}
