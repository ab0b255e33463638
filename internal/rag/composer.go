package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeatlas/backend/internal/db"
	"github.com/codeatlas/backend/internal/llm"
	"github.com/codeatlas/backend/internal/metrics"
)

const historyWindow = 5

// ContextRetriever supplies graph context for a question. Satisfied by
// db.Retriever.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, scope db.Scope) string
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one question with its conversation so far and its scope.
type Request struct {
	Question    string
	History     []Message
	RepoID      string
	FilePath    string
	ContextJSON string
}

// Answer is the model's response plus the graph context it was grounded on.
type Answer struct {
	Response    string `json:"response"`
	ContextUsed string `json:"context_used"`
}

// Composer turns a question into an answer: retrieve graph context, fold in
// recent history, prompt the model.
type Composer struct {
	retriever ContextRetriever
	client    llm.Client
	logger    *slog.Logger
}

func NewComposer(retriever ContextRetriever, client llm.Client, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{retriever: retriever, client: client, logger: logger}
}

func (c *Composer) Answer(ctx context.Context, req Request) (*Answer, error) {
	mode := "repository"
	if req.FilePath != "" {
		mode = "file"
	}

	retrieveStart := time.Now()
	graphContext := c.retriever.Retrieve(ctx, req.Question, db.Scope{
		RepoID:      req.RepoID,
		FilePath:    req.FilePath,
		ContextJSON: req.ContextJSON,
	})
	metrics.Get().RetrievalDuration.WithLabelValues(mode).Observe(time.Since(retrieveStart).Seconds())

	prompt := buildPrompt(req, graphContext)

	response, err := c.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: llm.Float32(0.3),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &Answer{
		Response:    strings.TrimSpace(response),
		ContextUsed: graphContext,
	}, nil
}

func buildPrompt(req Request, graphContext string) string {
	var b strings.Builder

	if req.FilePath != "" {
		fmt.Fprintf(&b, `You are a code analysis assistant answering questions about the file %s.
Base your answer only on the context below. If the context does not cover the
question, say so instead of guessing. Keep the answer under 200 words.

`, req.FilePath)
	} else {
		b.WriteString(`You are a code analysis assistant answering questions about an indexed
codebase using its knowledge graph. Base your answer only on the context
below. If the context does not cover the question, say so instead of
guessing. Keep the answer under 300 words.

`)
	}

	b.WriteString("CONTEXT:\n")
	b.WriteString(graphContext)
	b.WriteString("\n\n")

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) > 0 {
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "QUESTION: %s\n", req.Question)
	return b.String()
}
