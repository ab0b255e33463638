package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewTEIClient(t *testing.T) {
	client := NewTEIClient("http://localhost:8080", 768)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.baseURL != "http://localhost:8080" {
		t.Errorf("expected baseURL http://localhost:8080, got %s", client.baseURL)
	}
	if client.Dimensions() != 768 {
		t.Errorf("expected 768 dimensions, got %d", client.Dimensions())
	}
}

func TestEmbedBatch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/embed" {
			t.Errorf("expected /embed, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Inputs) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Inputs))
		}

		mockEmbeddings := [][]float32{
			{0.1, 0.2, 0.3},
			{0.4, 0.5, 0.6},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockEmbeddings)
	}))
	defer server.Close()

	client := NewTEIClient(server.URL, 3)
	embeddings, err := client.EmbedBatch(context.Background(), []string{"text1", "text2"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(embeddings))
	}
	if len(embeddings[0]) != 3 {
		t.Errorf("expected embedding dimension 3, got %d", len(embeddings[0]))
	}
	if embeddings[0][0] != 0.1 {
		t.Errorf("expected first value 0.1, got %f", embeddings[0][0])
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	client := NewTEIClient("http://localhost:8080", 3)
	embeddings, err := client.EmbedBatch(context.Background(), []string{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(embeddings) != 0 {
		t.Errorf("expected 0 embeddings, got %d", len(embeddings))
	}
}

func TestEmbed_BlankTextZeroVector(t *testing.T) {
	// No server needed: blank text must never reach it.
	client := NewTEIClient("http://localhost:8080", 4)
	vec, err := client.Embed(context.Background(), "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected 4 dimensions, got %d", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Errorf("expected zero at index %d, got %f", i, v)
		}
	}
}

func TestEmbedBatch_BlankEntriesZeroFilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Inputs) != 1 || req.Inputs[0] != "real" {
			t.Errorf("expected only non-blank inputs, got %v", req.Inputs)
		}
		json.NewEncoder(w).Encode([][]float32{{0.5, 0.5}})
	}))
	defer server.Close()

	client := NewTEIClient(server.URL, 2)
	embeddings, err := client.EmbedBatch(context.Background(), []string{"", "real", ""})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(embeddings))
	}
	if embeddings[0][0] != 0 || embeddings[2][0] != 0 {
		t.Error("expected blank entries to be zero vectors")
	}
	if embeddings[1][0] != 0.5 {
		t.Errorf("expected real embedding at index 1, got %v", embeddings[1])
	}
}

func TestEmbedBatch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
	}))
	defer server.Close()

	client := NewTEIClient(server.URL, 3)
	_, err := client.EmbedBatch(context.Background(), []string{"text1"})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	expectedMsg := "TEI error (status 500)"
	if len(err.Error()) < len(expectedMsg) || err.Error()[:len(expectedMsg)] != expectedMsg {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestEmbedBatch_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client := NewTEIClient(server.URL, 3)
	_, err := client.EmbedBatch(context.Background(), []string{"text1"})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	expectedMsg := "failed to decode response"
	if len(err.Error()) < len(expectedMsg) || err.Error()[:len(expectedMsg)] != expectedMsg {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{{0.1}})
	}))
	defer server.Close()

	client := NewTEIClient(server.URL, 1)
	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEmbedBatch_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewTEIClient(server.URL, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.EmbedBatch(ctx, []string{"text1"})

	if err == nil {
		t.Fatal("expected error due to context cancellation, got nil")
	}
}

func TestMockProviderDeterministic(t *testing.T) {
	provider := NewMockProvider(8)

	a, err := provider.Embed(context.Background(), "def login(): ...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := provider.Embed(context.Background(), "def login(): ...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := provider.Embed(context.Background(), "something else")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a) != 8 {
		t.Fatalf("expected 8 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("expected identical vectors for identical text")
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different vectors for different text")
	}
}
