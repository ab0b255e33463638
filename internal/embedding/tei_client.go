package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TEIClient calls a text-embeddings-inference server over HTTP.
type TEIClient struct {
	baseURL    string
	dimensions int
	httpClient *http.Client
}

func NewTEIClient(baseURL string, dimensions int) *TEIClient {
	return &TEIClient{
		baseURL:    baseURL,
		dimensions: dimensions,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

func (c *TEIClient) Dimensions() int {
	return c.dimensions
}

func (c *TEIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return make([]float32, c.dimensions), nil
	}

	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}
	return embeddings[0], nil
}

func (c *TEIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// Blank entries still need a slot in the aligned result, but the server
	// rejects empty inputs, so they are zero-filled locally.
	inputs := make([]string, 0, len(texts))
	inputIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		if text != "" {
			inputs = append(inputs, text)
			inputIdx = append(inputIdx, i)
		}
	}

	result := make([][]float32, len(texts))
	for i := range result {
		result[i] = make([]float32, c.dimensions)
	}
	if len(inputs) == 0 {
		return result, nil
	}

	reqBody, err := json.Marshal(embedRequest{Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TEI error (status %d): %s", resp.StatusCode, string(body))
	}

	var embeddings [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embeddings) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(embeddings))
	}

	for i, emb := range embeddings {
		result[inputIdx[i]] = emb
	}
	return result, nil
}
