package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/carewell-ai/go-companion/internal/httpc"
)

const (
	openAIEmbeddingsURL  = "https://api.openai.com/v1/embeddings"
	DefaultEmbedderModel = "text-embedding-3-small"
)

// OpenAIEmbedder implements Embedder over the OpenAI embeddings REST API.
type OpenAIEmbedder struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// EmbedderOption configures an OpenAIEmbedder.
type EmbedderOption func(*OpenAIEmbedder)

// WithEmbedderModel overrides the embedding model.
func WithEmbedderModel(model string) EmbedderOption {
	return func(e *OpenAIEmbedder) { e.model = model }
}

// WithEmbedderBaseURL overrides the API endpoint. For tests.
func WithEmbedderBaseURL(url string) EmbedderOption {
	return func(e *OpenAIEmbedder) { e.baseURL = url }
}

// WithEmbedderLogger sets the logger.
func WithEmbedderLogger(logger *slog.Logger) EmbedderOption {
	return func(e *OpenAIEmbedder) { e.logger = logger }
}

// NewOpenAIEmbedder creates an embedder authenticated with the given key.
func NewOpenAIEmbedder(apiKey string, opts ...EmbedderOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("memory: embedder API key required")
	}
	e := &OpenAIEmbedder{
		apiKey:  apiKey,
		model:   DefaultEmbedderModel,
		baseURL: openAIEmbeddingsURL,
		client:  httpc.Client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "memory.embedder")
	return e, nil
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}{Model: e.model, Input: text}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("memory: embeddings API error %d: %s", resp.StatusCode, msg)
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("memory: embeddings response empty")
	}
	return out.Data[0].Embedding, nil
}

// Verify OpenAIEmbedder implements Embedder at compile time.
var _ Embedder = (*OpenAIEmbedder)(nil)
