package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"harmoni/config"
)

// Client holt Embedding-Vektoren über den OpenAI-Embeddings-Endpunkt.
// Die Dimension bestimmt das konfigurierte Modell.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	apiKey  string
	logger  *zap.Logger
}

// NewClient erstellt einen neuen Embedding-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.EmbeddingAPIKey)
	if cfg.EmbeddingBaseURL != "" {
		clientConfig.BaseURL = cfg.EmbeddingBaseURL
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.EmbeddingModel,
		timeout: time.Duration(cfg.EmbeddingTimeout) * time.Second,
		apiKey:  cfg.EmbeddingAPIKey,
		logger:  logger,
	}
}

// Ping prüft, ob der Provider nutzbar konfiguriert ist.
func (c *Client) Ping(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("EMBEDDING_API_KEY ist nicht konfiguriert")
	}
	return nil
}

// Embed liefert einen Vektor pro Eingabetext, in Eingabereihenfolge.
// Leere Texte werden durch ein Leerzeichen ersetzt, damit ein einzelner
// titelloser Artikel nicht den ganzen Batch kippt.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	input := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		input[i] = t
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API error: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embedding: %d Vektoren für %d Texte erhalten", len(resp.Data), len(input))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding: unerwarteter Index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
