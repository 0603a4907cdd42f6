package perplexity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"harmoni/config"
	"harmoni/providers"
)

// Client spricht die Perplexity-API über deren OpenAI-kompatiblen
// Chat-Completions-Endpunkt an.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	apiKey  string
	logger  *zap.Logger
}

// NewClient erstellt einen neuen Perplexity-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.PplxAPIKey)
	if cfg.PplxBaseURL != "" {
		clientConfig.BaseURL = cfg.PplxBaseURL
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.PplxModel,
		timeout: time.Duration(cfg.PplxTimeout) * time.Second,
		apiKey:  cfg.PplxAPIKey,
		logger:  logger,
	}
}

// Ping prüft, ob der Provider nutzbar konfiguriert ist.
func (c *Client) Ping(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("PPLX_API_KEY ist nicht konfiguriert")
	}
	return nil
}

// GenerateJSON schickt einen Prompt mit json_schema-Response-Format ab und
// gibt das validierte JSON-Objekt der Antwort zurück.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, schema providers.Schema) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: schema.Definition,
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("perplexity API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("perplexity: leere Antwort")
	}

	content := resp.Choices[0].Message.Content

	// Kompatibilitäts-Shim: manche Provider liefern das Objekt trotz
	// Schema-Vorgabe in Code-Fences verpackt.
	raw, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// ExtractJSON holt das äußerste JSON-Objekt aus einer möglicherweise
// dekorierten Antwort (Code-Fences, Begleittext).
func ExtractJSON(content string) (json.RawMessage, error) {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("kein JSON-Objekt in der Antwort gefunden")
	}
	raw := json.RawMessage(content[start : end+1])

	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("ungültiges JSON in der Antwort: %w", err)
	}
	return raw, nil
}
