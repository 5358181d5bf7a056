package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"searchcore/internal/config"
	"searchcore/internal/model"
	"searchcore/internal/utils"
)

// OpenAIClient talks to an OpenAI-compatible API for chat-based intent
// extraction and embeddings. It implements both Extractor and Embedder.
type OpenAIClient struct {
	cfg        *config.OpenAIConfig
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ Extractor = (*OpenAIClient)(nil)
	_ Embedder  = (*OpenAIClient)(nil)
)

// NewOpenAIClient creates a client for the configured provider.
func NewOpenAIClient(cfg *config.OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

const extractionPromptFmt = `You are a property search assistant. Parse the user's query (locale: %s) into structured filters.

Return ONLY a JSON object with these fields, omitting any field not present in the query:
- property_types: array drawn from ["condo","villa","apartment","townhouse","land"]
- transaction_types: array drawn from ["sale","rent"]
- bedrooms_min: minimum number of bedrooms (integer)
- price_min_minor: minimum price in minor currency units, e.g. cents (integer)
- price_max_minor: maximum price in minor currency units (integer)
- amenities: array drawn from ["pool","gym","parking","balcony","garden","aircon","security","playground","tennis","bbq","sea_view","furnished","elevator","storage"]
- locations: array of district or area name tokens, lower-cased
- confidence: your confidence in the extraction, 0.0 to 1.0

Rules:
- Use ONLY the listed enum values; never invent new ones.
- "1.5M" = 150000000 minor units, "800K" = 80000000 minor units.
- "3 bedroom" or "at least 3 bedrooms" means bedrooms_min = 3.

Examples:
Query: "3 bedroom villa with pool"
Response: {"bedrooms_min": 3, "property_types": ["villa"], "amenities": ["pool"], "confidence": 0.9}

Query: "condo or apartment for rent near marina bay under 4K"
Response: {"property_types": ["condo","apartment"], "transaction_types": ["rent"], "price_max_minor": 400000, "locations": ["marina bay"], "confidence": 0.85}`

// ExtractIntent asks the model for a structured reading of the query. The
// response is parsed tolerantly but not validated here; vocabulary
// enforcement belongs to the interpreter.
func (c *OpenAIClient) ExtractIntent(ctx context.Context, text string, locale model.Locale) (*IntentExtraction, error) {
	if !c.cfg.Enabled {
		return nil, ErrDisabled
	}

	req := chatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(extractionPromptFmt, locale)},
			{Role: "user", Content: text},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp chatCompletionResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}

	content := resp.Choices[0].Message.Content
	var result IntentExtraction
	if err := utils.DecodeModelJSON(content, &result); err != nil {
		c.logger.Warn("unparseable extraction output", "content", utils.Truncate(content, 200))
		return nil, fmt.Errorf("failed to parse extraction output: %w", err)
	}
	return &result, nil
}

// EmbedTexts creates embeddings for the given texts. Order is preserved.
// The provider is locale-agnostic; the locale travels with the request so
// alternative providers can route per language.
func (c *OpenAIClient) EmbedTexts(ctx context.Context, texts []string, locale model.Locale) ([][]float32, error) {
	if !c.cfg.Enabled {
		return nil, ErrDisabled
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := embeddingRequest{
		Model:          c.cfg.EmbeddingModel,
		Input:          texts,
		Dimensions:     c.cfg.EmbeddingDimensions,
		EncodingFormat: "float",
	}

	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("provider returned no embedding for input %d", i)
		}
	}
	return embeddings, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload, target interface{}) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, utils.Truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
