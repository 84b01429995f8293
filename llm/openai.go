package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/use-agent/peel/models"
)

// Client wraps the go-openai SDK for BYOK structured extraction against any
// OpenAI-compatible endpoint (OpenAI itself, Azure, local vLLM/Ollama
// gateways, etc. — anything that speaks the /chat/completions shape).
type Client struct{}

// NewClient returns a stateless extraction client. Credentials and base URL
// are supplied per request via ExtractParams since this is a BYOK endpoint.
func NewClient(_ *http.Client) *Client {
	return &Client{}
}

// ExtractParams holds per-request LLM configuration (BYOK).
type ExtractParams struct {
	APIKey  string
	Model   string
	BaseURL string // e.g. "https://api.openai.com/v1"
}

// ExtractResult holds the LLM extraction output.
type ExtractResult struct {
	Data  json.RawMessage
	Usage *models.LLMUsage
}

// Extract sends the cleaned content + schema to the LLM and returns structured JSON.
func (c *Client) Extract(ctx context.Context, content string, schema json.RawMessage, params ExtractParams) (*ExtractResult, error) {
	cfg := openai.DefaultConfig(params.APIKey)
	if params.BaseURL != "" {
		cfg.BaseURL = params.BaseURL
	}
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(schema)},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classifyLLMError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	raw := resp.Choices[0].Message.Content
	if !json.Valid([]byte(raw)) {
		return nil, models.NewPeelError(models.ErrCodeLLMFailure, "LLM returned invalid JSON", nil)
	}

	return &ExtractResult{
		Data: json.RawMessage(raw),
		Usage: &models.LLMUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// buildSystemPrompt creates the system prompt for structured extraction.
func buildSystemPrompt(schema json.RawMessage) string {
	return fmt.Sprintf(`You are a structured data extraction assistant. Extract information from the provided content and return it as JSON matching the following schema.

Schema:
%s

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- If a field cannot be found in the content, use null.
- Extract exactly the fields specified in the schema.`, string(schema))
}

// classifyLLMError maps an SDK error to an internal error code.
func classifyLLMError(err error) *models.PeelError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return models.NewPeelError(models.ErrCodeLLMAuthFailure, apiErr.Message, err)
		case http.StatusTooManyRequests:
			return models.NewPeelError(models.ErrCodeLLMRateLimited, apiErr.Message, err)
		default:
			return models.NewPeelError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", apiErr.HTTPStatusCode, apiErr.Message), err)
		}
	}
	return models.NewPeelError(models.ErrCodeLLMFailure, "LLM request failed", err)
}
