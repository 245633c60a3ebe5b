package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/logging"
)

// DefaultOpenAIModel is used when no model is configured
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient generates completions through the OpenAI chat API
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	baseURL   string
	logger    *logrus.Entry
}

// OpenAIOption configures an OpenAIClient
type OpenAIOption func(*OpenAIClient)

// WithOpenAIMaxTokens caps the response length
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(c *OpenAIClient) { c.maxTokens = n }
}

// WithOpenAILogger sets the logger
func WithOpenAILogger(logger *logrus.Logger) OpenAIOption {
	return func(c *OpenAIClient) { c.logger = logger.WithField("component", "openai") }
}

// WithOpenAIBaseURL overrides the API endpoint (Azure-compatible gateways, tests)
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = url }
}

// NewOpenAIClient creates an OpenAI provider
func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	c := &OpenAIClient{
		model:  model,
		logger: logging.Discard().WithField("component", "openai"),
	}
	for _, opt := range opts {
		opt(c)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		clientConfig.BaseURL = c.baseURL
	}
	c.client = openai.NewClientWithConfig(clientConfig)
	c.logger = c.logger.WithField("model", model)

	return c, nil
}

// Model returns the model identifier
func (c *OpenAIClient) Model() string {
	return c.model
}

// Generate sends the prompt as a single user message
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	response := resp.Choices[0].Message.Content
	c.logger.WithFields(logrus.Fields{
		"prompt_length":   len(prompt),
		"response_length": len(response),
		"tokens_used":     resp.Usage.TotalTokens,
	}).Debug("openai completion")

	return response, nil
}
