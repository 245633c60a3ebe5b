package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/rohankatakam/repograph/internal/logging"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient wraps Google's Generative AI SDK
type GeminiClient struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
	logger          *logrus.Entry
	baseURL         string
}

// GeminiOption configures a GeminiClient
type GeminiOption func(*GeminiClient)

// WithGeminiMaxOutputTokens caps the response length
func WithGeminiMaxOutputTokens(n int32) GeminiOption {
	return func(c *GeminiClient) { c.maxOutputTokens = n }
}

// WithGeminiLogger sets the logger
func WithGeminiLogger(logger *logrus.Logger) GeminiOption {
	return func(c *GeminiClient) { c.logger = logger.WithField("component", "gemini") }
}

// WithGeminiBaseURL overrides the API endpoint
func WithGeminiBaseURL(url string) GeminiOption {
	return func(c *GeminiClient) { c.baseURL = url }
}

// NewGeminiClient creates a new Gemini API client
// model: Model name (e.g., "gemini-2.0-flash", "gemini-1.5-pro")
func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	c := &GeminiClient{
		model:  model,
		logger: logging.Discard().WithField("component", "gemini"),
	}
	for _, opt := range opts {
		opt(c)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.client = client
	c.logger = c.logger.WithField("model", model)

	return c, nil
}

// Model returns the model identifier
func (c *GeminiClient) Model() string {
	return c.model
}

// Generate sends a prompt to Gemini and returns the text response
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature: ptrFloat32(0.2),
	}
	if c.maxOutputTokens > 0 {
		genConfig.MaxOutputTokens = c.maxOutputTokens
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content parts (finish reason %s)", candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()

	c.logger.WithFields(logrus.Fields{
		"prompt_length":   len(prompt),
		"response_length": len(text),
	}).Debug("gemini completion")

	return text, nil
}

func ptrFloat32(f float64) *float32 {
	f32 := float32(f)
	return &f32
}
