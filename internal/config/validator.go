package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/repograph/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextServe - the proxy needs a model provider and key
	ValidationContextServe ValidationContext = "serve"
	// ValidationContextExplore - graph/explain commands need a proxy URL
	ValidationContextExplore ValidationContext = "explore"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextServe:
		c.validateServer(result)
		c.validateLLM(result)
	case ValidationContextExplore:
		c.validateSelection(result)
	}

	if c.GitHub.Token == "" {
		result.AddWarning("GITHUB_TOKEN not set: unauthenticated GitHub requests are limited to 60/hour")
	}

	return result
}

// AsError converts a failed validation into a classified config error
func (vr *ValidationResult) AsError() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(strings.TrimSpace(vr.Error()))
}

func (c *Config) validateServer(result *ValidationResult) {
	if c.Server.Addr == "" {
		result.AddError("server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		result.AddError("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
}

func (c *Config) validateLLM(result *ValidationResult) {
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiKey == "" {
			result.AddError("GEMINI_API_KEY is required for the gemini provider")
		}
		if c.LLM.GeminiModel == "" {
			result.AddError("llm.gemini_model is required")
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			result.AddError("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		result.AddError("unknown llm.provider %q (expected gemini or openai)", c.LLM.Provider)
	}
	if c.LLM.RequestsPerSecond < 0 {
		result.AddError("llm.requests_per_second must not be negative")
	}
}

func (c *Config) validateSelection(result *ValidationResult) {
	if c.Selection.ProxyURL == "" {
		result.AddError("selection.proxy_url is required")
	} else if u, err := url.Parse(c.Selection.ProxyURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("selection.proxy_url %q is not an absolute URL", c.Selection.ProxyURL)
	}
	if c.Selection.AnalysisTimeout <= 0 {
		result.AddError("selection.analysis_timeout must be positive")
	}
	if c.Selection.CacheSize <= 0 {
		result.AddWarning("selection.cache_size %d is not positive; using 512", c.Selection.CacheSize)
	}
}
