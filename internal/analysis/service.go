// Package analysis turns raw file text into a single bounded request to a
// generative model and classifies its failures.
package analysis

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/logging"
)

// MsgCodeRequired is returned for an empty payload
const MsgCodeRequired = "Code content is required."

// MsgInputTooLarge is returned when the payload exceeds model capacity
const MsgInputTooLarge = "input too large"

const promptInstruction = "Explain the purpose and implementation of the following code in a clear and concise paragraph. " +
	"Focus on what the code does and how it fits into a larger project."

// Generator is the model capability the service needs
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Service validates code, builds the prompt and invokes the model once.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	gen          Generator
	logger       *logrus.Logger
	maxCodeBytes int
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMaxCodeBytes rejects payloads above n bytes as oversized before any
// model call. Zero disables the check.
func WithMaxCodeBytes(n int) Option {
	return func(s *Service) { s.maxCodeBytes = n }
}

// NewService creates an analysis service backed by gen
func NewService(gen Generator, opts ...Option) *Service {
	s := &Service{
		gen:    gen,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze returns the model's explanation of code verbatim. Empty input is an
// input error and never reaches the model. Upstream failures are classified by
// ClassifyModelError and are not retried.
func (s *Service) Analyze(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", errors.InputError(MsgCodeRequired)
	}
	if s.maxCodeBytes > 0 && len(code) > s.maxCodeBytes {
		return "", errors.OversizedError(nil, MsgInputTooLarge).
			WithContext("code_bytes", len(code)).
			WithContext("limit", s.maxCodeBytes)
	}

	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{
		"model":      s.gen.Model(),
		"code_bytes": len(code),
	})

	description, err := s.gen.Generate(ctx, BuildPrompt(code))
	if err != nil {
		classified := ClassifyModelError(err)
		log.WithFields(logrus.Fields{
			"kind":        errors.KindOf(classified).String(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).WithError(err).Error("model call failed")
		return "", classified
	}

	log.WithFields(logrus.Fields{
		"description_length": len(description),
		"duration_ms":        time.Since(start).Milliseconds(),
	}).Info("code analyzed")

	return description, nil
}

// BuildPrompt embeds code verbatim in a delimited block after the fixed
// instruction
func BuildPrompt(code string) string {
	return fmt.Sprintf("%s\n\n```\n%s\n```", promptInstruction, code)
}

// contextWindowMarkers are provider phrasings for an input that exceeds the
// model's context capacity (Gemini and OpenAI).
var contextWindowMarkers = []string{
	"context window",
	"context length",
	"context_length_exceeded",
	"maximum context",
	"exceeds the maximum number of tokens",
	"input token count",
	"too many tokens",
	"request payload size exceeds",
	"token limit",
}

// ClassifyModelError maps an upstream model failure onto the error taxonomy:
// context-capacity failures are oversized input, deadline and cancellation
// keep their meaning, everything else is a generic model error.
func ClassifyModelError(err error) error {
	if err == nil {
		return nil
	}

	var classified *errors.Error
	if stderrors.As(err, &classified) {
		return err
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.TimeoutError(err, "model call timed out")
	case stderrors.Is(err, context.Canceled):
		return errors.CanceledError(err, "model call canceled")
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range contextWindowMarkers {
		if strings.Contains(msg, marker) {
			return errors.OversizedError(err, MsgInputTooLarge)
		}
	}

	return errors.ModelError(err, "model call failed")
}
