// Package proxyclient calls the analysis proxy over HTTP and maps its error
// envelope back into classified errors.
package proxyclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/logging"
)

// maxResponseBytes bounds how much of a proxy response is read
const maxResponseBytes = 4 * 1024 * 1024

type analysisRequest struct {
	Code string `json:"code"`
}

type analysisResponse struct {
	Description *string `json:"description"`
	Error       string  `json:"error"`
}

// Client talks to POST /analyze-code
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the proxy at baseURL (e.g., http://localhost:3001)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze sends code to the proxy and returns its description. Failures come
// back classified: 400 "too large" as oversized, other 400s as input errors,
// everything else as model errors.
func (c *Client) Analyze(ctx context.Context, code string) (string, error) {
	body, err := json.Marshal(analysisRequest{Code: code})
	if err != nil {
		return "", errors.InternalError(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-code", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.KindConfig, errors.SeverityHigh, "build proxy request")
	}
	req.Header.Set("Content-Type", "application/json")
	if id, ok := RequestIDFrom(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", transportError(ctx, err)
	}

	var out analysisResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   truncate(string(raw), 200),
		}).Warn("proxy returned a non-JSON response")
		return "", errors.ModelError(err, fmt.Sprintf("proxy returned malformed response (status %d)", resp.StatusCode))
	}

	if resp.StatusCode == http.StatusOK {
		if out.Description == nil {
			return "", errors.ModelError(stderrors.New("missing description"), "proxy returned malformed response")
		}
		return *out.Description, nil
	}

	return "", classifyStatus(resp.StatusCode, out.Error)
}

func classifyStatus(status int, msg string) error {
	cause := fmt.Errorf("proxy status %d: %s", status, msg)
	if status == http.StatusBadRequest {
		if strings.Contains(strings.ToLower(msg), "too large") {
			return errors.OversizedError(cause, msg)
		}
		if msg == "" {
			msg = "invalid analysis request"
		}
		return errors.InputError(msg)
	}
	return errors.ModelError(cause, "analysis proxy failed")
}

func transportError(ctx context.Context, err error) error {
	switch {
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.TimeoutError(err, "analysis request timed out")
	case stderrors.Is(ctx.Err(), context.Canceled):
		return errors.CanceledError(err, "analysis request canceled")
	}
	return errors.ModelError(err, "analysis proxy unreachable")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type requestIDKey struct{}

// WithRequestID attaches a request id that is forwarded as X-Request-ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id attached to ctx
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
