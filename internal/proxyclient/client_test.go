package proxyclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/repograph/internal/errors"
)

func proxy(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyze_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze-code", r.URL.Path)
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req["code"])

		io.WriteString(w, `{"description":"This file says hello."}`)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	ctx := WithRequestID(context.Background(), "req-1")

	out, err := c.Analyze(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "This file says hello.", out)
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errors.Kind
	}{
		{"missing code", http.StatusBadRequest, `{"error":"Code content is required."}`, errors.KindInput},
		{"too large", http.StatusBadRequest, `{"error":"input too large"}`, errors.KindOversized},
		{"model", http.StatusInternalServerError, `{"error":"Failed to get description from AI."}`, errors.KindModel},
		{"gateway", http.StatusBadGateway, `{"error":"upstream"}`, errors.KindModel},
		{"not json", http.StatusInternalServerError, `<html>oops</html>`, errors.KindModel},
		{"missing description", http.StatusOK, `{}`, errors.KindModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(proxy(t, tt.status, tt.body).URL)
			_, err := c.Analyze(context.Background(), "x")
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.KindOf(err))
		})
	}
}

func TestAnalyze_InputMessagePreserved(t *testing.T) {
	c := New(proxy(t, http.StatusBadRequest, `{"error":"Code content is required."}`).URL)

	_, err := c.Analyze(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, "Code content is required.", errors.UserMessage(err))
}

func TestAnalyze_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).Analyze(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindTimeout))
}

func TestAnalyze_Canceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := New(srv.URL).Analyze(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindCanceled))
}

func TestAnalyze_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Analyze(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindModel))
}
