package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/repograph/internal/analysis"
	"github.com/rohankatakam/repograph/internal/config"
	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeGenerator) Model() string { return "fake" }

type fakeRepos struct {
	snap      *models.Snapshot
	err       error
	gotOwner  string
	gotRepo   string
	gotBranch string
}

func (f *fakeRepos) FetchSnapshot(ctx context.Context, owner, repo, branch string) (*models.Snapshot, error) {
	f.gotOwner, f.gotRepo, f.gotBranch = owner, repo, branch
	return f.snap, f.err
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Addr:           "127.0.0.1:0",
		MaxBodyBytes:   1024,
		AllowedOrigins: []string{"*"},
	}
}

func newTestServer(gen *fakeGenerator, repos RepoFetcher) *Server {
	return New(testConfig(), "main", analysis.NewService(gen), repos, nil)
}

func postJSON(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, AnalysisResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze-code", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeGenerator{}, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestAnalyzeCode_Success(t *testing.T) {
	gen := &fakeGenerator{response: "This file says hello."}
	s := newTestServer(gen, nil)

	w, resp := postJSON(t, s.Handler(), `{"code":"hello"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "This file says hello.", resp.Description)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 1, gen.calls)
}

func TestAnalyzeCode_MissingCode(t *testing.T) {
	for _, body := range []string{`{}`, `{"code":""}`, ``, `{"code":"   "}`} {
		t.Run(body, func(t *testing.T) {
			gen := &fakeGenerator{response: "unused"}
			s := newTestServer(gen, nil)

			w, resp := postJSON(t, s.Handler(), body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Code content is required.", resp.Error)
			assert.Zero(t, gen.calls, "model must not be called")
		})
	}
}

func TestAnalyzeCode_MalformedBody(t *testing.T) {
	s := newTestServer(&fakeGenerator{}, nil)

	w, resp := postJSON(t, s.Handler(), `{"code": 42}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgInvalidBody, resp.Error)
}

func TestAnalyzeCode_BodyLimit(t *testing.T) {
	gen := &fakeGenerator{response: "unused"}
	s := newTestServer(gen, nil)

	body := fmt.Sprintf(`{"code":%q}`, strings.Repeat("x", 4096))
	w, resp := postJSON(t, s.Handler(), body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "input too large", resp.Error)
	assert.Zero(t, gen.calls)
}

func TestAnalyzeCode_ContextWindowIsClientError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("This model's maximum context length is 8192 tokens")}
	s := newTestServer(gen, nil)

	w, resp := postJSON(t, s.Handler(), `{"code":"package main"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "input too large", resp.Error)
}

func TestAnalyzeCode_ModelFailure(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("Error 503: overloaded")}
	s := newTestServer(gen, nil)

	w, resp := postJSON(t, s.Handler(), `{"code":"package main"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to get description from AI.", resp.Error)
	assert.Empty(t, resp.Description)
	assert.Equal(t, 1, gen.calls, "no retry")
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(&fakeGenerator{response: "ok"}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze-code", strings.NewReader(`{"code":"x"}`))
	req.Header.Set(HeaderRequestID, "req-123")
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(&fakeGenerator{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/analyze-code", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"http://localhost:5173"}
	s := New(cfg, "main", analysis.NewService(&fakeGenerator{}), nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	s.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGraph_Success(t *testing.T) {
	repos := &fakeRepos{snap: &models.Snapshot{
		Repository: models.Repository{Owner: "octo", Name: "demo", FullName: "octo/demo"},
		Branch:     "master",
		Truncated:  true,
		Entries: []models.RepoEntry{
			{Path: "src", Kind: models.KindDirectory},
			{Path: "src/app.txt", Kind: models.KindFile},
		},
	}}
	s := newTestServer(&fakeGenerator{}, repos)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/graph?url=https://github.com/octo/demo.git", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "octo", repos.gotOwner)
	assert.Equal(t, "demo", repos.gotRepo)
	assert.Equal(t, "main", repos.gotBranch)

	var resp GraphResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "master", resp.Branch)
	assert.True(t, resp.Truncated)
	assert.Len(t, resp.Nodes, 2)
	require.Len(t, resp.Edges, 1)
	assert.Equal(t, "e-src-src/app.txt", resp.Edges[0].ID)
}

func TestGraph_BranchParam(t *testing.T) {
	repos := &fakeRepos{snap: &models.Snapshot{}}
	s := newTestServer(&fakeGenerator{}, repos)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/graph?url=octo/demo&branch=dev", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev", repos.gotBranch)
}

func TestGraph_BadURL(t *testing.T) {
	s := newTestServer(&fakeGenerator{}, &fakeRepos{})

	for _, target := range []string{"/api/graph", "/api/graph?url=", "/api/graph?url=https://github.com/onlyowner"} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestGraph_ListingFailure(t *testing.T) {
	repos := &fakeRepos{err: errors.ListingError(fmt.Errorf("404 Not Found"), "fetch tree")}
	s := newTestServer(&fakeGenerator{}, repos)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/graph?url=octo/demo", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Could not load the repository. Check the URL and try again.", resp.Error)
}

func TestGraph_NotRegisteredWithoutFetcher(t *testing.T) {
	s := newTestServer(&fakeGenerator{}, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/graph?url=octo/demo", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(&fakeGenerator{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
