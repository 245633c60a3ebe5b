package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/models"
)

func newTestClient(t *testing.T, mux *http.ServeMux, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithBaseURL(srv.URL)}, opts...)
	c, err := NewClient("", 1000, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func repoHandler(defaultBranch string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"full_name":      "octo/demo",
			"html_url":       "https://github.com/octo/demo",
			"default_branch": defaultBranch,
		})
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func TestFetchTree_MapsEntryKinds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sha":       "abc",
			"truncated": false,
			"tree": []map[string]interface{}{
				{"path": "src", "type": "tree"},
				{"path": "src/app.txt", "type": "blob", "size": 5},
				{"path": "vendor/lib", "type": "commit"},
			},
		})
	})
	c := newTestClient(t, mux)

	entries, truncated, err := c.FetchTree(context.Background(), "octo", "demo", "main")
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, entries, 3)

	assert.Equal(t, models.RepoEntry{Path: "src", Kind: models.KindDirectory}, entries[0])
	assert.Equal(t, "src/app.txt", entries[1].Path)
	assert.Equal(t, models.KindFile, entries[1].Kind)
	require.NotNil(t, entries[1].Size)
	assert.Equal(t, int64(5), *entries[1].Size)
	assert.Equal(t, models.KindDirectory, entries[2].Kind, "submodules are treated as directories")
}

func TestFetchTree_Truncated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"truncated": true,
			"tree":      []map[string]interface{}{{"path": "a", "type": "blob"}},
		})
	})
	c := newTestClient(t, mux)

	entries, truncated, err := c.FetchTree(context.Background(), "octo", "demo", "main")
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, entries, 1)
}

func TestFetchTree_NotFoundIsListingError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/git/trees/main", notFound)
	c := newTestClient(t, mux)

	_, _, err := c.FetchTree(context.Background(), "octo", "demo", "main")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindListing))
	assert.True(t, isNotFound(err))
}

func TestFetchSnapshot_RequestedBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo", repoHandler("main"))
	mux.HandleFunc("/repos/octo/demo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"tree": []map[string]interface{}{{"path": "README.md", "type": "blob"}},
		})
	})
	c := newTestClient(t, mux)

	snap, err := c.FetchSnapshot(context.Background(), "octo", "demo", "main")
	require.NoError(t, err)
	assert.Equal(t, "main", snap.Branch)
	assert.Equal(t, "octo/demo", snap.Repository.FullName)
	assert.Len(t, snap.Entries, 1)
}

func TestFetchSnapshot_FallsBackToDefaultBranch(t *testing.T) {
	var masterCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo", repoHandler("master"))
	mux.HandleFunc("/repos/octo/demo/git/trees/main", notFound)
	mux.HandleFunc("/repos/octo/demo/git/trees/master", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&masterCalls, 1)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"tree": []map[string]interface{}{{"path": "main.go", "type": "blob"}},
		})
	})
	c := newTestClient(t, mux)

	snap, err := c.FetchSnapshot(context.Background(), "octo", "demo", "main")
	require.NoError(t, err)
	assert.Equal(t, "master", snap.Branch)
	assert.Equal(t, int32(1), atomic.LoadInt32(&masterCalls))
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "main.go", snap.Entries[0].Path)
}

func TestFetchSnapshot_EmptyBranchUsesDefault(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo", repoHandler("trunk"))
	mux.HandleFunc("/repos/octo/demo/git/trees/trunk", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"tree": []map[string]interface{}{}})
	})
	c := newTestClient(t, mux)

	snap, err := c.FetchSnapshot(context.Background(), "octo", "demo", "")
	require.NoError(t, err)
	assert.Equal(t, "trunk", snap.Branch)
	assert.Empty(t, snap.Entries)
}

func TestFetchSnapshot_MissingBranchWithoutFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo", repoHandler("main"))
	mux.HandleFunc("/repos/octo/demo/git/trees/main", notFound)
	c := newTestClient(t, mux)

	_, err := c.FetchSnapshot(context.Background(), "octo", "demo", "main")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindListing))
}

func TestFetchSnapshot_MissingRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo", notFound)
	mux.HandleFunc("/repos/octo/demo/git/trees/main", notFound)
	c := newTestClient(t, mux)

	_, err := c.FetchSnapshot(context.Background(), "octo", "demo", "main")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindListing))
}

func TestFetchContent_Base64(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/contents/src/app.txt", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"type":     "file",
			"path":     "src/app.txt",
			"size":     5,
			"encoding": "base64",
			"content":  "aGVsbG8=",
		})
	})
	c := newTestClient(t, mux)

	content, err := c.FetchContent(context.Background(), "octo", "demo", "src/app.txt", "main")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	fetcher := ContentFetcher{Client: c, Owner: "octo", Repo: "demo", Ref: "main"}
	content, err = fetcher.FetchContent(context.Background(), "src/app.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
}

func TestFetchContent_DownloadsLargeFiles(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/repos/octo/demo/contents/big.txt", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"type":         "file",
			"path":         "big.txt",
			"size":         11,
			"encoding":     "none",
			"content":      "",
			"download_url": srvURL + "/raw/big.txt",
		})
	})
	mux.HandleFunc("/raw/big.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	c, err := NewClient("", 1000, WithBaseURL(srv.URL))
	require.NoError(t, err)

	content, err := c.FetchContent(context.Background(), "octo", "demo", "big.txt", "main")
	require.NoError(t, err)
	assert.Equal(t, "hello world", content)
}

func TestFetchContent_Oversized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/contents/huge.txt", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"type":     "file",
			"path":     "huge.txt",
			"size":     100,
			"encoding": "base64",
			"content":  "",
		})
	})
	c := newTestClient(t, mux, WithMaxContentBytes(10))

	_, err := c.FetchContent(context.Background(), "octo", "demo", "huge.txt", "main")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindOversized))
}

func TestFetchContent_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/contents/gone.txt", notFound)
	c := newTestClient(t, mux)

	_, err := c.FetchContent(context.Background(), "octo", "demo", "gone.txt", "main")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindContentFetch))
}
