package hostapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/reviewerr"
	"github.com/depreview/reviewbot/pkg/version"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &Client{http: server.Client(), token: "test-token", baseURL: server.URL}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func TestOpenPullRequestHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/x/y", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"default_branch": "main"})
	})
	mux.HandleFunc("/repos/x/y/forks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"owner": map[string]string{"login": "reviewbot"}, "name": "y"})
	})
	mux.HandleFunc("/repos/x/y/git/refs/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/repos/reviewbot/y/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(t, w, map[string]any{"object": map[string]string{"sha": "head-sha"}})
	})
	mux.HandleFunc("/repos/reviewbot/y/git/commits/head-sha", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"sha": "head-sha", "tree": map[string]string{"sha": "tree-sha"}})
	})
	mux.HandleFunc("/repos/reviewbot/y/git/trees", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"sha": "new-tree-sha"})
	})
	mux.HandleFunc("/repos/reviewbot/y/git/commits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"sha": "new-commit-sha"})
	})
	mux.HandleFunc("/repos/x/y/pulls", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"html_url": "https://example.invalid/x/y/pull/1"})
	})

	c := newTestClient(t, mux)
	name, _ := manifest.ParsePackageName("x/y")
	v := version.MustParseVersion("1.0.0")
	found := pkgcache.FoundErrors{
		Errors:          []pkgcache.Diagnostic{{Message: "unused"}},
		OldManifestText: `{"dependencies":{"elm/core":"1.0.0 <= v < 2.0.0"}}`,
		NewManifestText: `{"dependencies":{}}`,
	}

	result, stage, err := c.OpenPullRequest(context.Background(), name, v, found, false)
	if err != nil {
		t.Fatalf("OpenPullRequest() error at stage %q: %v", stage, err)
	}
	if result.URL != "https://example.invalid/x/y/pull/1" {
		t.Errorf("URL = %q", result.URL)
	}
	if !result.GuardMismatch {
		t.Error("GuardMismatch should be true when the tag is absent")
	}
}

func TestOpenPullRequestUpdateRefFailureReportsStage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/x/y", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"default_branch": "main"})
	})
	mux.HandleFunc("/repos/x/y/forks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"owner": map[string]string{"login": "reviewbot"}, "name": "y"})
	})
	mux.HandleFunc("/repos/x/y/git/refs/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"object": map[string]string{"sha": "head-sha"}})
	})
	mux.HandleFunc("/repos/reviewbot/y/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			http.Error(w, "unprocessable", http.StatusUnprocessableEntity)
			return
		}
		writeJSON(t, w, map[string]any{"object": map[string]string{"sha": "head-sha"}})
	})
	mux.HandleFunc("/repos/reviewbot/y/git/commits/head-sha", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"sha": "head-sha", "tree": map[string]string{"sha": "tree-sha"}})
	})
	mux.HandleFunc("/repos/reviewbot/y/git/trees", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"sha": "new-tree-sha"})
	})
	mux.HandleFunc("/repos/reviewbot/y/git/commits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"sha": "new-commit-sha"})
	})

	c := newTestClient(t, mux)
	name, _ := manifest.ParsePackageName("x/y")
	v := version.MustParseVersion("1.0.0")
	found := pkgcache.FoundErrors{OldManifestText: `{"dependencies":{}}`, NewManifestText: `{"dependencies":{}}`}

	_, stage, err := c.OpenPullRequest(context.Background(), name, v, found, false)
	if err == nil {
		t.Fatal("expected an error from the 422 update-ref response")
	}
	if stage != reviewerr.StageUpdateBranch {
		t.Errorf("stage = %q, want %q", stage, reviewerr.StageUpdateBranch)
	}
}

func TestPRBodySingularAndTestOnly(t *testing.T) {
	found := pkgcache.FoundErrors{
		Errors:          []pkgcache.Diagnostic{{Message: "x"}},
		OldManifestText: `{"dependencies":{},"test-dependencies":{"elm/test":"1.0.0 <= v < 2.0.0"}}`,
		NewManifestText: `{"dependencies":{},"test-dependencies":{}}`,
	}
	body := prBody(found)
	if !contains(body, "1 unused dependency") {
		t.Errorf("body should use singular form: %q", body)
	}
	if !contains(body, "no new release") {
		t.Errorf("test-only removal should mention no release is required: %q", body)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
