// Package hostapi implements the pull-request orchestrator (C8): the
// write-side client against the hosting platform's Git and pull-request
// API, driving the fork -> branch -> commit -> PR sequence of spec.md §4.8.
package hostapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/depreview/reviewbot/pkg/assembler"
	"github.com/depreview/reviewbot/pkg/engine"
	"github.com/depreview/reviewbot/pkg/integrations"
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/reviewerr"
	"github.com/depreview/reviewbot/pkg/version"
)

const defaultBaseURL = "https://api.github.com"

// commitMessage is the fixed commit message §4.8 step 6 names.
const commitMessage = "Remove unused dependencies"

// Client drives the hosting-platform write path: repo lookup, fork, tree
// read/write, commit, ref update, and pull-request creation. It satisfies
// engine.Orchestrator.
type Client struct {
	http    *http.Client
	token   string
	baseURL string
}

// NewClient builds a Client authenticated with token (never logged, per
// §6: "Authorization: token <opaque>").
func NewClient(token string) *Client {
	return &Client{http: integrations.NewHTTPClient(), token: token, baseURL: defaultBaseURL}
}

// OpenPullRequest drives the 8-step sequence of §4.8 end to end, returning
// the stage label of whatever step failed.
func (c *Client) OpenPullRequest(ctx context.Context, name manifest.PackageName, v version.Version, found pkgcache.FoundErrors, enforceGuard bool) (engine.PRResult, reviewerr.StageLabel, error) {
	info, err := c.repoInfo(ctx, name)
	if err != nil {
		return engine.PRResult{}, reviewerr.StageRepoLookup, err
	}

	fork, err := c.createFork(ctx, name)
	if err != nil {
		return engine.PRResult{}, reviewerr.StageFork, err
	}

	headSHA, err := c.branchHead(ctx, fork, info.DefaultBranch)
	if err != nil {
		return engine.PRResult{}, reviewerr.StageReadHead, err
	}

	mismatch, guardErr := c.guardMismatch(ctx, name, v, headSHA)
	if enforceGuard && (guardErr != nil || mismatch) {
		return engine.PRResult{}, reviewerr.StageReadHead, errors.New("PR guard: fork head does not match the published version's tag")
	}

	treeSHA, err := c.commitTree(ctx, fork, headSHA)
	if err != nil {
		return engine.PRResult{}, reviewerr.StageReadTree, err
	}

	newTreeSHA, err := c.createTree(ctx, fork, treeSHA, found.NewManifestText)
	if err != nil {
		return engine.PRResult{}, reviewerr.StageCreateTree, err
	}

	commitSHA, err := c.createCommit(ctx, fork, headSHA, newTreeSHA)
	if err != nil {
		return engine.PRResult{}, reviewerr.StageCreateCommit, err
	}

	if err := c.updateRef(ctx, fork, info.DefaultBranch, commitSHA); err != nil {
		return engine.PRResult{}, reviewerr.StageUpdateBranch, err
	}

	url, err := c.openPR(ctx, name, fork, info.DefaultBranch, found)
	if err != nil {
		return engine.PRResult{}, reviewerr.StageOpenPR, err
	}

	return engine.PRResult{URL: url, GuardMismatch: mismatch}, "", nil
}

type repoInfoResp struct {
	DefaultBranch string `json:"default_branch"`
}

func (c *Client) repoInfo(ctx context.Context, name manifest.PackageName) (repoInfoResp, error) {
	var out repoInfoResp
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", name.Owner, name.Repo), nil, &out)
	return out, err
}

type forkResp struct {
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
	Name string `json:"name"`
}

// createFork forks the upstream repo under the bot's identity (§4.8 step
// 2), returning the fork's own (owner, repo) identity.
func (c *Client) createFork(ctx context.Context, name manifest.PackageName) (manifest.PackageName, error) {
	var out forkResp
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/forks", name.Owner, name.Repo), nil, &out)
	if err != nil {
		return manifest.PackageName{}, err
	}
	return manifest.PackageName{Owner: out.Owner.Login, Repo: out.Name}, nil
}

type refResp struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

func (c *Client) branchHead(ctx context.Context, repo manifest.PackageName, branch string) (string, error) {
	var out refResp
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", repo.Owner, repo.Repo, branch), nil, &out)
	return out.Object.SHA, err
}

// guardMismatch checks whether the fork's branch head matches the tag
// named after the published version (§4.8 "Guard"). A missing tag counts
// as a mismatch; it is never itself a fatal error unless enforceGuard (the
// caller's choice, not this method's) says so.
func (c *Client) guardMismatch(ctx context.Context, name manifest.PackageName, v version.Version, headSHA string) (bool, error) {
	var out refResp
	tag := "v" + v.String()
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/git/refs/tags/%s", name.Owner, name.Repo, tag), nil, &out)
	if errors.Is(err, integrations.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return out.Object.SHA != headSHA, nil
}

type commitResp struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

func (c *Client) commitTree(ctx context.Context, repo manifest.PackageName, commitSHA string) (string, error) {
	var out commitResp
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/git/commits/%s", repo.Owner, repo.Repo, commitSHA), nil, &out)
	return out.Tree.SHA, err
}

type treeEntry struct {
	Path    string `json:"path"`
	Mode    string `json:"mode"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type createTreeReq struct {
	BaseTree string      `json:"base_tree,omitempty"`
	Tree     []treeEntry `json:"tree"`
}

type createTreeResp struct {
	SHA string `json:"sha"`
}

// createTree stages the single manifest-text change on top of the fork's
// existing tree (§4.8 step 5).
func (c *Client) createTree(ctx context.Context, repo manifest.PackageName, baseTreeSHA, newManifestText string) (string, error) {
	req := createTreeReq{
		BaseTree: baseTreeSHA,
		Tree: []treeEntry{{
			Path:    assembler.CanonicalManifestPath,
			Mode:    "100644",
			Type:    "blob",
			Content: newManifestText,
		}},
	}
	var out createTreeResp
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/git/trees", repo.Owner, repo.Repo), req, &out)
	return out.SHA, err
}

type createCommitReq struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type createCommitResp struct {
	SHA string `json:"sha"`
}

func (c *Client) createCommit(ctx context.Context, repo manifest.PackageName, parentSHA, treeSHA string) (string, error) {
	req := createCommitReq{Message: commitMessage, Tree: treeSHA, Parents: []string{parentSHA}}
	var out createCommitResp
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/git/commits", repo.Owner, repo.Repo), req, &out)
	return out.SHA, err
}

type updateRefReq struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

func (c *Client) updateRef(ctx context.Context, repo manifest.PackageName, branch, commitSHA string) error {
	req := updateRefReq{SHA: commitSHA, Force: false}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", repo.Owner, repo.Repo, branch), req, nil)
}

type createPRReq struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body"`
}

type createPRResp struct {
	HTMLURL string `json:"html_url"`
}

func (c *Client) openPR(ctx context.Context, upstream, fork manifest.PackageName, branch string, found pkgcache.FoundErrors) (string, error) {
	req := createPRReq{
		Title: commitMessage,
		Head:  fmt.Sprintf("%s:%s", fork.Owner, branch),
		Base:  branch,
		Body:  prBody(found),
	}
	var out createPRResp
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pulls", upstream.Owner, upstream.Repo), req, &out)
	return out.HTMLURL, err
}

// prBody renders the fixed PR description template, parameterized by the
// error count and whether every removed dependency is test-only (§4.8
// step 8).
func prBody(found pkgcache.FoundErrors) string {
	n := len(found.Errors)
	dep, verb := "dependency", "is"
	if n != 1 {
		dep, verb = "dependencies", "are"
	}

	release := "A new release of this package may be required for downstream consumers to pick up this fix."
	if testOnlyRemoval(found) {
		release = "Because every removed dependency is test-only, no new release of this package is required for the fix to take effect."
	}

	return fmt.Sprintf(
		"This pull request removes %d unused %s that %s no longer referenced by the package's source.\n\n%s",
		n, dep, verb, release,
	)
}

// testOnlyRemoval reports whether every dependency removed between the old
// and new manifest texts came from test-dependencies rather than
// dependencies.
func testOnlyRemoval(found pkgcache.FoundErrors) bool {
	var oldM, newM struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal([]byte(found.OldManifestText), &oldM); err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(found.NewManifestText), &newM); err != nil {
		return false
	}
	for name := range oldM.Dependencies {
		if _, stillThere := newM.Dependencies[name]; !stillThere {
			return false
		}
	}
	return true
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", integrations.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return integrations.ErrNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", integrations.ErrNetwork, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
