// Package registry implements the three components that talk to the
// ecosystem registry: the index poller (C1), the metadata fetcher (C3), and
// the archive retriever (C5). All three share one HTTP+cache+retry client,
// the same shape the corpus's per-ecosystem registry clients use.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/depreview/reviewbot/pkg/integrations"
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/version"
)

const baseURL = "https://package.elm-lang.org"

// hostingArchiveHost is the hosting platform's plain download host for
// source archives (§6: "the hosting-platform archive URL is used in the
// primary path") — a direct, unauthenticated zip download, distinct from
// the registry host above and from the authenticated Git Data API
// pkg/hostapi drives.
const hostingArchiveHost = "https://github.com"

// metadataTimeout bounds the manifest/doc-summary calls (§5: "30s
// per-request timeout for metadata calls").
const metadataTimeout = 30 * time.Second

// Client is the registry's HTTP client: poll-since, manifest, docs, and
// archive retrieval, all going through the shared integrations client. Only
// FetchManifest and FetchDocs use its cache-and-retry path.
type Client struct {
	http        *integrations.Client
	baseURL     string
	archiveHost string
}

// NewClient creates a registry Client backed by a file cache with the given
// TTL, matching the corpus's NewCache(ttl) convention. cacheDir overrides
// the default ~/.cache/reviewbot/ location when non-empty.
func NewClient(cacheDir string, cacheTTL time.Duration) (*Client, error) {
	cache, err := integrations.NewCacheIn(cacheDir, cacheTTL)
	if err != nil {
		return nil, err
	}
	return &Client{http: integrations.NewClient(cache, nil), baseURL: baseURL, archiveHost: hostingArchiveHost}, nil
}

// PollSince fetches the "packages added since cursor" list (§4.1). The
// registry returns packages oldest-first; the result is reversed so newer
// packages are processed first, as the spec requires. Malformed version
// strings fail the whole batch; unknown entries are never silently dropped.
func (c *Client) PollSince(ctx context.Context, cursor int) ([]Entry, error) {
	url := fmt.Sprintf("%s/all-packages/since/%d", c.baseURL, cursor)

	var raw []string
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if err := c.http.Get(ctx, url, &raw); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(raw))
	for i, s := range raw {
		name, v, err := manifest.ParseIndexEntry(s)
		if err != nil {
			return nil, err
		}
		entries[i] = Entry{Name: name, Version: v}
	}

	// Reverse: newer packages first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Entry is one decoded "<owner>/<repo>@<M.m.p>" entry.
type Entry struct {
	Name    manifest.PackageName
	Version version.Version
}

// FetchManifest retrieves elm.json for (name, version) (§4.3), through the
// same cache-or-fetch-with-retry path the corpus's per-ecosystem clients use
// (npm/pypi/crates `FetchPackage`). The cache write does not succeed for a
// manifest: Manifest's dependency maps are keyed by PackageName, which
// encoding/json cannot encode, and Cached discards the write error, so every
// call fetches the manifest again. The caller must treat a
// CodeApplicationManifest error as a terminal FetchMetaFailed, not retry it.
func (c *Client) FetchManifest(ctx context.Context, name manifest.PackageName, v version.Version) (manifest.Manifest, error) {
	key := fmt.Sprintf("manifest:%s@%s", name, v)

	var m manifest.Manifest
	err := c.http.Cached(ctx, key, false, &m, func() error {
		url := fmt.Sprintf("%s/packages/%s/%s/%s/elm.json", c.baseURL, name.Owner, name.Repo, v)

		fetchCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
		defer cancel()

		text, err := c.http.GetText(fetchCtx, url)
		if err != nil {
			return err
		}
		parsed, err := manifest.ParseManifest([]byte(text))
		if err != nil {
			return err
		}
		m = parsed
		return nil
	})
	return m, err
}

// FetchDocs retrieves docs.json for (name, version) (§4.3), cached the same
// way FetchManifest is: a published version's docs are immutable.
func (c *Client) FetchDocs(ctx context.Context, name manifest.PackageName, v version.Version) ([]manifest.Doc, error) {
	key := fmt.Sprintf("docs:%s@%s", name, v)

	var docs []manifest.Doc
	err := c.http.Cached(ctx, key, false, &docs, func() error {
		url := fmt.Sprintf("%s/packages/%s/%s/%s/docs.json", c.baseURL, name.Owner, name.Repo, v)

		fetchCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
		defer cancel()

		text, err := c.http.GetText(fetchCtx, url)
		if err != nil {
			return err
		}
		parsed, err := manifest.ParseDocs([]byte(text))
		if err != nil {
			return err
		}
		docs = parsed
		return nil
	})
	return docs, err
}

// FetchArchive retrieves the source archive for (name, version) from the
// hosting platform — not the registry, which has no archive endpoint of its
// own — at the tag v<M.m.p> (§4.5, §6). A 404 surfaces as integrations.ErrNotFound,
// which the engine maps to TagNotFound. There is deliberately no
// per-request timeout here — large archives are allowed to take as long as
// they take (§5). Unlike FetchManifest/FetchDocs, this is never routed
// through Cached(): archives run to hundreds of MB (§8's P-series: "never
// hold more than one archive in memory at a time"), and httputil.Cache
// round-trips every value through json.Marshal, which would hold two copies
// of that archive in memory at once for no benefit — a version is only ever
// analyzed once.
func (c *Client) FetchArchive(ctx context.Context, name manifest.PackageName, v version.Version) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/archive/refs/tags/v%s.zip", c.archiveHost, name.Owner, name.Repo, v)
	text, err := c.http.GetText(ctx, url)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}
