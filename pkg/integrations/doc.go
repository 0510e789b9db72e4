// Package integrations provides the shared HTTP plumbing used by the
// components that talk to external services over the network: the
// registry client ([registry.Client]) is built on [Client], and the
// hosting-platform write-ops client ([hostapi.Client]) uses
// [NewHTTPClient] and the error values [ErrNotFound] and [ErrNetwork].
//
// # Client Pattern
//
// The registry client builds one [Client] around a file-backed
// [httputil.Cache] and reuses it for every request:
//
//	cache, err := integrations.NewCache(24 * time.Hour)
//	client := integrations.NewClient(cache, nil)
//	var v SomeResponse
//	err = client.Get(ctx, url, &v)
//
// [Client] handles request headers, status-code classification
// (404 -> [ErrNotFound], 5xx -> retryable [httputil.RetryableError]), and
// JSON decoding. Retries themselves are driven by [httputil.RetryWithBackoff]
// through [Client.Cached].
//
// [registry.Client]: github.com/depreview/reviewbot/pkg/registry
// [hostapi.Client]: github.com/depreview/reviewbot/pkg/hostapi
package integrations
