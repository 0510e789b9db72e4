package engine

import (
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/version"
)

// Command is the closed tagged union of operator verbs C10 accepts (§4.10,
// §6). The console authenticates the session and only forwards these once a
// login has succeeded.
type Command interface {
	command()
}

// ResetBackend: wipe the cache entirely and re-poll from the configured
// baseline cursor.
type ResetBackend struct{}

func (ResetBackend) command() {}

// ResetRules: downgrade every FetchedAndChecked record back to Fetched, and
// every FetchMetaFailed record back to Pending, so the next scheduler pass
// re-runs analysis and retries failed metadata fetches under (presumably)
// updated rules. PR states are left untouched.
type ResetRules struct{}

func (ResetRules) command() {}

// PullRequestRequest: open a PR for name's FoundErrors-bearing record.
type PullRequestRequest struct {
	Name manifest.PackageName
}

func (PullRequestRequest) command() {}

// RerunPackageRequest: re-run analysis for one (name, version) pair,
// downgrading it back to Fetched first.
type RerunPackageRequest struct {
	Name    manifest.PackageName
	Version version.Version
}

func (RerunPackageRequest) command() {}
