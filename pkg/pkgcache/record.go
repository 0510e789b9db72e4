// Package pkgcache holds the in-memory package-version lifecycle state: the
// PackageRecord tagged union and the insertion-ordered cache that maps
// PackageName to its observed versions.
package pkgcache

import (
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/version"
)

// RecordKind identifies which PackageRecord variant a value holds, used by
// the broadcaster (C9) to project a display status without exposing the
// full payload.
type RecordKind string

const (
	KindPending           RecordKind = "Pending"
	KindFetched           RecordKind = "Fetched"
	KindFetchedAndChecked RecordKind = "FetchedAndChecked"
	KindPRPending         RecordKind = "PRPending"
	KindPRSent            RecordKind = "PRSent"
	KindPRFailed          RecordKind = "PRFailed"
	KindFetchMetaFailed   RecordKind = "FetchMetaFailed"
)

// PackageRecord is the closed tagged union of §3's seven lifecycle states.
// Variants are distinguished by Kind and downcast with a type switch; the
// unexported marker method keeps the union closed to this package.
type PackageRecord interface {
	Kind() RecordKind
	UpdateIndex() int
	packageRecord()
}

// base carries the fields every variant needs: the update stamp invariant
// (P2/P3) applies uniformly regardless of state.
type base struct {
	updateIndex int
}

func (b base) UpdateIndex() int { return b.updateIndex }
func (base) packageRecord()     {}

// Pending: known to exist; nothing fetched yet.
type Pending struct {
	base
	Version        version.Version
	InsertionIndex int
}

func (Pending) Kind() RecordKind { return KindPending }

// NewPending constructs a Pending record stamped with updateIndex.
func NewPending(v version.Version, insertionIndex, updateIndex int) Pending {
	return Pending{base: base{updateIndex}, Version: v, InsertionIndex: insertionIndex}
}

// Fetched: metadata in hand; not yet analyzed.
type Fetched struct {
	base
	InsertionIndex int
	Manifest       manifest.Manifest
	Docs           []manifest.Doc
}

func (Fetched) Kind() RecordKind { return KindFetched }

func NewFetched(insertionIndex int, m manifest.Manifest, docs []manifest.Doc, updateIndex int) Fetched {
	return Fetched{base: base{updateIndex}, InsertionIndex: insertionIndex, Manifest: m, Docs: docs}
}

// FetchedAndChecked: analyzed; outcome recorded.
type FetchedAndChecked struct {
	base
	InsertionIndex int
	Manifest       manifest.Manifest
	Docs           []manifest.Doc
	Outcome        ReviewOutcome
}

func (FetchedAndChecked) Kind() RecordKind { return KindFetchedAndChecked }

func NewFetchedAndChecked(f Fetched, outcome ReviewOutcome, updateIndex int) FetchedAndChecked {
	return FetchedAndChecked{
		base:           base{updateIndex},
		InsertionIndex: f.InsertionIndex,
		Manifest:       f.Manifest,
		Docs:           f.Docs,
		Outcome:        outcome,
	}
}

// PRPending: operator requested a PR; async issuance in flight.
type PRPending struct {
	base
	InsertionIndex int
	Manifest       manifest.Manifest
	Docs           []manifest.Doc
	FoundErrors    FoundErrors
}

func (PRPending) Kind() RecordKind { return KindPRPending }

func NewPRPending(c FetchedAndChecked, found FoundErrors, updateIndex int) PRPending {
	return PRPending{
		base:           base{updateIndex},
		InsertionIndex: c.InsertionIndex,
		Manifest:       c.Manifest,
		Docs:           c.Docs,
		FoundErrors:    found,
	}
}

// PRSent: pull request successfully opened.
type PRSent struct {
	base
	InsertionIndex int
	Manifest       manifest.Manifest
	Docs           []manifest.Doc
	FoundErrors    FoundErrors
	URL            string
}

func (PRSent) Kind() RecordKind { return KindPRSent }

func NewPRSent(p PRPending, url string, updateIndex int) PRSent {
	return PRSent{
		base:           base{updateIndex},
		InsertionIndex: p.InsertionIndex,
		Manifest:       p.Manifest,
		Docs:           p.Docs,
		FoundErrors:    p.FoundErrors,
		URL:            url,
	}
}

// PRFailed: PR attempt failed at a named stage; retryable by operator.
type PRFailed struct {
	base
	InsertionIndex int
	Manifest       manifest.Manifest
	Docs           []manifest.Doc
	FoundErrors    FoundErrors
	Stage          string
	TransportErr   error
}

func (PRFailed) Kind() RecordKind { return KindPRFailed }

func NewPRFailed(p PRPending, stage string, transportErr error, updateIndex int) PRFailed {
	return PRFailed{
		base:           base{updateIndex},
		InsertionIndex: p.InsertionIndex,
		Manifest:       p.Manifest,
		Docs:           p.Docs,
		FoundErrors:    p.FoundErrors,
		Stage:          stage,
		TransportErr:   transportErr,
	}
}

// Retry transitions a PRFailed record back to PRPending on operator retry —
// the one permitted non-monotonic transition in §3's lifecycle.
func (p PRFailed) Retry(updateIndex int) PRPending {
	return PRPending{
		base:           base{updateIndex},
		InsertionIndex: p.InsertionIndex,
		Manifest:       p.Manifest,
		Docs:           p.Docs,
		FoundErrors:    p.FoundErrors,
	}
}

// FetchMetaFailed: metadata fetch failed terminally.
type FetchMetaFailed struct {
	base
	Version        version.Version
	InsertionIndex int
	TransportErr   error
}

func (FetchMetaFailed) Kind() RecordKind { return KindFetchMetaFailed }

func NewFetchMetaFailed(v version.Version, insertionIndex int, transportErr error, updateIndex int) FetchMetaFailed {
	return FetchMetaFailed{base: base{updateIndex}, Version: v, InsertionIndex: insertionIndex, TransportErr: transportErr}
}

// FoundErrors is the payload carried from FetchedAndChecked into the PR*
// states: the diagnostics and manifest texts a PR would apply.
type FoundErrors struct {
	Errors          []Diagnostic
	OldManifestText string
	NewManifestText string
}

// Diagnostic is one rule finding: message, rule name, file path, detail
// lines, source range.
type Diagnostic struct {
	Message    string
	RuleName   string
	FilePath   string
	Detail     []string
	Range      SourceRange
}

// SourceRange is a half-open [Start, End) position range within a file,
// used to splice textual fixes.
type SourceRange struct {
	StartLine, StartCol int
	EndLine, EndCol     int
}
