package pkgcache

import "github.com/depreview/reviewbot/pkg/manifest"

// ReviewOutcome is the closed tagged union produced by attempting to review
// a package version (§3): either the archive could not be opened at all, or
// the rule ran and produced a RunResult.
type ReviewOutcome interface {
	reviewOutcome()
}

// CouldNotOpenArchive: the archive bytestring could not be interpreted as a
// ZIP.
type CouldNotOpenArchive struct{}

func (CouldNotOpenArchive) reviewOutcome() {}

// TagNotFound: the archive request returned 404 for the version's tag.
type TagNotFound struct{}

func (TagNotFound) reviewOutcome() {}

// TransportError: a non-404 transport failure while retrieving the archive.
type TransportError struct{ Err error }

func (TransportError) reviewOutcome() {}

// RuleRun: the rule engine ran to completion (possibly with a failure
// RunResult); see RunResult for the sub-variants.
type RuleRun struct{ Result RunResult }

func (RuleRun) reviewOutcome() {}

// RunResult is the closed tagged union the analysis driver (C7) produces.
type RunResult interface {
	runResult()
}

// ParsingError: a diagnostic named "ParsingError" terminated the loop.
type ParsingError struct{ Messages []string }

func (ParsingError) runResult() {}

// IncorrectProject: a diagnostic named "Incorrect project" terminated the
// loop.
type IncorrectProject struct{}

func (IncorrectProject) runResult() {}

// FixFailed: applying the chosen fix did not succeed.
type FixFailed struct{ Reason FixFailureReason }

func (FixFailed) runResult() {}

// FixFailureReason is the closed tagged union of ways a fix application can
// fail.
type FixFailureReason interface {
	fixFailureReason()
}

// Unchanged: the fix produced no textual delta.
type Unchanged struct{}

func (Unchanged) fixFailureReason() {}

// SourceCodeInvalid: the fix (or the manifest it produced) does not parse.
type SourceCodeInvalid struct{ Message string }

func (SourceCodeInvalid) fixFailureReason() {}

// OverlappingFixRanges: two or more fix ranges overlapped.
type OverlappingFixRanges struct{}

func (OverlappingFixRanges) fixFailureReason() {}

// NotEnoughIterations: the iteration budget reached zero before a fixpoint.
type NotEnoughIterations struct{}

func (NotEnoughIterations) runResult() {}

// NotAnEligiblePackage: the manifest's target-language constraint excludes
// the fixed analysis target.
type NotAnEligiblePackage struct{}

func (NotAnEligiblePackage) runResult() {}

// MissingDependencies: a direct (or test) dependency is not resolvable from
// the local cache.
type MissingDependencies struct{ Names []manifest.PackageName }

func (MissingDependencies) runResult() {}

// FoundErrorsResult wraps FoundErrors as a RunResult variant; the payload
// type itself (FoundErrors) is reused verbatim as the PR-state payload in
// record.go, per the "composition over inheritance" design note.
type FoundErrorsResult struct{ FoundErrors }

func (FoundErrorsResult) runResult() {}

// NoErrors: the rule produced no manifest-targeted fix and no errors.
type NoErrors struct{}

func (NoErrors) runResult() {}
