package console

import (
	"fmt"

	"github.com/depreview/reviewbot/pkg/pkgcache"
)

// ProjectedRecord is the display-safe view of a PackageRecord that crosses
// the wire: raw manifests and docs are dropped (spec.md §4.9), leaving only
// the version, the update stamp, and a short status-for-display summary.
type ProjectedRecord struct {
	Version     string `json:"version"`
	UpdateIndex int    `json:"updateIndex"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
}

// projectRecord builds the wire projection of rec, or reports ok=false for
// Pending records, which are never projected: clients only see records
// from Fetched onward (spec.md §4.9).
func projectRecord(versionStr string, rec pkgcache.PackageRecord) (ProjectedRecord, bool) {
	base := ProjectedRecord{Version: versionStr, UpdateIndex: rec.UpdateIndex()}

	switch r := rec.(type) {
	case pkgcache.Pending:
		return ProjectedRecord{}, false
	case pkgcache.Fetched:
		base.Status = "fetched"
	case pkgcache.FetchMetaFailed:
		base.Status = "metaFailed"
		if r.TransportErr != nil {
			base.Detail = r.TransportErr.Error()
		}
	case pkgcache.FetchedAndChecked:
		base.Status, base.Detail = projectOutcome(r.Outcome)
	case pkgcache.PRPending:
		base.Status = "prPending"
	case pkgcache.PRSent:
		base.Status = "prSent"
		base.Detail = r.URL
	case pkgcache.PRFailed:
		base.Status = "prFailed"
		base.Detail = r.Stage
		if r.TransportErr != nil {
			base.Detail = fmt.Sprintf("%s: %s", r.Stage, r.TransportErr.Error())
		}
	default:
		return ProjectedRecord{}, false
	}
	return base, true
}

// projectOutcome summarizes a ReviewOutcome as a "checked:<kind>" status
// plus a human-readable detail string.
func projectOutcome(outcome pkgcache.ReviewOutcome) (status, detail string) {
	switch o := outcome.(type) {
	case pkgcache.CouldNotOpenArchive:
		return "checked:archiveUnreadable", ""
	case pkgcache.TagNotFound:
		return "checked:tagNotFound", ""
	case pkgcache.TransportError:
		return "checked:transportError", o.Err.Error()
	case pkgcache.RuleRun:
		return projectRunResult(o.Result)
	default:
		return "checked:unknown", ""
	}
}

func projectRunResult(result pkgcache.RunResult) (status, detail string) {
	switch r := result.(type) {
	case pkgcache.NoErrors:
		return "checked:noErrors", ""
	case pkgcache.ParsingError:
		return "checked:parsingError", fmt.Sprintf("%d message(s)", len(r.Messages))
	case pkgcache.IncorrectProject:
		return "checked:incorrectProject", ""
	case pkgcache.FixFailed:
		return "checked:fixFailed", projectFixFailure(r.Reason)
	case pkgcache.NotEnoughIterations:
		return "checked:notEnoughIterations", ""
	case pkgcache.NotAnEligiblePackage:
		return "checked:notEligible", ""
	case pkgcache.MissingDependencies:
		return "checked:missingDependencies", fmt.Sprintf("%d missing", len(r.Names))
	case pkgcache.FoundErrorsResult:
		return "checked:foundErrors", fmt.Sprintf("%d error(s)", len(r.Errors))
	default:
		return "checked:unknown", ""
	}
}

func projectFixFailure(reason pkgcache.FixFailureReason) string {
	switch r := reason.(type) {
	case pkgcache.Unchanged:
		return "unchanged"
	case pkgcache.SourceCodeInvalid:
		return r.Message
	case pkgcache.OverlappingFixRanges:
		return "overlapping fix ranges"
	default:
		return ""
	}
}
