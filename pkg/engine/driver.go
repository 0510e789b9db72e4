package engine

import (
	"sort"
	"strings"

	"github.com/depreview/reviewbot/pkg/assembler"
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/rule"
)

// maxIterations is the analysis driver's fixpoint cap (§4.7).
const maxIterations = 10

// Review runs the project assembler and, if it yields a Project, the
// analysis driver loop, classifying the result as a ReviewOutcome.
func Review(ruleEngine rule.Engine, m manifest.Manifest, archive []byte, cache *pkgcache.Cache) pkgcache.ReviewOutcome {
	switch o := assembler.Assemble(m, archive, cache).(type) {
	case assembler.CouldNotOpenArchive:
		return pkgcache.CouldNotOpenArchive{}
	case assembler.NotAnEligiblePackage:
		return pkgcache.RuleRun{Result: pkgcache.NotAnEligiblePackage{}}
	case assembler.MissingDependencies:
		return pkgcache.RuleRun{Result: pkgcache.MissingDependencies{Names: o.Names}}
	case assembler.Assembled:
		return pkgcache.RuleRun{Result: runLoop(ruleEngine, m, o.Project, archive, cache)}
	default:
		return pkgcache.RuleRun{Result: pkgcache.IncorrectProject{}}
	}
}

// runLoop is the bounded-iteration fixpoint state machine of §4.7.
func runLoop(ruleEngine rule.Engine, m manifest.Manifest, project rule.Project, archive []byte, cache *pkgcache.Cache) pkgcache.RunResult {
	oldText := m.RawText()
	currentManifest := m
	currentProject := project
	var applied []pkgcache.Diagnostic

	for budget := maxIterations; budget > 0; budget-- {
		result, err := ruleEngine.Run(currentProject)
		if err != nil {
			return pkgcache.IncorrectProject{}
		}

		if msgs := messagesFor(result.Diagnostics, rule.ParsingErrorRule); len(msgs) > 0 {
			return pkgcache.ParsingError{Messages: msgs}
		}
		if hasRule(result.Diagnostics, rule.IncorrectProjectRule) {
			return pkgcache.IncorrectProject{}
		}

		fixDiag, hasFix := firstManifestFix(result.Diagnostics, currentProject.Manifest.Path)
		if !hasFix {
			if len(applied) == 0 {
				return pkgcache.NoErrors{}
			}
			return pkgcache.FoundErrorsResult{FoundErrors: pkgcache.FoundErrors{
				Errors:          applied,
				OldManifestText: oldText,
				NewManifestText: currentManifest.RawText(),
			}}
		}

		newText, reason, ok := applyFix(currentManifest.RawText(), fixDiag.Fix)
		if !ok {
			return pkgcache.FixFailed{Reason: reason}
		}

		newManifest, parseErr := manifest.ParseManifest([]byte(newText))
		if parseErr != nil {
			return pkgcache.FixFailed{Reason: pkgcache.SourceCodeInvalid{Message: "manifest is now application-typed or malformed"}}
		}
		newManifest = newManifest.WithRawText(newText)

		switch reassembled := assembler.Assemble(newManifest, archive, cache).(type) {
		case assembler.Assembled:
			applied = append(applied, toDiagnostic(fixDiag))
			currentManifest = newManifest
			currentProject = reassembled.Project
		case assembler.MissingDependencies:
			return pkgcache.MissingDependencies{Names: reassembled.Names}
		case assembler.NotAnEligiblePackage:
			return pkgcache.NotAnEligiblePackage{}
		default:
			return pkgcache.IncorrectProject{}
		}
	}
	return pkgcache.NotEnoughIterations{}
}

func messagesFor(diags []rule.Diagnostic, ruleName string) []string {
	var out []string
	for _, d := range diags {
		if d.RuleName == ruleName {
			out = append(out, d.Message)
		}
	}
	return out
}

func hasRule(diags []rule.Diagnostic, ruleName string) bool {
	for _, d := range diags {
		if d.RuleName == ruleName {
			return true
		}
	}
	return false
}

// firstManifestFix returns the first diagnostic targeting manifestPath that
// carries a fix, in diagnostic order (§4.7 step 4: "pick the first").
func firstManifestFix(diags []rule.Diagnostic, manifestPath string) (rule.Diagnostic, bool) {
	for _, d := range diags {
		if d.FilePath == manifestPath && d.Fix != nil {
			return d, true
		}
	}
	return rule.Diagnostic{}, false
}

func toDiagnostic(d rule.Diagnostic) pkgcache.Diagnostic {
	return pkgcache.Diagnostic{
		Message:  d.Message,
		RuleName: d.RuleName,
		FilePath: d.FilePath,
		Detail:   d.Detail,
		Range: pkgcache.SourceRange{
			StartLine: d.Range.StartLine,
			StartCol:  d.Range.StartCol,
			EndLine:   d.Range.EndLine,
			EndCol:    d.Range.EndCol,
		},
	}
}

// applyFix splices fix's edits into text. Edits are applied left to right;
// overlapping ranges and a no-op result are both reported as failures
// (§4.7 step 4).
func applyFix(text string, fix *rule.Fix) (string, pkgcache.FixFailureReason, bool) {
	if fix == nil || len(fix.Edits) == 0 {
		return text, pkgcache.Unchanged{}, false
	}

	edits := make([]rule.Edit, len(fix.Edits))
	copy(edits, fix.Edits)
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].Range.StartLine != edits[j].Range.StartLine {
			return edits[i].Range.StartLine < edits[j].Range.StartLine
		}
		return edits[i].Range.StartCol < edits[j].Range.StartCol
	})

	for i := 1; i < len(edits); i++ {
		prevEnd := textOffset(text, edits[i-1].Range.EndLine, edits[i-1].Range.EndCol)
		curStart := textOffset(text, edits[i].Range.StartLine, edits[i].Range.StartCol)
		if curStart < prevEnd {
			return "", pkgcache.OverlappingFixRanges{}, false
		}
	}

	var b strings.Builder
	pos := 0
	for _, e := range edits {
		start := textOffset(text, e.Range.StartLine, e.Range.StartCol)
		end := textOffset(text, e.Range.EndLine, e.Range.EndCol)
		if start < pos || end < start || end > len(text) {
			return "", pkgcache.SourceCodeInvalid{Message: "fix range out of bounds"}, false
		}
		b.WriteString(text[pos:start])
		b.WriteString(e.NewText)
		pos = end
	}
	b.WriteString(text[pos:])

	newText := b.String()
	if newText == text {
		return text, pkgcache.Unchanged{}, false
	}
	return newText, nil, true
}

// textOffset converts a (line, col) position into a byte offset, with line
// and col both 0-based and col counted in bytes within the line.
func textOffset(text string, line, col int) int {
	lines := strings.SplitAfter(text, "\n")
	off := 0
	for i := 0; i < line && i < len(lines); i++ {
		off += len(lines[i])
	}
	return off + col
}
