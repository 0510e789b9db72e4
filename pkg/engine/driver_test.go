package engine

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/rule"
	"github.com/depreview/reviewbot/pkg/version"
)

// fakeEngine returns one scripted rule.Result per call to Run, in order.
type fakeEngine struct {
	results []rule.Result
	calls   int
}

func (f *fakeEngine) Run(rule.Project) (rule.Result, error) {
	r := f.results[f.calls]
	f.calls++
	return r, nil
}

func buildTestArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("x-y-1.0.0/src/Main.elm")
	f.Write([]byte("module Main exposing (..)\n"))
	w.Close()
	return buf.Bytes()
}

func testManifest(t *testing.T, rawText string) manifest.Manifest {
	t.Helper()
	n, err := manifest.ParsePackageName("x/y")
	if err != nil {
		t.Fatal(err)
	}
	elmConstraint, _ := version.ParseConstraint("0.19.0 <= v < 0.20.0")
	m := manifest.Manifest{
		Name:           n,
		Version:        version.MustParseVersion("1.0.0"),
		ExposedModules: []string{"Main"},
		ElmVersion:     elmConstraint,
	}
	return m.WithRawText(rawText)
}

func TestReviewNoErrors(t *testing.T) {
	m := testManifest(t, `{"type":"package"}`)
	eng := &fakeEngine{results: []rule.Result{{Diagnostics: nil}}}

	outcome := Review(eng, m, buildTestArchive(t), pkgcache.New())
	run, ok := outcome.(pkgcache.RuleRun)
	if !ok {
		t.Fatalf("Review() = %T, want RuleRun", outcome)
	}
	if _, ok := run.Result.(pkgcache.NoErrors); !ok {
		t.Fatalf("Result = %T, want NoErrors", run.Result)
	}
}

func TestReviewParsingError(t *testing.T) {
	m := testManifest(t, `{"type":"package"}`)
	eng := &fakeEngine{results: []rule.Result{{
		Diagnostics: []rule.Diagnostic{{RuleName: rule.ParsingErrorRule, Message: "bad token"}},
	}}}

	outcome := Review(eng, m, buildTestArchive(t), pkgcache.New())
	run := outcome.(pkgcache.RuleRun)
	pe, ok := run.Result.(pkgcache.ParsingError)
	if !ok {
		t.Fatalf("Result = %T, want ParsingError", run.Result)
	}
	if len(pe.Messages) != 1 || pe.Messages[0] != "bad token" {
		t.Errorf("Messages = %v", pe.Messages)
	}
}

func TestReviewAppliesFixThenConverges(t *testing.T) {
	const oldText = `{"type":"package","name":"x/y","version":"1.0.0","dependencies":{"elm/core":"1.0.0 <= v < 2.0.0"},"test-dependencies":{},"elm-version":"0.19.0 <= v < 0.20.0","exposed-modules":["Main"]}`
	const newText = `{"type":"package","name":"x/y","version":"1.0.0","dependencies":{},"test-dependencies":{},"elm-version":"0.19.0 <= v < 0.20.0","exposed-modules":["Main"]}`

	m := testManifest(t, oldText)
	start := len(`{"type":"package","name":"x/y","version":"1.0.0","dependencies":{`)
	end := start + len(`"elm/core":"1.0.0 <= v < 2.0.0"`)

	fixDiag := rule.Diagnostic{
		Message:  "unused dependency elm/core",
		RuleName: "UnusedDependency",
		FilePath: "elm.json",
		Range:    rule.SourceRange{StartLine: 0, StartCol: start, EndLine: 0, EndCol: end},
		Fix: &rule.Fix{Edits: []rule.Edit{{
			Range:   rule.SourceRange{StartLine: 0, StartCol: start, EndLine: 0, EndCol: end},
			NewText: "",
		}}},
	}

	eng := &fakeEngine{results: []rule.Result{
		{Diagnostics: []rule.Diagnostic{fixDiag}},
		{Diagnostics: nil},
	}}

	cache := pkgcache.New()
	outcome := Review(eng, m, buildTestArchive(t), cache)
	run := outcome.(pkgcache.RuleRun)
	found, ok := run.Result.(pkgcache.FoundErrorsResult)
	if !ok {
		t.Fatalf("Result = %T, want FoundErrorsResult", run.Result)
	}
	if found.OldManifestText != oldText {
		t.Errorf("OldManifestText = %q, want %q", found.OldManifestText, oldText)
	}
	if found.NewManifestText != newText {
		t.Errorf("NewManifestText = %q, want %q", found.NewManifestText, newText)
	}
	if len(found.Errors) != 1 {
		t.Fatalf("Errors = %d, want 1", len(found.Errors))
	}

	// P6: re-running with newText as the starting manifest yields NoErrors.
	eng2 := &fakeEngine{results: []rule.Result{{Diagnostics: nil}}}
	second := Review(eng2, testManifest(t, newText), buildTestArchive(t), cache)
	secondRun := second.(pkgcache.RuleRun)
	if _, ok := secondRun.Result.(pkgcache.NoErrors); !ok {
		t.Fatalf("idempotence rerun = %T, want NoErrors", secondRun.Result)
	}
}

func TestReviewNotEnoughIterations(t *testing.T) {
	const validText = `{"type":"package","name":"x/y","version":"1.0.0","dependencies":{},"test-dependencies":{},"elm-version":"0.19.0 <= v < 0.20.0","exposed-modules":["Main"]}`
	m := testManifest(t, validText)
	loopDiag := rule.Diagnostic{
		FilePath: "elm.json",
		RuleName: "Loop",
		Fix: &rule.Fix{Edits: []rule.Edit{{
			// A zero-width insertion of leading whitespace: JSON tolerates
			// it, so every iteration stays parseable yet keeps proposing a
			// fresh (non-Unchanged) fix, forcing the budget to exhaust.
			Range:   rule.SourceRange{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 0},
			NewText: " ",
		}}},
	}

	var results []rule.Result
	for i := 0; i < maxIterations; i++ {
		results = append(results, rule.Result{Diagnostics: []rule.Diagnostic{loopDiag}})
	}
	eng := &fakeEngine{results: results}

	outcome := Review(eng, m, buildTestArchive(t), pkgcache.New())
	run := outcome.(pkgcache.RuleRun)
	if _, ok := run.Result.(pkgcache.NotEnoughIterations); !ok {
		t.Fatalf("Result = %T, want NotEnoughIterations", run.Result)
	}
}
