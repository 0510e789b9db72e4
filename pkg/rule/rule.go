// Package rule specifies the external collaborator contract the analysis
// driver (C7) drives: a static-analysis rule engine that inspects a Project
// and reports diagnostics, some of which carry a textual fix. The engine's
// own internals — parsing, type inference, whatever — are out of scope
// (spec.md §1: "the detailed internals of the rule engine... we specify
// only the contract it must satisfy").
package rule

import "github.com/depreview/reviewbot/pkg/manifest"

// Module is one analyzable source file: its path relative to the project
// root, and its full text.
type Module struct {
	Path string
	Text string
}

// ManifestFile is the project's manifest at its canonical path, the only
// file the analysis driver is ever allowed to apply a fix to.
type ManifestFile struct {
	Path string
	Text string
}

// DependencyEntry is one resolved dependency's manifest and module docs,
// supplied so the engine can type-check across package boundaries.
type DependencyEntry struct {
	Name     manifest.PackageName
	Manifest manifest.Manifest
	Docs     []manifest.Doc
}

// Project is everything the engine needs for one analysis pass (§4.6
// output): reachable source + test modules, the manifest, and resolved
// dependency entries.
type Project struct {
	Modules      []Module
	Manifest     ManifestFile
	Dependencies []DependencyEntry
}

// SourceRange is a half-open [Start, End) position range within a file.
type SourceRange struct {
	StartLine, StartCol int
	EndLine, EndCol      int
}

// Edit replaces the text in Range with NewText.
type Edit struct {
	Range   SourceRange
	NewText string
}

// Fix is a set of edits a diagnostic proposes. Multiple diagnostics
// targeting the manifest whose fixes overlap are a driver-detected error,
// not something the engine itself reports.
type Fix struct {
	Edits []Edit
}

// Diagnostic is one finding the engine reports against a file.
type Diagnostic struct {
	Message  string
	RuleName string
	FilePath string
	Detail   []string
	Range    SourceRange
	Fix      *Fix // nil if this diagnostic carries no fix
}

// Result is the engine's response to one Run call (§4.7 step 1: "returns
// { diagnostics, projectData }"). ProjectData is opaque incremental state
// the driver never inspects; it exists only so a future engine could reuse
// work across iterations.
type Result struct {
	Diagnostics []Diagnostic
	ProjectData any
}

// Engine is the contract the analysis driver (C7) drives. Implementations
// are supplied by the caller; pkg/elmreview is the production adapter, and
// the engine tests use an in-memory fake.
type Engine interface {
	Run(Project) (Result, error)
}

// ParsingErrorRule and IncorrectProjectRule are the two sentinel rule names
// the driver checks for literally (§4.7 steps 2-3).
const (
	ParsingErrorRule    = "ParsingError"
	IncorrectProjectRule = "Incorrect project"
)
