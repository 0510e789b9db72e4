// Package elmreview is the one concrete rule.Engine this repository ships:
// it materializes a rule.Project onto disk and drives the real elm-review
// CLI against it, translating its --report=json output back into
// rule.Diagnostic values. spec.md §1 scopes the rule engine's internals out
// ("we specify only the contract it must satisfy") — this package is the
// minimal adapter a deployment actually needs to run that contract against
// a real tool, grounded on the corpus's CommandLinter convention of
// shelling out and collecting structured output.
package elmreview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/depreview/reviewbot/pkg/rule"
)

// Engine runs elm-review as a subprocess per analysis pass.
type Engine struct {
	command []string // e.g. []string{"elm-review", "--report=json"}
	logger  *log.Logger
}

// NewEngine builds an Engine that invokes command (argv[0] plus args) inside
// a freshly materialized project directory for every Run call. An empty
// command defaults to the elm-review binary on PATH.
func NewEngine(command []string, logger *log.Logger) *Engine {
	if len(command) == 0 {
		command = []string{"elm-review", "--report=json", "--no-color"}
	}
	return &Engine{command: command, logger: logger}
}

// Run implements rule.Engine. It writes project's modules and manifest into
// a temporary directory laid out the way elm-review expects (src/ plus
// elm.json at the root), then parses the tool's JSON report.
func (e *Engine) Run(project rule.Project) (rule.Result, error) {
	dir, err := os.MkdirTemp("", "elmreview-*")
	if err != nil {
		return rule.Result{}, fmt.Errorf("elmreview: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := materialize(dir, project); err != nil {
		return rule.Result{}, err
	}

	diagnostics, err := e.runTool(dir)
	if err != nil {
		return rule.Result{}, err
	}
	return rule.Result{Diagnostics: diagnostics}, nil
}

func materialize(dir string, project rule.Project) error {
	if err := os.WriteFile(filepath.Join(dir, project.Manifest.Path), []byte(project.Manifest.Text), 0o644); err != nil {
		return fmt.Errorf("elmreview: writing manifest: %w", err)
	}
	for _, m := range project.Modules {
		full := filepath.Join(dir, m.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("elmreview: creating %s: %w", filepath.Dir(m.Path), err)
		}
		if err := os.WriteFile(full, []byte(m.Text), 0o644); err != nil {
			return fmt.Errorf("elmreview: writing %s: %w", m.Path, err)
		}
	}
	return nil
}

func (e *Engine) runTool(dir string) ([]rule.Diagnostic, error) {
	cmd := exec.CommandContext(context.Background(), e.command[0], e.command[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// elm-review exits non-zero when it finds errors; that is the expected
	// common case, not a failure of the engine contract.
	runErr := cmd.Run()

	if stderr.Len() > 0 {
		e.logger.Debug("elmreview: stderr", "output", stderr.String())
	}

	var report reviewReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("elmreview: %v: %s", runErr, stderr.String())
		}
		return nil, fmt.Errorf("elmreview: decoding report: %w", err)
	}

	if report.Type == "error" {
		return nil, fmt.Errorf("elmreview: %s", report.Message)
	}

	var diagnostics []rule.Diagnostic
	for _, file := range report.Errors {
		for _, re := range file.Errors {
			diagnostics = append(diagnostics, toDiagnostic(file.Path, re))
		}
	}
	return diagnostics, nil
}

// reviewReport mirrors elm-review's --report=json top-level shape.
type reviewReport struct {
	Type    string        `json:"type"`
	Message string        `json:"message"`
	Errors  []reviewFile  `json:"errors"`
}

type reviewFile struct {
	Path   string        `json:"path"`
	Errors []reviewError `json:"errors"`
}

type reviewError struct {
	Rule    string       `json:"rule"`
	Message string       `json:"message"`
	Region  reviewRegion `json:"region"`
	Fix     []reviewFix  `json:"fix"`
	Details []string     `json:"details"`
}

type reviewRegion struct {
	Start reviewPosition `json:"start"`
	End   reviewPosition `json:"end"`
}

type reviewPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type reviewFix struct {
	Range  reviewRegion `json:"range"`
	String string       `json:"string"`
}

func toDiagnostic(path string, re reviewError) rule.Diagnostic {
	d := rule.Diagnostic{
		Message:  re.Message,
		RuleName: re.Rule,
		FilePath: path,
		Detail:   re.Details,
		Range:    toRange(re.Region),
	}
	if len(re.Fix) > 0 {
		edits := make([]rule.Edit, len(re.Fix))
		for i, f := range re.Fix {
			edits[i] = rule.Edit{Range: toRange(f.Range), NewText: f.String}
		}
		d.Fix = &rule.Fix{Edits: edits}
	}
	return d
}

// toRange converts elm-review's 1-based line/column region into the engine's
// 0-based rule.SourceRange (pkg/engine/driver.go's textOffset/applyFix treat
// line and column as 0-based).
func toRange(r reviewRegion) rule.SourceRange {
	return rule.SourceRange{
		StartLine: r.Start.Line - 1,
		StartCol:  r.Start.Column - 1,
		EndLine:   r.End.Line - 1,
		EndCol:    r.End.Column - 1,
	}
}
