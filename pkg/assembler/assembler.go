// Package assembler implements the project assembler (C6): turning a
// manifest, a local package cache, and a raw archive bytestring into a
// rule.Project the analysis driver can run against.
package assembler

import (
	"archive/zip"
	"bytes"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/rule"
	"github.com/depreview/reviewbot/pkg/version"
)

// sourceExtension is the only file suffix the assembler treats as an
// analyzable module (§4.6: "...*.<source-extension>").
const sourceExtension = ".elm"

// Outcome is the closed tagged union C6 produces: either a usable Project,
// or one of the short-circuit failures §4.6 names.
type Outcome interface {
	assemblerOutcome()
}

// CouldNotOpenArchive: the archive bytestring did not parse as a ZIP.
type CouldNotOpenArchive struct{}

func (CouldNotOpenArchive) assemblerOutcome() {}

// NotAnEligiblePackage: the manifest's elm-version constraint excludes the
// fixed analysis target.
type NotAnEligiblePackage struct{}

func (NotAnEligiblePackage) assemblerOutcome() {}

// MissingDependencies: one or more direct/test dependencies could not be
// resolved against the local cache.
type MissingDependencies struct{ Names []manifest.PackageName }

func (MissingDependencies) assemblerOutcome() {}

// Assembled: the Project is ready for the analysis driver.
type Assembled struct{ Project rule.Project }

func (Assembled) assemblerOutcome() {}

// CanonicalManifestPath is the fixed location elm.json occupies within
// every assembled Project (§4.7: "diagnostics whose file path is the
// canonical manifest path").
const CanonicalManifestPath = "elm.json"

var importLine = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([A-Za-z0-9_.]{1,200})`)

// Assemble builds a Project from m, archive, and the dependency cache
// (§4.6). The eligibility check runs first, then the archive is opened,
// then dependencies are resolved, then reachability is computed.
func Assemble(m manifest.Manifest, archive []byte, cache *pkgcache.Cache) Outcome {
	if !m.IsEligible() {
		return NotAnEligiblePackage{}
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return CouldNotOpenArchive{}
	}

	srcFiles, testFiles, err := readModules(zr)
	if err != nil {
		return CouldNotOpenArchive{}
	}

	deps, testDeps, missing := resolveDependencies(m, cache)
	if len(missing) > 0 {
		return MissingDependencies{Names: missing}
	}

	included := reachable(m.ExposedModules, srcFiles)

	var modules []rule.Module
	for _, f := range srcFiles {
		if included[f.moduleName] {
			modules = append(modules, rule.Module{Path: f.path, Text: f.text})
		}
	}
	for _, f := range testFiles {
		modules = append(modules, rule.Module{Path: f.path, Text: f.text})
	}

	entries := make([]rule.DependencyEntry, 0, len(deps)+len(testDeps))
	entries = append(entries, deps...)
	entries = append(entries, testDeps...)

	return Assembled{Project: rule.Project{
		Modules:      modules,
		Manifest:     rule.ManifestFile{Path: CanonicalManifestPath, Text: m.RawText()},
		Dependencies: entries,
	}}
}

// sourceFile is one analyzable archive entry: its project-relative path,
// its derived Elm module name (empty for test files, which don't need one),
// and its decompressed text.
type sourceFile struct {
	path       string
	moduleName string
	text       string
}

// readModules walks the archive, decompressing one entry at a time
// (§9: "never hold more than one archive in memory at a time"), splitting
// src/ and tests/ entries. Entries outside <top>/{src,tests}/ are ignored,
// as are directories and non-source-extension files.
func readModules(zr *zip.Reader) (src, tests []sourceFile, err error) {
	// Sort entries by name first so traversal order — and therefore every
	// downstream ordering decision — is independent of the ZIP's own
	// directory-entry order (P4: byte-identical output for the same bytes).
	files := make([]*zip.File, len(zr.File))
	copy(files, zr.File)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	for _, f := range files {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rel, folder, ok := splitTopFolder(f.Name)
		if !ok || (folder != "src" && folder != "tests") {
			continue
		}
		if !strings.HasSuffix(rel, sourceExtension) {
			continue
		}

		r, openErr := f.Open()
		if openErr != nil {
			return nil, nil, openErr
		}
		data, readErr := io.ReadAll(r)
		r.Close()
		if readErr != nil {
			return nil, nil, readErr
		}

		sf := sourceFile{path: rel, text: string(data)}
		if folder == "src" {
			sf.moduleName = moduleNameFromPath(strings.TrimPrefix(rel, "src/"))
			src = append(src, sf)
		} else {
			tests = append(tests, sf)
		}
	}
	return src, tests, nil
}

// splitTopFolder strips the archive's single top-level directory and
// reports the next path segment (the "src"/"tests" folder discriminator).
func splitTopFolder(name string) (rel string, folder string, ok bool) {
	name = strings.TrimPrefix(name, "/")
	parts := strings.SplitN(name, "/", 3)
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[1] + "/" + parts[2], parts[1], true
}

func moduleNameFromPath(relUnderSrc string) string {
	trimmed := strings.TrimSuffix(relUnderSrc, sourceExtension)
	return strings.ReplaceAll(trimmed, "/", ".")
}

// reachable computes the fixpoint closure of exposed over srcFiles' import
// graph (§4.6). Exposed names absent from srcFiles are silently dropped.
func reachable(exposed []string, srcFiles []sourceFile) map[string]bool {
	byName := make(map[string]sourceFile, len(srcFiles))
	for _, f := range srcFiles {
		byName[f.moduleName] = f
	}

	included := make(map[string]bool)
	var queue []string
	for _, name := range exposed {
		if _, ok := byName[name]; ok && !included[name] {
			included[name] = true
			queue = append(queue, name)
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, m := range importLine.FindAllStringSubmatch(byName[name].text, -1) {
			imported := m[1]
			if _, ok := byName[imported]; ok && !included[imported] {
				included[imported] = true
				queue = append(queue, imported)
			}
		}
	}
	return included
}

// resolveDependencies resolves every direct and test dependency against
// cache, returning the names that could not be resolved.
func resolveDependencies(m manifest.Manifest, cache *pkgcache.Cache) (deps, testDeps []rule.DependencyEntry, missing []manifest.PackageName) {
	resolve := func(want map[manifest.PackageName]version.Constraint) []rule.DependencyEntry {
		names := sortedNames(want)
		var out []rule.DependencyEntry
		for _, name := range names {
			_, dm, docs, ok := cache.GetLatestSatisfying(name, want[name])
			if !ok {
				missing = append(missing, name)
				continue
			}
			out = append(out, rule.DependencyEntry{Name: name, Manifest: dm, Docs: docs})
		}
		return out
	}

	deps = resolve(m.Dependencies)
	testDeps = resolve(m.TestDependencies)
	return deps, testDeps, missing
}

func sortedNames(m map[manifest.PackageName]version.Constraint) []manifest.PackageName {
	names := make([]manifest.PackageName, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names
}
