// Package manifest models the registry's package identity and manifest
// format: the (owner, repo) package name, library/application manifests,
// and the per-module documentation summary.
package manifest

import (
	"encoding/json"
	"strings"

	"github.com/depreview/reviewbot/pkg/reviewerr"
	"github.com/depreview/reviewbot/pkg/version"
)

// ReservedPrefix is the ecosystem-root namespace; packages under it have no
// upstream hosting repository to open a pull request against.
const ReservedPrefix = "elm/"

// PackageName is the (owner, repo) pair the registry stores as one string
// but the hosting-platform interface requires split.
type PackageName struct {
	Owner, Repo string
}

// String renders the package name back into "owner/repo" form.
func (n PackageName) String() string {
	return n.Owner + "/" + n.Repo
}

// IsReserved reports whether n lives under the ecosystem-root namespace.
func (n PackageName) IsReserved() bool {
	return strings.HasPrefix(n.String()+"/", ReservedPrefix)
}

// ParsePackageName splits "owner/repo" into a PackageName, validating both
// halves as hosting-platform owner/repo components.
func ParsePackageName(s string) (PackageName, error) {
	owner, repo, err := ParseRepoRef(s)
	if err != nil {
		return PackageName{}, reviewerr.Wrap(reviewerr.CodeMalformedJSON, err, "malformed package name %q", s)
	}
	return PackageName{Owner: owner, Repo: repo}, nil
}

// ParseIndexEntry parses one "<owner>/<repo>@<M.m.p>" entry from the
// all-packages-since response.
func ParseIndexEntry(s string) (PackageName, version.Version, error) {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return PackageName{}, version.Version{}, reviewerr.New(reviewerr.CodeMalformedJSON, "malformed index entry %q: missing @version", s)
	}
	name, err := ParsePackageName(s[:at])
	if err != nil {
		return PackageName{}, version.Version{}, err
	}
	v, err := version.ParseVersion(s[at+1:])
	if err != nil {
		return PackageName{}, version.Version{}, reviewerr.Wrap(reviewerr.CodeInvalidVersion, err, "malformed index entry %q", s)
	}
	return name, v, nil
}

// Manifest is a library-typed package manifest — the only shape the
// pipeline analyzes. Application-typed manifests are rejected at parse time
// and the owning record is marked FetchMetaFailed.
type Manifest struct {
	Name               PackageName
	Version            version.Version
	ExposedModules     []string
	Dependencies       map[PackageName]version.Constraint
	TestDependencies   map[PackageName]version.Constraint
	ElmVersion         version.Constraint
	rawText            string
}

// RawText returns the exact manifest text this value was parsed from (or
// last re-serialized to), used as the oldManifestText/newManifestText in
// RunResult.FoundErrors.
func (m Manifest) RawText() string { return m.rawText }

// WithRawText returns a copy of m carrying the given serialized text,
// used after the analysis driver re-assembles the Project with new text.
func (m Manifest) WithRawText(text string) Manifest {
	m.rawText = text
	return m
}

// elmJSON mirrors the on-the-wire shape of elm.json for both manifest
// variants; the "type" field selects which fields are meaningful.
type elmJSON struct {
	Type             string            `json:"type"`
	Name             string            `json:"name"`
	Version          string            `json:"version,omitempty"`
	ExposedModules   json.RawMessage   `json:"exposed-modules,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	TestDependencies map[string]string `json:"test-dependencies,omitempty"`
	ElmVersion       string            `json:"elm-version,omitempty"`
}

// ParseManifest parses elm.json bytes. It returns an error tagged
// CodeApplicationManifest if the manifest is application-typed (the record
// owning it must be marked FetchMetaFailed, never analyzed),
// CodeInvalidVersion for a malformed version or constraint, and
// CodeMalformedJSON for any other parse failure.
func ParseManifest(data []byte) (Manifest, error) {
	var probe struct{ Type string `json:"type"` }
	if err := json.Unmarshal(data, &probe); err != nil {
		return Manifest{}, reviewerr.Wrap(reviewerr.CodeMalformedJSON, err, "malformed elm.json")
	}
	if probe.Type != "package" {
		return Manifest{}, reviewerr.New(reviewerr.CodeApplicationManifest, "manifest is application-typed")
	}

	var raw elmJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Manifest{}, reviewerr.Wrap(reviewerr.CodeMalformedJSON, err, "malformed elm.json")
	}

	name, err := ParsePackageName(raw.Name)
	if err != nil {
		return Manifest{}, err
	}
	v, err := version.ParseVersion(raw.Version)
	if err != nil {
		return Manifest{}, reviewerr.Wrap(reviewerr.CodeInvalidVersion, err, "malformed elm.json version")
	}

	exposed, err := parseExposedModules(raw.ExposedModules)
	if err != nil {
		return Manifest{}, err
	}

	deps, err := parseDependencyMap(raw.Dependencies)
	if err != nil {
		return Manifest{}, err
	}
	testDeps, err := parseDependencyMap(raw.TestDependencies)
	if err != nil {
		return Manifest{}, err
	}

	elmConstraint, err := version.ParseConstraint(raw.ElmVersion)
	if err != nil {
		return Manifest{}, reviewerr.Wrap(reviewerr.CodeInvalidVersion, err, "malformed elm.json elm-version")
	}

	return Manifest{
		Name:             name,
		Version:          v,
		ExposedModules:   exposed,
		Dependencies:     deps,
		TestDependencies: testDeps,
		ElmVersion:       elmConstraint,
		rawText:          string(data),
	}, nil
}

// IsEligible reports whether the manifest's elm-version constraint admits
// the fixed analysis target (§4.6 eligibility check).
func (m Manifest) IsEligible() bool {
	return m.ElmVersion.Satisfies(version.TargetLanguageVersion)
}

// parseExposedModules handles both manifest shapes: a flat array of module
// names, or a map of group-name -> array of module names.
func parseExposedModules(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var grouped map[string][]string
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return nil, reviewerr.Wrap(reviewerr.CodeMalformedJSON, err, "malformed exposed-modules")
	}
	var out []string
	for _, group := range grouped {
		out = append(out, group...)
	}
	return out, nil
}

func parseDependencyMap(raw map[string]string) (map[PackageName]version.Constraint, error) {
	out := make(map[PackageName]version.Constraint, len(raw))
	for k, v := range raw {
		name, err := ParsePackageName(k)
		if err != nil {
			return nil, err
		}
		c, err := version.ParseConstraint(v)
		if err != nil {
			return nil, reviewerr.Wrap(reviewerr.CodeInvalidVersion, err, "malformed dependency constraint for %s", k)
		}
		out[name] = c
	}
	return out, nil
}

// Doc is the minimal per-module documentation record: the module name and
// the names of its unions, aliases, values and binary operators. Comments
// are stripped before caching to bound memory (§4.3, §9); type signatures
// are not kept either.
type Doc struct {
	Name      string
	Unions    []string
	Aliases   []string
	Values    []string
	Binops    []string
}

type docJSON struct {
	Name    string `json:"name"`
	Comment string `json:"comment"`
	Unions  []struct {
		Name    string `json:"name"`
		Comment string `json:"comment"`
	} `json:"unions"`
	Aliases []struct {
		Name    string `json:"name"`
		Comment string `json:"comment"`
	} `json:"aliases"`
	Values []struct {
		Name    string `json:"name"`
		Comment string `json:"comment"`
	} `json:"values"`
	Binops []struct {
		Name    string `json:"name"`
		Comment string `json:"comment"`
	} `json:"binops"`
}

// ParseDocs parses docs.json and strips every free-text comment field,
// keeping only names (§4.3). Type signatures are dropped as well.
func ParseDocs(data []byte) ([]Doc, error) {
	var raw []docJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, reviewerr.Wrap(reviewerr.CodeMalformedJSON, err, "malformed docs.json")
	}

	docs := make([]Doc, len(raw))
	for i, d := range raw {
		doc := Doc{Name: d.Name}
		for _, u := range d.Unions {
			doc.Unions = append(doc.Unions, u.Name)
		}
		for _, a := range d.Aliases {
			doc.Aliases = append(doc.Aliases, a.Name)
		}
		for _, v := range d.Values {
			doc.Values = append(doc.Values, v.Name)
		}
		for _, b := range d.Binops {
			doc.Binops = append(doc.Binops, b.Name)
		}
		docs[i] = doc
	}
	return docs, nil
}
