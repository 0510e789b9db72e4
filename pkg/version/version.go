// Package version implements the registry's version and version-constraint
// grammar: a plain (major, minor, patch) triple with no prerelease or build
// metadata, and range constraints of the form "M.m.p <= v < M.m.p",
// "M.m.p <= v <= M.m.p", or an exact version.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/depreview/reviewbot/pkg/reviewerr"
)

// Version is a non-negative (major, minor, patch) triple with lexicographic
// ordering.
type Version struct {
	Major, Minor, Patch int
}

// String renders the version in "M.m.p" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, under lexicographic (major, minor, patch) ordering.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmpInt(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpInt(v.Minor, other.Minor)
	default:
		return cmpInt(v.Patch, other.Patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// LessThan reports whether v orders strictly before other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

// ParseVersion parses a strict "M.m.p" string with non-negative integer
// components. It rejects prerelease/build-metadata suffixes: the registry's
// version grammar has none.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, reviewerr.New(reviewerr.CodeInvalidVersion, "malformed version %q: want M.m.p", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, reviewerr.New(reviewerr.CodeInvalidVersion, "malformed version %q: component %q is not a non-negative integer", s, p)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion is ParseVersion for callers that have already validated
// the input (e.g. in tests or against compile-time constants).
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Constraint is a predicate over Version built from a manifest's declared
// range. It holds the operator pair rather than a closure so that it can be
// inspected and re-serialized (needed when re-assembling a Project after a
// fix changes the manifest text).
type Constraint struct {
	Low, High       Version
	HighInclusive   bool
	exact           bool
	exactVersion    Version
}

// Satisfies reports whether v falls within the constraint's range.
func (c Constraint) Satisfies(v Version) bool {
	if c.exact {
		return v.Compare(c.exactVersion) == 0
	}
	if v.Compare(c.Low) < 0 {
		return false
	}
	if c.HighInclusive {
		return v.Compare(c.High) <= 0
	}
	return v.Compare(c.High) < 0
}

// String renders the constraint back into the registry's range grammar.
func (c Constraint) String() string {
	if c.exact {
		return c.exactVersion.String()
	}
	op := "<"
	if c.HighInclusive {
		op = "<="
	}
	return fmt.Sprintf("%s <= v %s %s", c.Low, op, c.High)
}

var rangeForm = regexp.MustCompile(`^(\d+\.\d+\.\d+)\s*<=\s*v\s*(<=?)\s*(\d+\.\d+\.\d+)$`)

// ParseConstraint parses one of the three forms the registry's manifests
// use: "M.m.p <= v < M.m.p", "M.m.p <= v <= M.m.p", or a bare "M.m.p" exact
// version.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)

	if v, err := ParseVersion(s); err == nil {
		return Constraint{exact: true, exactVersion: v}, nil
	}

	m := rangeForm.FindStringSubmatch(s)
	if m == nil {
		return Constraint{}, reviewerr.New(reviewerr.CodeInvalidVersion, "malformed constraint %q: expected \"M.m.p <= v < M.m.p\" form", s)
	}

	low, err := ParseVersion(m[1])
	if err != nil {
		return Constraint{}, reviewerr.Wrap(reviewerr.CodeInvalidVersion, err, "malformed constraint %q", s)
	}
	high, err := ParseVersion(m[3])
	if err != nil {
		return Constraint{}, reviewerr.Wrap(reviewerr.CodeInvalidVersion, err, "malformed constraint %q", s)
	}
	return Constraint{Low: low, High: high, HighInclusive: m[2] == "<="}, nil
}

// TargetLanguageVersion is the fixed target the eligibility check (§4.6) in
// the project assembler admits packages against.
var TargetLanguageVersion = Version{Major: 0, Minor: 19, Patch: 1}
