package pkgcache

import (
	"testing"

	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/version"
)

func name(t *testing.T, s string) manifest.PackageName {
	t.Helper()
	n, err := manifest.ParsePackageName(s)
	if err != nil {
		t.Fatalf("ParsePackageName(%q): %v", s, err)
	}
	return n
}

func TestInsertIfAbsentIsIdempotent(t *testing.T) {
	c := New()
	n := name(t, "x/y")
	v := version.MustParseVersion("1.0.0")

	if !c.InsertIfAbsent(n, v, NewPending(v, 0, 1)) {
		t.Fatal("first insert should succeed")
	}
	if c.InsertIfAbsent(n, v, NewPending(v, 0, 2)) {
		t.Fatal("second insert for the same (name, version) should be a no-op (P1)")
	}

	r, ok := c.Get(n, v)
	if !ok {
		t.Fatal("expected record to be present")
	}
	if r.UpdateIndex() != 1 {
		t.Errorf("UpdateIndex = %d, want 1 (second insert must not overwrite)", r.UpdateIndex())
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	c := New()
	n := name(t, "x/y")

	versions := []string{"1.1.0", "1.0.0", "1.2.0"}
	for i, vs := range versions {
		v := version.MustParseVersion(vs)
		c.InsertIfAbsent(n, v, NewPending(v, i, i+1))
	}

	got := c.Versions(n)
	if len(got) != 3 {
		t.Fatalf("got %d versions, want 3", len(got))
	}
	for i, vs := range versions {
		if got[i].String() != vs {
			t.Errorf("Versions()[%d] = %v, want %v", i, got[i], vs)
		}
	}
}

func TestGetLatestSatisfying(t *testing.T) {
	c := New()
	n := name(t, "elm/core")

	m100, _ := manifest.ParseManifest([]byte(`{"type":"package","name":"elm/core","version":"1.0.0","dependencies":{},"test-dependencies":{},"elm-version":"0.19.0 <= v < 0.20.0","exposed-modules":[]}`))
	m101, _ := manifest.ParseManifest([]byte(`{"type":"package","name":"elm/core","version":"1.0.1","dependencies":{},"test-dependencies":{},"elm-version":"0.19.0 <= v < 0.20.0","exposed-modules":[]}`))

	v100 := version.MustParseVersion("1.0.0")
	v101 := version.MustParseVersion("1.0.1")
	v200 := version.MustParseVersion("2.0.0")

	c.InsertIfAbsent(n, v100, NewFetched(0, m100, nil, 1))
	c.InsertIfAbsent(n, v101, NewFetched(1, m101, nil, 2))
	c.InsertIfAbsent(n, v200, NewPending(v200, 2, 3)) // Pending: not usable

	constraint, _ := version.ParseConstraint("1.0.0 <= v < 2.0.0")
	best, m, _, ok := c.GetLatestSatisfying(n, constraint)
	if !ok {
		t.Fatal("expected a satisfying version")
	}
	if best != v101 {
		t.Errorf("GetLatestSatisfying returned %v, want %v", best, v101)
	}
	if m.Version != v101 {
		t.Errorf("returned manifest version = %v, want %v", m.Version, v101)
	}
}

func TestGetLatestSatisfyingNoneUsable(t *testing.T) {
	c := New()
	n := name(t, "x/y")
	v := version.MustParseVersion("1.0.0")
	c.InsertIfAbsent(n, v, NewPending(v, 0, 1))

	constraint, _ := version.ParseConstraint("1.0.0 <= v < 2.0.0")
	if _, _, _, ok := c.GetLatestSatisfying(n, constraint); ok {
		t.Error("expected no usable satisfying version")
	}
}

func TestAllIterationOrder(t *testing.T) {
	c := New()
	a := name(t, "a/p1")
	b := name(t, "b/p2")
	v1 := version.MustParseVersion("1.0.0")

	c.InsertIfAbsent(b, v1, NewPending(v1, 0, 1))
	c.InsertIfAbsent(a, v1, NewPending(v1, 0, 2))

	var seen []manifest.PackageName
	c.All()(func(n manifest.PackageName, _ version.Version, _ PackageRecord) bool {
		seen = append(seen, n)
		return true
	})
	if len(seen) != 2 || seen[0] != b || seen[1] != a {
		t.Errorf("All() order = %v, want [b/p2 a/p1] (first-insertion order)", seen)
	}
}
