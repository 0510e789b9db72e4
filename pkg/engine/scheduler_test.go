package engine

import (
	"testing"

	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/version"
)

func mustName(t *testing.T, s string) manifest.PackageName {
	t.Helper()
	n, err := manifest.ParsePackageName(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSelectNextPendingFirst(t *testing.T) {
	c := pkgcache.New()
	name := mustName(t, "x/y")
	c.InsertIfAbsent(name, version.MustParseVersion("1.0.0"), pkgcache.NewFetched(0, manifest.Manifest{}, nil, 1))
	c.InsertIfAbsent(mustName(t, "a/b"), version.MustParseVersion("1.0.0"), pkgcache.NewPending(version.MustParseVersion("1.0.0"), 0, 2))

	sel := SelectNext(c)
	fm, ok := sel.(FetchMetadata)
	if !ok {
		t.Fatalf("SelectNext() = %T, want FetchMetadata", sel)
	}
	if fm.Name.String() != "a/b" {
		t.Errorf("FetchMetadata.Name = %v, want a/b", fm.Name)
	}
}

func TestSelectNextOnlyLatestIsAnalyzed(t *testing.T) {
	c := pkgcache.New()
	name := mustName(t, "x/y")
	c.InsertIfAbsent(name, version.MustParseVersion("1.0.0"), pkgcache.NewFetched(0, manifest.Manifest{}, nil, 1))
	c.InsertIfAbsent(name, version.MustParseVersion("1.1.0"), pkgcache.NewFetched(1, manifest.Manifest{}, nil, 2))

	sel := SelectNext(c)
	al, ok := sel.(AnalyzeLatest)
	if !ok {
		t.Fatalf("SelectNext() = %T, want AnalyzeLatest", sel)
	}
	if al.Version.String() != "1.1.0" {
		t.Errorf("AnalyzeLatest.Version = %v, want 1.1.0", al.Version)
	}
}

func TestSelectNextReservedPrefixSkipped(t *testing.T) {
	c := pkgcache.New()
	c.InsertIfAbsent(mustName(t, "elm/core"), version.MustParseVersion("1.0.1"), pkgcache.NewFetched(0, manifest.Manifest{}, nil, 1))

	if _, ok := SelectNext(c).(Idle); !ok {
		t.Fatalf("SelectNext() = %T, want Idle", SelectNext(c))
	}
}

func TestSelectNextIdleWhenNothingToDo(t *testing.T) {
	c := pkgcache.New()
	if _, ok := SelectNext(c).(Idle); !ok {
		t.Fatalf("SelectNext() on empty cache should be Idle")
	}
}
