package engine

import (
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/version"
)

// Selection is the work scheduler's closed tagged union of outcomes (§4.4).
type Selection interface {
	selection()
}

// FetchMetadata: dispatch C3 for (Name, Version).
type FetchMetadata struct {
	Name    manifest.PackageName
	Version version.Version
}

func (FetchMetadata) selection() {}

// AnalyzeLatest: dispatch C5+C6+C7 for the latest Fetched version of Name.
type AnalyzeLatest struct {
	Name    manifest.PackageName
	Version version.Version
	Record  pkgcache.Fetched
}

func (AnalyzeLatest) selection() {}

// Idle: no work; remain idle until the next mutation or operator command.
type Idle struct{}

func (Idle) selection() {}

// SelectNext applies the three-step selection policy of §4.4 against cache.
func SelectNext(cache *pkgcache.Cache) Selection {
	var pendingName manifest.PackageName
	var pendingVersion version.Version
	foundPending := false

	cache.All()(func(name manifest.PackageName, v version.Version, rec pkgcache.PackageRecord) bool {
		if _, ok := rec.(pkgcache.Pending); ok {
			pendingName, pendingVersion, foundPending = name, v, true
			return false
		}
		return true
	})
	if foundPending {
		return FetchMetadata{Name: pendingName, Version: pendingVersion}
	}

	for _, name := range cache.Names() {
		if name.IsReserved() {
			continue
		}
		versions := cache.Versions(name)
		for _, v := range versions {
			rec, ok := cache.Get(name, v)
			if !ok {
				continue
			}
			fetched, ok := rec.(pkgcache.Fetched)
			if !ok {
				continue
			}
			if isLatestKnown(v, versions) {
				return AnalyzeLatest{Name: name, Version: v, Record: fetched}
			}
		}
	}

	return Idle{}
}

// isLatestKnown reports whether exactly one version among versions is
// greater-or-equal to v — i.e. v is itself the maximum (§4.4 step 2).
func isLatestKnown(v version.Version, versions []version.Version) bool {
	count := 0
	for _, other := range versions {
		if !other.LessThan(v) {
			count++
		}
	}
	return count == 1
}
