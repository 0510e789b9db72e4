package pkgcache

import (
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/version"
)

// Cache is the single-writer keyed mapping from §4.2: PackageName -> (Version
// -> PackageRecord), preserving per-name insertion order across versions so
// the scheduler's "latest among known" tie-breaking is deterministic (P8).
//
// There is no locking: the concurrency model (§5) guarantees the run loop is
// the only mutator, so a Cache value is only ever touched from one
// goroutine at a time.
type Cache struct {
	names   []manifest.PackageName
	entries map[manifest.PackageName]*nameEntry
}

type nameEntry struct {
	order   []version.Version
	records map[version.Version]PackageRecord
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[manifest.PackageName]*nameEntry)}
}

// InsertIfAbsent inserts record under (name, v) if that pair is not already
// present (P1: each (name, version) appears at most once). Returns whether
// the insert happened.
func (c *Cache) InsertIfAbsent(name manifest.PackageName, v version.Version, record PackageRecord) bool {
	e, ok := c.entries[name]
	if !ok {
		e = &nameEntry{records: make(map[version.Version]PackageRecord)}
		c.entries[name] = e
		c.names = append(c.names, name)
	}
	if _, exists := e.records[v]; exists {
		return false
	}
	e.order = append(e.order, v)
	e.records[v] = record
	return true
}

// UpdateVersionRecord overwrites the record at (name, v). The caller is
// responsible for monotonicity (§3); the cache itself does not enforce
// lifecycle ordering beyond storage.
func (c *Cache) UpdateVersionRecord(name manifest.PackageName, v version.Version, record PackageRecord) {
	e, ok := c.entries[name]
	if !ok {
		c.InsertIfAbsent(name, v, record)
		return
	}
	e.records[v] = record
}

// Get returns the record at (name, v), if present.
func (c *Cache) Get(name manifest.PackageName, v version.Version) (PackageRecord, bool) {
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	r, ok := e.records[v]
	return r, ok
}

// Versions returns the versions known for name, in insertion order.
func (c *Cache) Versions(name manifest.PackageName) []version.Version {
	e, ok := c.entries[name]
	if !ok {
		return nil
	}
	out := make([]version.Version, len(e.order))
	copy(out, e.order)
	return out
}

// Names returns every known package name, in first-insertion order.
func (c *Cache) Names() []manifest.PackageName {
	out := make([]manifest.PackageName, len(c.names))
	copy(out, c.names)
	return out
}

// usable returns the manifest and docs carried by record if its state holds
// one (any state except Pending and FetchMetaFailed, per §3's invariant on
// dependency resolution), and false otherwise.
func usable(record PackageRecord) (manifest.Manifest, []manifest.Doc, bool) {
	switch r := record.(type) {
	case Fetched:
		return r.Manifest, r.Docs, true
	case FetchedAndChecked:
		return r.Manifest, r.Docs, true
	case PRPending:
		return r.Manifest, r.Docs, true
	case PRSent:
		return r.Manifest, r.Docs, true
	case PRFailed:
		return r.Manifest, r.Docs, true
	default:
		return manifest.Manifest{}, nil, false
	}
}

// GetLatestSatisfying returns the manifest and docs of the highest cached
// version of name whose number satisfies c and whose record is usable (P8).
func (c *Cache) GetLatestSatisfying(name manifest.PackageName, constraint version.Constraint) (version.Version, manifest.Manifest, []manifest.Doc, bool) {
	e, ok := c.entries[name]
	if !ok {
		return version.Version{}, manifest.Manifest{}, nil, false
	}

	var best version.Version
	var bestManifest manifest.Manifest
	var bestDocs []manifest.Doc
	found := false

	for _, v := range e.order {
		if !constraint.Satisfies(v) {
			continue
		}
		m, docs, ok := usable(e.records[v])
		if !ok {
			continue
		}
		if !found || best.LessThan(v) {
			best, bestManifest, bestDocs, found = v, m, docs, true
		}
	}
	return best, bestManifest, bestDocs, found
}

// All returns a range-over-func iterator over every (name, version, record)
// triple in insertion order: names in first-seen order, and within each
// name, versions in first-seen order.
func (c *Cache) All() func(func(manifest.PackageName, version.Version, PackageRecord) bool) {
	return func(yield func(manifest.PackageName, version.Version, PackageRecord) bool) {
		for _, name := range c.names {
			e := c.entries[name]
			for _, v := range e.order {
				if !yield(name, v, e.records[v]) {
					return
				}
			}
		}
	}
}
