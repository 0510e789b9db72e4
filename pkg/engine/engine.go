package engine

import (
	"context"
	"errors"
	"time"

	"github.com/depreview/reviewbot/pkg/integrations"
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/observability"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/registry"
	"github.com/depreview/reviewbot/pkg/reviewerr"
	"github.com/depreview/reviewbot/pkg/rule"
	"github.com/depreview/reviewbot/pkg/version"
)

// pacingDelay is the scheduler's rate-limiting pause before every dispatch
// (§4.4 steps 1-2: "insert a 200 ms delay before dispatching").
const pacingDelay = 200 * time.Millisecond

// Registry is the subset of registry.Client the engine drives (C1, C3, C5).
// Defined here so the engine can be tested against a fake.
type Registry interface {
	PollSince(ctx context.Context, cursor int) ([]registry.Entry, error)
	FetchManifest(ctx context.Context, name manifest.PackageName, v version.Version) (manifest.Manifest, error)
	FetchDocs(ctx context.Context, name manifest.PackageName, v version.Version) ([]manifest.Doc, error)
	FetchArchive(ctx context.Context, name manifest.PackageName, v version.Version) ([]byte, error)
}

// PRResult is the successful outcome of a PR orchestration (C8).
type PRResult struct {
	URL           string
	GuardMismatch bool
}

// Orchestrator drives the fork/branch/commit/PR sequence (C8). Implemented
// by *hostapi.Client; defined here as the dependency the engine holds, not
// the other way around.
type Orchestrator interface {
	OpenPullRequest(ctx context.Context, name manifest.PackageName, v version.Version, found pkgcache.FoundErrors, enforceGuard bool) (PRResult, reviewerr.StageLabel, error)
}

// Broadcaster pushes per-package deltas to connected operator sessions (C9).
type Broadcaster interface {
	Broadcast(name manifest.PackageName, v version.Version, rec pkgcache.PackageRecord)
}

// Engine is the actor loop that owns BackendState and drains msgs (§5): the
// work scheduler (C4), the analysis driver (C7), and the operator command
// handler (C10) all run as handlers inside this single goroutine.
type Engine struct {
	state        *BackendState
	registry     Registry
	orchestrator Orchestrator
	ruleEngine   rule.Engine
	broadcaster  Broadcaster
	ignoreList   map[string]bool
	enforceGuard bool

	cursor         int
	cursorBaseline int
	inFlight       bool
	msgs           chan msg
}

// Config carries the engine's startup parameters (§6: "package-count
// baseline", "optional ignore list").
type Config struct {
	CursorBaseline int
	IgnoreList     []string
	EnforcePRGuard bool
}

// New builds an Engine around the given collaborators. The registry,
// orchestrator, rule engine, and broadcaster are all accepted as interfaces
// so tests can supply fakes.
func New(registryClient Registry, orchestrator Orchestrator, ruleEngine rule.Engine, broadcaster Broadcaster, cfg Config) *Engine {
	ignore := make(map[string]bool, len(cfg.IgnoreList))
	for _, name := range cfg.IgnoreList {
		ignore[name] = true
	}
	return &Engine{
		state:          NewBackendState(0),
		registry:       registryClient,
		orchestrator:   orchestrator,
		ruleEngine:     ruleEngine,
		broadcaster:    broadcaster,
		ignoreList:     ignore,
		enforceGuard:   cfg.EnforcePRGuard,
		cursor:         cfg.CursorBaseline,
		cursorBaseline: cfg.CursorBaseline,
		msgs:           make(chan msg, 64),
	}
}

// Query runs fn against the live BackendState on the run loop and returns
// its result. Safe to call from any goroutine (the console's login handler,
// in particular): it is the one synchronization point between read-only
// state inspection (C9 snapshot, C10 status queries) and the run loop's
// single-writer pkgcache.Cache.
func (e *Engine) Query(fn SnapshotFunc) any {
	resp := make(chan any, 1)
	e.msgs <- queryMsg{fn: fn, resp: resp}
	return <-resp
}

// msg is the closed tagged union of everything the run loop reacts to.
type msg interface{ isEngineMsg() }

type pollDone struct {
	entries []registry.Entry
	err     error
}

func (pollDone) isEngineMsg() {}

type metaDone struct {
	name manifest.PackageName
	v    version.Version
	m    manifest.Manifest
	docs []manifest.Doc
	err  error
}

func (metaDone) isEngineMsg() {}

type analyzeDone struct {
	name    manifest.PackageName
	v       version.Version
	outcome pkgcache.ReviewOutcome
}

func (analyzeDone) isEngineMsg() {}

// archiveFetched carries the raw archive bytes for an AnalyzeLatest
// selection back to the run loop. Only the network fetch is detached;
// C6/C7 (assembling the project and running the rule engine) read the live
// pkgcache.Cache and so must run on the run-loop goroutine itself (§5: "C6/C7
// are pure and do not suspend ... state is never shared across task
// boundaries").
type archiveFetched struct {
	name    manifest.PackageName
	v       version.Version
	record  pkgcache.Fetched
	archive []byte
	start   time.Time
	err     error
}

func (archiveFetched) isEngineMsg() {}

type prDone struct {
	name   manifest.PackageName
	v      version.Version
	result PRResult
	stage  reviewerr.StageLabel
	err    error
}

func (prDone) isEngineMsg() {}

type commandMsg struct{ cmd Command }

func (commandMsg) isEngineMsg() {}

// clientMsg updates the connected-operator-session set (§3's
// BackendState.clients) from the console's websocket accept/close handlers,
// routed through the run loop so it stays single-writer like everything
// else in BackendState.
type clientMsg struct {
	id        string
	connected bool
}

func (clientMsg) isEngineMsg() {}

// SnapshotFunc computes a value from the live BackendState. It runs on the
// run-loop goroutine via Query, so it may safely read pkgcache.Cache without
// locking.
type SnapshotFunc func(*BackendState) any

// queryMsg carries a read-only BackendState query from another goroutine
// (the console's login handler) onto the run loop, and a channel to deliver
// the result back.
type queryMsg struct {
	fn   SnapshotFunc
	resp chan any
}

func (queryMsg) isEngineMsg() {}

// pollInterval is how often the engine re-polls the registry index for new
// packages once its initial backlog is drained.
const pollInterval = 30 * time.Second

// Submit enqueues an operator command for the run loop to process. Safe to
// call from any goroutine (it is the one synchronization point between the
// console's websocket handlers and the engine's single-threaded state).
func (e *Engine) Submit(cmd Command) {
	e.msgs <- commandMsg{cmd: cmd}
}

// RegisterClient and UnregisterClient record a console session joining or
// leaving, safe to call from any websocket handler goroutine.
func (e *Engine) RegisterClient(id string) {
	e.msgs <- clientMsg{id: id, connected: true}
}

func (e *Engine) UnregisterClient(id string) {
	e.msgs <- clientMsg{id: id, connected: false}
}

// Run drains the message channel until ctx is cancelled. It issues the
// first poll immediately and then re-polls on pollInterval.
func (e *Engine) Run(ctx context.Context) error {
	e.dispatchPoll(ctx)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.dispatchPoll(ctx)
		case m := <-e.msgs:
			e.handle(ctx, m)
			e.scheduleNext(ctx)
		}
	}
}

func (e *Engine) dispatchPoll(ctx context.Context) {
	cursor := e.cursor
	go func() {
		observability.Engine().OnPollStart(ctx, cursor)
		start := time.Now()
		entries, err := e.registry.PollSince(ctx, cursor)
		observability.Engine().OnPollComplete(ctx, cursor, len(entries), time.Since(start), err)
		select {
		case e.msgs <- pollDone{entries: entries, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) handle(ctx context.Context, m msg) {
	switch v := m.(type) {
	case pollDone:
		e.handlePoll(v)
	case metaDone:
		e.handleMeta(v)
	case archiveFetched:
		e.handleArchiveFetched(ctx, v)
	case analyzeDone:
		e.handleAnalyze(v)
	case prDone:
		e.handlePR(v)
	case commandMsg:
		e.handleCommand(ctx, v.cmd)
	case clientMsg:
		e.handleClient(v)
	case queryMsg:
		v.resp <- v.fn(e.state)
	}
}

func (e *Engine) handleClient(c clientMsg) {
	if c.connected {
		e.state.Clients[c.id] = true
	} else {
		delete(e.state.Clients, c.id)
	}
}

// handlePoll seeds Pending records for every newly-observed entry, skipping
// ignore-listed names (scenario 1: "two Pending records inserted").
func (e *Engine) handlePoll(p pollDone) {
	if p.err != nil {
		return
	}
	for _, entry := range p.entries {
		if e.ignoreList[entry.Name.String()] {
			continue
		}
		if _, exists := e.state.Cache.Get(entry.Name, entry.Version); exists {
			continue
		}
		idx := len(e.state.Cache.Versions(entry.Name))
		rec := pkgcache.NewPending(entry.Version, idx, e.state.Bump())
		e.state.Cache.InsertIfAbsent(entry.Name, entry.Version, rec)
		e.broadcaster.Broadcast(entry.Name, entry.Version, rec)
	}
	e.cursor += len(p.entries)
}

// handleMeta advances Pending to Fetched, or to FetchMetaFailed on any
// transport/format error (§4.3).
func (e *Engine) handleMeta(d metaDone) {
	e.inFlight = false

	prior, ok := e.state.Cache.Get(d.name, d.v)
	idx := 0
	if ok {
		if p, isPending := prior.(pkgcache.Pending); isPending {
			idx = p.InsertionIndex
		}
	}

	var rec pkgcache.PackageRecord
	if d.err != nil {
		rec = pkgcache.NewFetchMetaFailed(d.v, idx, d.err, e.state.Bump())
	} else {
		rec = pkgcache.NewFetched(idx, d.m, d.docs, e.state.Bump())
	}
	e.state.Cache.UpdateVersionRecord(d.name, d.v, rec)
	e.broadcaster.Broadcast(d.name, d.v, rec)
}

// handleArchiveFetched runs C6 (assemble) and C7 (rule engine) synchronously
// on the run loop now that the archive bytes are in hand. This is the only
// place Review touches e.state.Cache, so the read/write is single-writer by
// construction rather than by locking.
func (e *Engine) handleArchiveFetched(ctx context.Context, a archiveFetched) {
	var outcome pkgcache.ReviewOutcome
	switch {
	case errors.Is(a.err, integrations.ErrNotFound):
		outcome = pkgcache.TagNotFound{}
	case a.err != nil:
		outcome = pkgcache.TransportError{Err: a.err}
	default:
		outcome = Review(e.ruleEngine, a.record.Manifest, a.archive, e.state.Cache)
	}
	observability.Engine().OnAnalyzeComplete(ctx, a.name.String(), a.v.String(), time.Since(a.start), a.err)
	e.handleAnalyze(analyzeDone{name: a.name, v: a.v, outcome: outcome})
}

// handleAnalyze records the review outcome against the Fetched record that
// was being analyzed (§4.6/§4.7 combined dispatch).
func (e *Engine) handleAnalyze(a analyzeDone) {
	e.inFlight = false

	prior, ok := e.state.Cache.Get(a.name, a.v)
	fetched, isFetched := prior.(pkgcache.Fetched)
	if !ok || !isFetched {
		return
	}

	rec := pkgcache.NewFetchedAndChecked(fetched, a.outcome, e.state.Bump())
	e.state.Cache.UpdateVersionRecord(a.name, a.v, rec)
	e.broadcaster.Broadcast(a.name, a.v, rec)
}

// handlePR applies a PR orchestration's terminal outcome (§4.8).
func (e *Engine) handlePR(p prDone) {
	prior, ok := e.state.Cache.Get(p.name, p.v)
	pending, isPending := prior.(pkgcache.PRPending)
	if !ok || !isPending {
		return
	}

	var rec pkgcache.PackageRecord
	if p.err != nil {
		rec = pkgcache.NewPRFailed(pending, string(p.stage), p.err, e.state.Bump())
	} else {
		rec = pkgcache.NewPRSent(pending, p.result.URL, e.state.Bump())
	}
	e.state.Cache.UpdateVersionRecord(p.name, p.v, rec)
	e.broadcaster.Broadcast(p.name, p.v, rec)
}

// handleCommand applies an authenticated operator command (§4.10).
func (e *Engine) handleCommand(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case ResetBackend:
		clients := e.state.Clients
		e.state = NewBackendState(e.state.UpdateIndex())
		e.state.Clients = clients
		e.cursor = e.cursorBaseline
		e.dispatchPoll(ctx)
	case ResetRules:
		e.downgradeAnalyzedToFetched()
	case PullRequestRequest:
		e.startPullRequest(ctx, c.Name)
	case RerunPackageRequest:
		e.rerun(c.Name, c.Version)
	}
}

// downgradeAnalyzedToFetched implements ResetRules (§3 Lifecycles):
// FetchedAndChecked drops back to Fetched so the next scheduler pass
// re-analyzes it, and FetchMetaFailed drops back to Pending so metadata that
// previously failed to fetch is retried. PR states are left untouched.
func (e *Engine) downgradeAnalyzedToFetched() {
	for _, name := range e.state.Cache.Names() {
		for _, v := range e.state.Cache.Versions(name) {
			rec, _ := e.state.Cache.Get(name, v)
			switch r := rec.(type) {
			case pkgcache.FetchedAndChecked:
				fetched := pkgcache.NewFetched(r.InsertionIndex, r.Manifest, r.Docs, e.state.Bump())
				e.state.Cache.UpdateVersionRecord(name, v, fetched)
				e.broadcaster.Broadcast(name, v, fetched)
			case pkgcache.FetchMetaFailed:
				pending := pkgcache.NewPending(r.Version, r.InsertionIndex, e.state.Bump())
				e.state.Cache.UpdateVersionRecord(name, v, pending)
				e.broadcaster.Broadcast(name, v, pending)
			}
		}
	}
}

func (e *Engine) rerun(name manifest.PackageName, v version.Version) {
	rec, ok := e.state.Cache.Get(name, v)
	if !ok {
		return
	}
	var fetched pkgcache.Fetched
	switch r := rec.(type) {
	case pkgcache.Fetched:
		fetched = r
	case pkgcache.FetchedAndChecked:
		fetched = pkgcache.NewFetched(r.InsertionIndex, r.Manifest, r.Docs, e.state.Bump())
	default:
		return
	}
	e.state.Cache.UpdateVersionRecord(name, v, fetched)
	e.broadcaster.Broadcast(name, v, fetched)
}

// startPullRequest transitions a FoundErrors-bearing record to PRPending and
// dispatches the 8-step orchestration sequence (§4.8).
func (e *Engine) startPullRequest(ctx context.Context, name manifest.PackageName) {
	for _, v := range e.state.Cache.Versions(name) {
		rec, _ := e.state.Cache.Get(name, v)
		checked, ok := rec.(pkgcache.FetchedAndChecked)
		if !ok {
			continue
		}
		ruleRun, ok := checked.Outcome.(pkgcache.RuleRun)
		if !ok {
			continue
		}
		found, ok := ruleRun.Result.(pkgcache.FoundErrorsResult)
		if !ok {
			continue
		}

		pending := pkgcache.NewPRPending(checked, found.FoundErrors, e.state.Bump())
		e.state.Cache.UpdateVersionRecord(name, v, pending)
		e.broadcaster.Broadcast(name, v, pending)

		go func(name manifest.PackageName, v version.Version, found pkgcache.FoundErrors) {
			observability.Engine().OnPullRequestStart(ctx, name.String(), v.String())
			start := time.Now()
			result, stage, err := e.orchestrator.OpenPullRequest(ctx, name, v, found, e.enforceGuard)
			observability.Engine().OnPullRequestComplete(ctx, name.String(), v.String(), time.Since(start), err)
			select {
			case e.msgs <- prDone{name: name, v: v, result: result, stage: stage, err: err}:
			case <-ctx.Done():
			}
		}(name, v, found.FoundErrors)
		return
	}
}

// scheduleNext re-enters the work scheduler (C4) after every mutation that
// might change the work frontier, dispatching at most one pipeline stage at
// a time.
func (e *Engine) scheduleNext(ctx context.Context) {
	if e.inFlight {
		return
	}

	switch sel := SelectNext(e.state.Cache).(type) {
	case FetchMetadata:
		e.inFlight = true
		go func() {
			time.Sleep(pacingDelay)
			m, err := e.registry.FetchManifest(ctx, sel.Name, sel.Version)
			if err != nil {
				e.postMeta(ctx, metaDone{name: sel.Name, v: sel.Version, err: err})
				return
			}
			docs, err := e.registry.FetchDocs(ctx, sel.Name, sel.Version)
			if err != nil {
				e.postMeta(ctx, metaDone{name: sel.Name, v: sel.Version, err: err})
				return
			}
			e.postMeta(ctx, metaDone{name: sel.Name, v: sel.Version, m: m, docs: docs})
		}()
	case AnalyzeLatest:
		e.inFlight = true
		go func() {
			time.Sleep(pacingDelay)
			observability.Engine().OnAnalyzeStart(ctx, sel.Name.String(), sel.Version.String())
			start := time.Now()
			archive, err := e.registry.FetchArchive(ctx, sel.Name, sel.Version)
			select {
			case e.msgs <- archiveFetched{name: sel.Name, v: sel.Version, record: sel.Record, archive: archive, start: start, err: err}:
			case <-ctx.Done():
			}
		}()
	case Idle:
	}
}

func (e *Engine) postMeta(ctx context.Context, d metaDone) {
	select {
	case e.msgs <- d:
	case <-ctx.Done():
	}
}
