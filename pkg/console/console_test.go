package console

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/depreview/reviewbot/pkg/engine"
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/version"
)

// fakeEngine satisfies the console.Engine interface with an in-memory
// BackendState and a recorded list of submitted commands, standing in for
// the real *engine.Engine during console tests.
type fakeEngine struct {
	state     *engine.BackendState
	submitted []engine.Command
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{state: engine.NewBackendState(0)}
}

func (f *fakeEngine) Submit(cmd engine.Command) { f.submitted = append(f.submitted, cmd) }
func (f *fakeEngine) RegisterClient(string)     {}
func (f *fakeEngine) UnregisterClient(string)   {}
func (f *fakeEngine) Query(fn engine.SnapshotFunc) any { return fn(f.state) }

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func dialServer(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestLoginWithCorrectSecretYieldsFirstUpdate(t *testing.T) {
	fe := newFakeEngine()
	name := mustConsoleTestName(t, "x/y")
	v := version.MustParseVersion("1.0.0")
	fe.state.Cache.InsertIfAbsent(name, v, pkgcache.NewFetched(0, manifest.Manifest{}, nil, fe.state.Bump()))

	s := NewServer(fe, "correct-secret", []string{"elm/core"}, "", testLogger())
	server := httptest.NewServer(s.Router())
	defer server.Close()

	conn := dialServer(t, server)
	mustWriteEnvelope(t, conn, envelope{Type: "LoginRequest", Payload: mustJSONBytes(t, loginRequestPayload{Password: "correct-secret"})})

	var got envelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Type != "FirstUpdate" {
		t.Fatalf("Type = %q, want FirstUpdate", got.Type)
	}
}

func TestLoginWithWrongSecretIsSilentlyIgnored(t *testing.T) {
	fe := newFakeEngine()
	s := NewServer(fe, "correct-secret", nil, "", testLogger())
	server := httptest.NewServer(s.Router())
	defer server.Close()

	conn := dialServer(t, server)
	mustWriteEnvelope(t, conn, envelope{Type: "LoginRequest", Payload: mustJSONBytes(t, loginRequestPayload{Password: "wrong"})})

	// A follow-up command from the still-unauthenticated session must be a
	// no-op: nothing reaches Submit.
	mustWriteEnvelope(t, conn, envelope{Type: "ResetBackend"})
	time.Sleep(50 * time.Millisecond)
	if len(fe.submitted) != 0 {
		t.Errorf("Submit called %d times for an unauthenticated session, want 0", len(fe.submitted))
	}
}

func TestAuthenticatedCommandReachesEngine(t *testing.T) {
	fe := newFakeEngine()
	s := NewServer(fe, "correct-secret", nil, "", testLogger())
	server := httptest.NewServer(s.Router())
	defer server.Close()

	conn := dialServer(t, server)
	mustWriteEnvelope(t, conn, envelope{Type: "LoginRequest", Payload: mustJSONBytes(t, loginRequestPayload{Password: "correct-secret"})})

	var first envelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	mustWriteEnvelope(t, conn, envelope{Type: "ResetRules"})
	time.Sleep(50 * time.Millisecond)

	if len(fe.submitted) != 1 {
		t.Fatalf("Submit called %d times, want 1", len(fe.submitted))
	}
	if _, ok := fe.submitted[0].(engine.ResetRules); !ok {
		t.Errorf("submitted = %T, want ResetRules", fe.submitted[0])
	}
}

func TestProjectRecordDropsPending(t *testing.T) {
	_, ok := projectRecord("1.0.0", pkgcache.NewPending(version.MustParseVersion("1.0.0"), 0, 1))
	if ok {
		t.Error("Pending records must not be projected")
	}
}

func TestProjectRecordSummarizesFoundErrors(t *testing.T) {
	checked := pkgcache.NewFetchedAndChecked(
		pkgcache.NewFetched(0, manifest.Manifest{}, nil, 1),
		pkgcache.RuleRun{Result: pkgcache.FoundErrorsResult{FoundErrors: pkgcache.FoundErrors{
			Errors: []pkgcache.Diagnostic{{Message: "unused"}},
		}}},
		2,
	)
	proj, ok := projectRecord("1.0.0", checked)
	if !ok {
		t.Fatal("FetchedAndChecked should be projected")
	}
	if proj.Status != "checked:foundErrors" {
		t.Errorf("Status = %q", proj.Status)
	}
}

func mustConsoleTestName(t *testing.T, s string) manifest.PackageName {
	t.Helper()
	n, err := manifest.ParsePackageName(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	env, err := encodeEnvelope("", v)
	if err != nil {
		t.Fatal(err)
	}
	return env.Payload
}

func mustWriteEnvelope(t *testing.T, conn *websocket.Conn, env envelope) {
	t.Helper()
	if err := conn.WriteJSON(env); err != nil {
		t.Fatal(err)
	}
}
