package console

import (
	"testing"

	"github.com/depreview/reviewbot/pkg/engine"
)

func TestDecodeCommandResetBackend(t *testing.T) {
	cmd, _, isLogin, err := decodeCommand(envelope{Type: "ResetBackend"})
	if err != nil {
		t.Fatalf("decodeCommand() error = %v", err)
	}
	if isLogin {
		t.Fatal("ResetBackend should not be treated as a login")
	}
	if _, ok := cmd.(engine.ResetBackend); !ok {
		t.Errorf("cmd = %T, want ResetBackend", cmd)
	}
}

func TestDecodeCommandLogin(t *testing.T) {
	_, password, isLogin, err := decodeCommand(envelope{
		Type:    "LoginRequest",
		Payload: mustJSONBytes(t, loginRequestPayload{Password: "hunter2"}),
	})
	if err != nil {
		t.Fatalf("decodeCommand() error = %v", err)
	}
	if !isLogin {
		t.Fatal("LoginRequest should be reported as a login")
	}
	if password != "hunter2" {
		t.Errorf("password = %q", password)
	}
}

func TestDecodeCommandPullRequestRequest(t *testing.T) {
	cmd, _, _, err := decodeCommand(envelope{
		Type:    "PullRequestRequest",
		Payload: mustJSONBytes(t, pullRequestRequestPayload{Name: "x/y"}),
	})
	if err != nil {
		t.Fatalf("decodeCommand() error = %v", err)
	}
	pr, ok := cmd.(engine.PullRequestRequest)
	if !ok {
		t.Fatalf("cmd = %T, want PullRequestRequest", cmd)
	}
	if pr.Name.String() != "x/y" {
		t.Errorf("Name = %v", pr.Name)
	}
}

func TestDecodeCommandRerunPackageRequest(t *testing.T) {
	cmd, _, _, err := decodeCommand(envelope{
		Type:    "RerunPackageRequest",
		Payload: mustJSONBytes(t, rerunPackageRequestPayload{Name: "x/y", Version: "1.2.3"}),
	})
	if err != nil {
		t.Fatalf("decodeCommand() error = %v", err)
	}
	rr, ok := cmd.(engine.RerunPackageRequest)
	if !ok {
		t.Fatalf("cmd = %T, want RerunPackageRequest", cmd)
	}
	if rr.Version.String() != "1.2.3" {
		t.Errorf("Version = %v", rr.Version)
	}
}

func TestDecodeCommandUnknownType(t *testing.T) {
	if _, _, _, err := decodeCommand(envelope{Type: "DoSomethingUnknown"}); err == nil {
		t.Fatal("decodeCommand() should reject an unknown verb")
	}
}

func mustJSONBytes(t *testing.T, v any) []byte {
	t.Helper()
	env, err := encodeEnvelope("", v)
	if err != nil {
		t.Fatal(err)
	}
	return env.Payload
}
