package reviewerr

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeInvalidVersion, "bad version: %s", "1.x")

	if err.Code != CodeInvalidVersion {
		t.Errorf("Code = %v, want %v", err.Code, CodeInvalidVersion)
	}
	if err.Message != "bad version: 1.x" {
		t.Errorf("Message = %v, want %v", err.Message, "bad version: 1.x")
	}

	want := "INVALID_VERSION: bad version: 1.x"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeNetwork, cause, "fetch failed")

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(CodeTimeout, "x"), CodeTimeout, true},
		{"non-matching code", New(CodeTimeout, "x"), CodeNetwork, false},
		{"wrapped error", Wrap(CodePRFailed, New(CodeTimeout, "inner"), "outer"), CodePRFailed, true},
		{"plain error", errors.New("plain"), CodeTimeout, false},
		{"nil error", nil, CodeTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(CodeForkFailed, "x")); got != CodeForkFailed {
		t.Errorf("GetCode() = %v, want %v", got, CodeForkFailed)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(CodeNotFound, "package missing")); got != "package missing" {
		t.Errorf("UserMessage() = %v, want %v", got, "package missing")
	}
	if got := UserMessage(errors.New("plain error")); got != "plain error" {
		t.Errorf("UserMessage() = %v, want %v", got, "plain error")
	}
}
