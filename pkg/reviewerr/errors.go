// Package reviewerr provides structured error types for the review pipeline.
//
// Errors are grouped along the taxonomy the pipeline cares about: transport
// failures talking to the registry or hosting platform, format failures
// parsing registry payloads, and orchestration failures during the
// fork/commit/PR sequence. Analysis outcomes (parsing errors, fix failures,
// ineligible packages, ...) are not wrapped here — they are first-class
// RunResult variants, broadcast to operators as domain data rather than
// logged as errors.
//
//	err := reviewerr.New(reviewerr.CodeNotFound, "package %s not found", name)
//	if reviewerr.Is(err, reviewerr.CodeNotFound) {
//	    // ...
//	}
package reviewerr

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error category.
type Code string

const (
	// Transport errors (registry or hosting platform).
	CodeNetwork  Code = "NETWORK_ERROR"
	CodeTimeout  Code = "TIMEOUT"
	CodeNotFound Code = "NOT_FOUND"

	// Format errors.
	CodeMalformedJSON       Code = "MALFORMED_JSON"
	CodeInvalidVersion      Code = "INVALID_VERSION"
	CodeApplicationManifest Code = "APPLICATION_MANIFEST"

	// Orchestration errors (the PR sequence in C8).
	CodeForkFailed      Code = "FORK_FAILED"
	CodeTreeFailed      Code = "TREE_FAILED"
	CodeCommitFailed    Code = "COMMIT_FAILED"
	CodeRefUpdateFailed Code = "REF_UPDATE_FAILED"
	CodePRFailed        Code = "PR_FAILED"

	// Startup/configuration errors. The only fatal condition.
	CodeConfig Code = "CONFIG_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err has the given error code, unwrapping the chain.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from err, or "" if err is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a message suitable for display on the operator
// console, stripping the machine-readable code prefix for *Error values.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// StageLabel identifies which step of the PR orchestration sequence (§4.8)
// failed, carried alongside the transport error on a PRFailed record.
type StageLabel string

const (
	StageRepoLookup   StageLabel = "repoLookup"
	StageFork         StageLabel = "fork"
	StageReadHead     StageLabel = "readHead"
	StageReadTree     StageLabel = "readTree"
	StageCreateTree   StageLabel = "createTree"
	StageCreateCommit StageLabel = "createCommit"
	StageUpdateBranch StageLabel = "updateBranch"
	StageOpenPR       StageLabel = "openPR"
)
