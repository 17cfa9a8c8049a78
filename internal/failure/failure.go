// Package failure classifies pipeline errors.
//
// Every error surfaced by the release pipeline is fatal to the current
// invocation. The Kind tells the caller which committed state, precondition,
// or collaborator is at fault so the CLI can pick an exit code and message.
package failure

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure.
type Kind string

const (
	// KindConfiguration covers missing or malformed committed data (pin files,
	// config, revision). The user must fix committed state.
	KindConfiguration Kind = "configuration"

	// KindPrecondition covers expected local state that is absent, such as an
	// artifact that was never built.
	KindPrecondition Kind = "precondition"

	// KindExternal covers collaborator failures: the build step, the network,
	// the remote release store.
	KindExternal Kind = "external"

	// KindIntegrity covers hash mismatches and missing ledger entries.
	KindIntegrity Kind = "integrity"
)

// Error codes shared across packages.
const (
	CodeNoRevision      = "NO_REVISION"
	CodeInvalidDate     = "INVALID_DATE"
	CodeInvalidIdentity = "INVALID_CHECKPOINT_ID"
	CodePinMissing      = "PIN_MISSING"
	CodePinMalformed    = "PIN_MALFORMED"
	CodeLedgerMalformed = "LEDGER_MALFORMED"
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeBuildFailed     = "BUILD_FAILED"
	CodeBuildOutput     = "BUILD_OUTPUT_MISSING"
	CodeArtifactMissing = "ARTIFACT_MISSING"
	CodeManifestMissing = "MANIFEST_MISSING"
	CodeManifestInvalid = "MANIFEST_INVALID"
	CodeRemoteNotFound  = "REMOTE_NOT_FOUND"
	CodeRemoteFetch     = "REMOTE_FETCH_FAILED"
	CodeLedgerEntry     = "LEDGER_ENTRY_MISSING"
	CodeHashMismatch    = "HASH_MISMATCH"
	CodeLedgerDisagrees = "LEDGER_MANIFEST_MISMATCH"
	CodeInstallIO       = "INSTALL_IO"
	CodeHistory         = "HISTORY_UNAVAILABLE"
)

// Error is a classified pipeline failure.
type Error struct {
	// Kind is the failure category.
	Kind Kind

	// Code is a stable machine-readable identifier (e.g. HASH_MISMATCH).
	Code string

	// Message is a human-readable description naming the failing precondition.
	Message string

	// Hint tells the user how to recover, if there is an obvious step.
	Hint string

	// Expected and Actual carry the compared values for integrity failures.
	Expected string
	Actual   string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Expected != "" || e.Actual != "" {
		msg = fmt.Sprintf("%s (expected %s, got %s)", msg, e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without an underlying cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap classifies an existing error. Returns nil if cause is nil.
func Wrap(cause error, kind Kind, code, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

// WithHint returns e with its recovery hint set.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Mismatch creates an integrity error carrying expected vs actual values.
func Mismatch(code, message, expected, actual string) *Error {
	return &Error{
		Kind:     KindIntegrity,
		Code:     code,
		Message:  message,
		Expected: expected,
		Actual:   actual,
	}
}

// KindOf returns the Kind of a classified error, or "" if err is unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// CodeOf returns the Code of a classified error, or "" if err is unclassified.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// HintOf returns the recovery hint of a classified error, if any.
func HintOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Hint
	}
	return ""
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsPrecondition reports whether err is a precondition failure.
func IsPrecondition(err error) bool { return KindOf(err) == KindPrecondition }

// IsExternal reports whether err is an external-dependency failure.
func IsExternal(err error) bool { return KindOf(err) == KindExternal }

// IsIntegrity reports whether err is an integrity failure.
func IsIntegrity(err error) bool { return KindOf(err) == KindIntegrity }
