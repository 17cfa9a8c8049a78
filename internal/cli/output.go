package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/hyena-release/internal/failure"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Unclassified failure
	ExitCommandError = 2 // Configuration error (bad flags, pin files, config)
	ExitPrecondition = 3 // Expected local state is absent (artifact not built, no manifest)
	ExitExternal     = 4 // Build step, network, or release store failed
	ExitIntegrity    = 5 // Hash mismatch or missing ledger entry
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Classified pipeline failures map by kind; anything else is ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitCodeForKind(failure.KindOf(err))
}

func exitCodeForKind(kind failure.Kind) int {
	switch kind {
	case failure.KindConfiguration:
		return ExitCommandError
	case failure.KindPrecondition:
		return ExitPrecondition
	case failure.KindExternal:
		return ExitExternal
	case failure.KindIntegrity:
		return ExitIntegrity
	default:
		return ExitFailure
	}
}

// Styles colors text output. The zero value is unusable; use plainStyles or
// newStyles.
type Styles struct {
	OK    func(...string) string
	Fail  func(...string) string
	Muted func(...string) string
}

func plainStyles() Styles {
	plain := func(s ...string) string { return strings.Join(s, " ") }
	return Styles{OK: plain, Fail: plain, Muted: plain}
}

func newStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		OK:    r.NewStyle().Foreground(lipgloss.Color("#3FB950")).Render,
		Fail:  r.NewStyle().Foreground(lipgloss.Color("#F85149")).Bold(true).Render,
		Muted: r.NewStyle().Foreground(lipgloss.Color("#8B949E")).Render,
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool

	styles *Styles
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // e.g. HASH_MISMATCH
	Kind    string `json:"kind,omitempty"`    // failure category
	Message string `json:"message"`           // human-readable message
	Hint    string `json:"hint,omitempty"`    // recovery step
	Details any    `json:"details,omitempty"` // additional context
}

// Styles returns the text styles. Color is used only when writing to a
// terminal file and NO_COLOR is unset.
func (f *OutputFormatter) Styles() Styles {
	if f.styles == nil {
		s := plainStyles()
		if file, ok := f.Writer.(*os.File); ok && f.Format != "json" && os.Getenv("NO_COLOR") == "" {
			s = newStyles(file)
		}
		f.styles = &s
	}
	return *f.styles
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Failure outputs a classified error, carrying its kind and hint.
func (f *OutputFormatter) Failure(err error) error {
	cliErr := CLIError{Code: "ERROR", Message: err.Error()}
	var fe *failure.Error
	if errors.As(err, &fe) {
		cliErr.Code = fe.Code
		cliErr.Kind = string(fe.Kind)
		cliErr.Message = fe.Message
		if fe.Err != nil {
			cliErr.Message = fmt.Sprintf("%s: %v", fe.Message, fe.Err)
		}
		cliErr.Hint = fe.Hint
		if fe.Expected != "" || fe.Actual != "" {
			cliErr.Details = map[string]string{"expected": fe.Expected, "actual": fe.Actual}
		}
	}
	return f.writeError(cliErr)
}

func (f *OutputFormatter) writeError(e CLIError) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "error", Error: &e})
	}

	st := f.Styles()
	fmt.Fprintf(f.Writer, "%s [%s]: %s\n", st.Fail("✗ Error"), e.Code, e.Message)
	if details, ok := e.Details.(map[string]string); ok && (details["expected"] != "" || details["actual"] != "") {
		fmt.Fprintf(f.Writer, "  expected: %s\n", details["expected"])
		fmt.Fprintf(f.Writer, "  actual:   %s\n", details["actual"])
	} else if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	if e.Hint != "" {
		fmt.Fprintf(f.Writer, "%s %s\n", st.Muted("hint:"), e.Hint)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// fail reports err through the formatter and returns an ExitError whose code
// follows the failure kind.
func fail(f *OutputFormatter, err error) error {
	_ = f.Failure(err)
	code := failure.CodeOf(err)
	if code == "" {
		code = "command failed"
	}
	return WrapExitError(exitCodeForKind(failure.KindOf(err)), code, err)
}
