package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/docstore/internal/catalog"
	"github.com/roach88/docstore/internal/mapping"
	"github.com/roach88/docstore/internal/schema"
	"github.com/roach88/docstore/internal/session"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The store rejected the operation or the document was not found
	ExitCommandError = 2 // Bad invocation: config, catalog, unknown type, unreadable input
)

// Error codes reported in error envelopes.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeConfig       = "E002" // Config file missing or invalid
	ErrCodeCatalog      = "E003" // CUE catalog failed to compile
	ErrCodeOpenFailed   = "E004" // Database could not be opened
	ErrCodeNotFound     = "E005" // No document with that id
	ErrCodeUnregistered = "E006" // Document type not declared
	ErrCodeWriteFailed  = "E007" // Output file write error
	ErrCodeInvalidInput = "E008" // Malformed document, id, or condition
	ErrCodeExecution    = "E009" // Statement failed; changes rolled back
	ErrCodeIdentity     = "E010" // Document has no usable identity
)

// ExitError carries a process exit code alongside the error.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
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

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps a docstore error to its envelope code and exit code.
func classify(err error) (string, int) {
	var (
		exitErr    *ExitError
		compileErr *catalog.CompileError
		applyErr   *schema.ApplyError
		inputErr   *invalidInput
	)
	switch {
	case errors.Is(err, errNotFound):
		return ErrCodeNotFound, ExitFailure
	case errors.As(err, &inputErr):
		return ErrCodeInvalidInput, ExitCommandError
	case mapping.IsUnregistered(err):
		return ErrCodeUnregistered, ExitCommandError
	case mapping.IsIdentityMissing(err):
		return ErrCodeIdentity, ExitFailure
	case errors.As(err, &compileErr):
		return ErrCodeCatalog, ExitCommandError
	case errors.As(err, &applyErr), session.IsExecution(err):
		return ErrCodeExecution, ExitFailure
	case session.IsSerialization(err):
		return ErrCodeInvalidInput, ExitFailure
	case errors.As(err, &exitErr):
		return ErrCodeGeneric, exitErr.Code
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope for every command result.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs data. In text mode, text is printed instead when given.
func (f *OutputFormatter) Success(data any, text string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if text == "" {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Error outputs an error envelope in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
func (f *OutputFormatter) Fail(err error) error {
	code, exit := classify(err)
	return f.FailWith(code, exit, err)
}

// FailWith reports err under an explicit code.
func (f *OutputFormatter) FailWith(code string, exit int, err error) error {
	var details any
	var execErr *session.ExecutionError
	if errors.As(err, &execErr) && execErr.SQL != "" {
		details = map[string]string{"sql": execErr.SQL}
	}
	if outErr := f.Error(code, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, code, err)
}

// Documents prints raw documents: one indented JSON object per document
// in text mode, an array of bodies in JSON mode.
func (f *OutputFormatter) Documents(docs []*mapping.Raw) error {
	bodies := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		bodies = append(bodies, d.Body)
	}
	if f.Format == "json" {
		return f.Success(bodies, "")
	}
	for _, body := range bodies {
		out, err := json.MarshalIndent(body, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(f.Writer, string(out))
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
