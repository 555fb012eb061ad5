package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"ecocivic/api/internal/apperr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation was rejected (not signed in, not found, ...)
	ExitCommandError = 2 // Command error (bad flags, storage unreachable, ...)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Domain rejections exit
// with ExitFailure; anything else unrecognised is a command error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return ExitFailure
	}
	return ExitCommandError
}

// OutputFormatter writes command results as text, JSON or YAML.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the envelope for json and yaml output.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data; text output is delegated to render.
func (f *OutputFormatter) Success(data any, render func(w io.Writer)) error {
	switch f.Format {
	case "json":
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	case "yaml":
		return f.writeYAML(CLIResponse{Status: "ok", Data: data})
	}
	render(f.Writer)
	return nil
}

// Error writes a failure in the configured format. Text output is left to
// the caller, which prints to stderr.
func (f *OutputFormatter) Error(err error) error {
	resp := CLIResponse{Status: "error", Error: &CLIError{Code: "SERVER_ERROR", Message: err.Error()}}
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		resp.Error = &CLIError{Code: domainErr.Code, Message: domainErr.Message, Details: domainErr.Details}
	}
	switch f.Format {
	case "json":
		return json.NewEncoder(f.Writer).Encode(resp)
	case "yaml":
		return f.writeYAML(resp)
	}
	return nil
}

// writeYAML goes through JSON first so keys keep their camelCase names.
func (f *OutputFormatter) writeYAML(resp CLIResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	encoder := yaml.NewEncoder(f.Writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return err
	}
	return encoder.Close()
}

// label turns an enum identifier such as "garbageOverflow" into
// "Garbage Overflow".
func label(value string) string {
	var words strings.Builder
	for i, r := range value {
		if i > 0 && unicode.IsUpper(r) {
			words.WriteByte(' ')
		}
		words.WriteRune(r)
	}
	return cases.Title(language.English).String(words.String())
}
