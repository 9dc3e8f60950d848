package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"consola.app/internal/apiclient"
	"consola.app/internal/notify"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // session or access failure
	ExitCommandError = 2 // bad input or configuration
)

// ExitError carries the process exit code for a failed command.
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

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error. Plain errors map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// printer writes command results as text or JSON.
type printer struct {
	format string
	w      io.Writer
}

type response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (p printer) ok(data any, text string) error {
	if p.format == "json" {
		return json.NewEncoder(p.w).Encode(response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(p.w, text)
	return err
}

func (p printer) fail(err error, text string) error {
	if p.format == "json" {
		if encErr := json.NewEncoder(p.w).Encode(response{Status: "error", Error: text}); encErr != nil {
			return encErr
		}
	}
	return &ExitError{Code: ExitFailure, Message: text, Err: err}
}

// apiFailure renders an API error the way the console's toast would.
func apiFailure(err error) notify.Notification {
	if ae, ok := apiclient.AsAPIError(err); ok {
		return notify.ForStatus(ae.Status, ae.Message)
	}
	return notify.ForStatus(0, err.Error())
}
