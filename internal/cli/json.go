package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/ui"
)

// Global JSON output flag
var jsonOutput bool

// Response is the standard JSON envelope for all CLI output.
type Response struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
	Meta  *Meta      `json:"meta,omitempty"`
}

// ErrorInfo contains structured error information.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Meta contains metadata about the response.
type Meta struct {
	Count          int   `json:"count,omitempty"`
	TotalAvailable int   `json:"total_available,omitempty"`
	StartIndex     int   `json:"start_index,omitempty"`
	HasMore        bool  `json:"has_more,omitempty"`
	QueryTimeMs    int64 `json:"query_time_ms,omitempty"`
}

// outputJSON writes the response as JSON to the command output.
func outputJSON(resp Response) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

// outputSuccess outputs a successful JSON response.
func outputSuccess(data any, meta *Meta) {
	outputJSON(Response{
		OK:   true,
		Data: data,
		Meta: meta,
	})
}

// reportedError marks an error already written as a JSON envelope, so the
// process exits non-zero without printing it twice.
type reportedError struct{ cause error }

func (e *reportedError) Error() string { return e.cause.Error() }
func (e *reportedError) Unwrap() error { return e.cause }

// handleError reports err in the selected output mode. In JSON mode the
// envelope carries the code and any hints attached to the error.
func handleError(code string, err error) error {
	if err == nil {
		return nil
	}
	if jsonOutput {
		outputJSON(Response{
			OK: false,
			Error: &ErrorInfo{
				Code:       code,
				Message:    err.Error(),
				Suggestion: strings.Join(errors.GetAllHints(err), "\n"),
			},
		})
		return &reportedError{cause: err}
	}
	return err
}

// printError writes a text-mode error with its hints.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, ui.Error(err.Error()))
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintln(w, ui.Hint("  "+hint))
	}
}
