package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// ErrorResponse represents the standardized error envelope of the quiz API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *StatusError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api status %d (%s): %s [field %s]", e.Status, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("api status %d (%s): %s", e.Status, e.Code, e.Message)
}

// FromResponse builds a StatusError from a failed response. The body is
// consumed but not closed.
func FromResponse(resp *http.Response) *StatusError {
	out := &StatusError{Status: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil && (envelope.Error != "" || envelope.Message != "") {
		out.Code = envelope.Error
		out.Message = envelope.Message
		out.Field = envelope.Field
	}

	if out.Code == "" {
		out.Code = codeForStatus(resp.StatusCode)
	}
	if out.Message == "" {
		out.Message = strings.TrimSpace(string(body))
	}
	if out.Message == "" {
		out.Message = http.StatusText(resp.StatusCode)
	}
	return out
}

// WriteError writes an envelope. Used by the local status server.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
	})
}
