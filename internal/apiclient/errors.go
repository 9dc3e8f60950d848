package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned for any non-2xx response from the backend.
type APIError struct {
	Method  string
	URL     string
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api error (%d) %s %s: %s", e.Status, e.Method, e.URL, msg)
}

// IsAuthRejection reports whether the backend rejected the credential (401 or 419).
func (e *APIError) IsAuthRejection() bool {
	return IsAuthStatus(e.Status)
}

// IsAuthStatus reports whether status signals an invalid or expired session.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == StatusSessionExpired
}

// StatusSessionExpired is the non-standard 419 the backend uses for expired sessions.
const StatusSessionExpired = 419

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func newAPIError(req *http.Request, status int, body []byte) *APIError {
	return &APIError{
		Method:  req.Method,
		URL:     req.URL.String(),
		Status:  status,
		Message: extractMessage(body),
		Body:    body,
	}
}

// extractMessage prefers a JSON {"message": ...} body and falls back to plain text.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		return strings.TrimSpace(payload.Message)
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "<") {
		return ""
	}
	return trimmed
}
