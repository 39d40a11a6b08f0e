// Package response provides helpers for writing consistent HTTP responses.
//
// Pages are rendered by the views package; everything else a handler can
// answer with (redirects, plain-text errors, the JSON health check) goes
// through here so the shapes stay the same across handlers.
package response

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON envelope of the health endpoint.
//
//	{ "status": "error", "error": "server selection timeout" }
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Status string constants.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into our standard Response shape.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// Error writes a plain-text error page. Internal errors never reach the
// client; log them before calling this.
func Error(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

// ErrorMessage is Error with a caller-chosen message.
func ErrorMessage(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

// Redirect answers with 302 Found, the status a browser follows with GET
// after a form POST.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusFound)
}
