package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoGame is returned by game operations before the session knows its game.
var ErrNoGame = errors.New("no active game")

// APIError is a failed call to the remote API. Message is fit to show a user.
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func newAPIError(op string, status int, body []byte) *APIError {
	e := &APIError{Op: op, Status: status}
	var eb struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		e.Message = eb.Message
		return e
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		e.Message = text
		return e
	}
	e.Message = http.StatusText(status)
	return e
}

// Message extracts the user-facing text from err.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
