package jsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingKey  = errors.New("jsearch: missing API key")
	ErrJobNotFound = errors.New("jsearch: job not found")
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("request failed with status code %d", e.StatusCode)
	if detail := apiMessage(e.Body); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// IsRateLimited reports whether err carries an HTTP 429 anywhere in its chain.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a
// StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// apiMessage pulls the "message" field RapidAPI puts in error bodies.
func apiMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" || body[0] != '{' {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}
