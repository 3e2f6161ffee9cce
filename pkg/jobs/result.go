package jobs

import (
	"errors"
	"strings"
	"time"

	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/reqcache"
)

const (
	RateLimitedMessage = "Too many requests. Please try again later."
	GenericMessage     = "An error occurred while fetching jobs."
)

// Result is what consumers observe for the current stable query.
type Result struct {
	Jobs      []jsearch.Job `json:"jobs"`
	TotalJobs int           `json:"totalJobs"`
	IsLoading bool          `json:"isLoading"`
	IsError   bool          `json:"isError"`
	// Error is empty unless IsError is set; it encodes as null when empty.
	Error     *string   `json:"error"`
	Query     string    `json:"query"`
	Key       string    `json:"key,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Phase is the view a presentation layer should render for a Result.
type Phase string

const (
	PhaseNoQuery Phase = "no_query"
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
	PhaseEmpty   Phase = "empty"
	PhaseResults Phase = "results"
)

func (r Result) Phase() Phase {
	switch {
	case r.IsLoading:
		return PhaseLoading
	case r.IsError:
		return PhaseError
	case r.Key == "":
		return PhaseNoQuery
	case len(r.Jobs) == 0:
		return PhaseEmpty
	default:
		return PhaseResults
	}
}

// ErrorText returns the error message or "".
func (r Result) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// IdleResult is the state for a query that is not worth fetching.
func IdleResult(q string) Result {
	return Result{Jobs: []jsearch.Job{}, Query: q}
}

// Classify maps an executor entry to the public result.
func Classify(q string, e reqcache.Entry[*jsearch.SearchResponse]) Result {
	r := Result{
		Jobs:      []jsearch.Job{},
		Query:     q,
		Key:       e.Key,
		UpdatedAt: e.UpdatedAt,
	}
	switch e.State {
	case reqcache.Loading:
		r.IsLoading = true
	case reqcache.Success:
		if e.Value != nil {
			if e.Value.Data != nil {
				r.Jobs = e.Value.Data
			}
			r.TotalJobs = e.Value.TotalJobs
		}
	case reqcache.Failure:
		msg := ErrorMessage(e.Err)
		r.IsError = true
		r.Error = &msg
	}
	return r
}

// ErrorMessage is the user facing text for a failed fetch.
func ErrorMessage(err error) string {
	if err == nil {
		return GenericMessage
	}
	if jsearch.IsRateLimited(err) {
		return RateLimitedMessage
	}
	var se *jsearch.StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return GenericMessage
}

// sameState reports whether publishing b after a would change nothing.
func sameState(a, b Result) bool {
	return a.Key == b.Key &&
		a.Query == b.Query &&
		a.IsLoading == b.IsLoading &&
		a.IsError == b.IsError &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}
