package api

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
)

// Metrics counts HTTP traffic and live sessions.
type Metrics struct {
	requests atomic.Uint64
	errors   atomic.Uint64
	sessions atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() (requests, errors uint64, sessions int64) {
	return m.requests.Load(), m.errors.Load(), m.sessions.Load()
}

// Middleware counts every request and every 5xx response.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status >= 500 {
			m.errors.Add(1)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	requests, errs, sessions := s.metrics.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	counter := func(name, help string, v any) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %v\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v any) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, help, name, name, v)
	}

	counter("jobsearch_http_requests_total", "Total number of HTTP requests.", requests)
	counter("jobsearch_http_errors_total", "Total number of 5xx HTTP responses.", errs)
	gauge("jobsearch_ws_sessions", "Open live search sessions.", sessions)

	if s.exec == nil {
		return
	}
	st := s.exec.Stats()
	counter("jobsearch_cache_hits_total", "Searches answered from a fresh cached result.", st.Hits)
	counter("jobsearch_cache_misses_total", "Searches that started a fetch.", st.Misses)
	counter("jobsearch_cache_joins_total", "Searches that joined an in-flight fetch.", st.Joins)
	counter("jobsearch_cache_store_hits_total", "Fetches answered by the shared store.", st.StoreHits)
	counter("jobsearch_upstream_requests_total", "Requests sent to the job search API.", st.NetworkCalls)
	counter("jobsearch_upstream_retries_total", "Retried upstream requests.", st.Retries)
	counter("jobsearch_upstream_failures_total", "Fetches that ended in failure.", st.Failures)
	gauge("jobsearch_cache_entries", "Entries currently held by the cache.", st.Entries)
}
