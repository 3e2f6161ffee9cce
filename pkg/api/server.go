package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/jobsearch/pkg/jobs"
	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/log"
	"github.com/rubiojr/jobsearch/pkg/storage"
)

// JobSource is the outbound API as seen by the server.
type JobSource interface {
	jobs.Searcher
	JobDetails(ctx context.Context, jobID, country string) (*jsearch.Job, error)
}

// Settings are the search defaults. They can be swapped at runtime when the
// configuration file changes.
type Settings struct {
	Fallback   string
	Debounce   time.Duration
	Country    string
	DatePosted jsearch.DatePosted
	NumPages   int
}

type Options struct {
	Executor *jobs.Executor
	Source   JobSource
	Store    *storage.Store
	Settings Settings
}

type Server struct {
	exec     *jobs.Executor
	source   JobSource
	store    *storage.Store
	metrics  *Metrics
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	settings Settings
}

func NewServer(opts Options) *Server {
	return &Server{
		exec:     opts.Executor,
		source:   opts.Source,
		store:    opts.Store,
		settings: opts.Settings,
		metrics:  NewMetrics(),
		logger:   log.ForService("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the full middleware stack around the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return CorsMiddleware(s.metrics.Middleware(mux))
}

func (s *Server) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings applies to new requests and new WebSocket sessions.
func (s *Server) UpdateSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.logger.Infof("search settings updated (fallback %q, debounce %s)", settings.Fallback, settings.Debounce)
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
