package api

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	gz := func(h http.HandlerFunc) http.Handler {
		return gzhttp.GzipHandler(h)
	}

	mux.Handle("GET /api/search", gz(s.HandleSearch))
	mux.Handle("GET /api/jobs/{id}", gz(s.HandleJob))
	mux.Handle("GET /api/profile", gz(s.HandleGetProfile))
	mux.Handle("PUT /api/profile", gz(s.HandlePutProfile))
	mux.Handle("DELETE /api/profile", gz(s.HandleDeleteProfile))
	mux.Handle("GET /api/liked", gz(s.HandleListLiked))
	mux.Handle("POST /api/liked", gz(s.HandleToggleLiked))
	mux.Handle("DELETE /api/liked/{id}", gz(s.HandleRemoveLiked))

	// Hijacked connection, must not be wrapped by the gzip writer.
	mux.HandleFunc("GET /api/search/ws", s.HandleSearchWS)

	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /metrics", s.HandleMetrics)
}
