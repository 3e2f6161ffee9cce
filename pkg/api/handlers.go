package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rubiojr/jobsearch/pkg/jobs"
	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/storage"
	"github.com/rubiojr/jobsearch/pkg/version"
)

const maxBodyBytes = 1 << 20

// buildParams applies the server defaults to client supplied values.
func buildParams(msg searchMessage, settings Settings, profile *storage.Profile) (jobs.Params, error) {
	if msg.Page < 0 {
		return jobs.Params{}, fmt.Errorf("page must be positive")
	}
	if msg.NumPages < 0 {
		return jobs.Params{}, fmt.Errorf("num_pages must be positive")
	}
	datePosted := settings.DatePosted
	if msg.DatePosted != "" {
		d, err := jsearch.ParseDatePosted(msg.DatePosted)
		if err != nil {
			return jobs.Params{}, err
		}
		datePosted = d
	}
	numPages := msg.NumPages
	if numPages == 0 {
		numPages = settings.NumPages
	}
	country := msg.Country
	if country == "" {
		country = settings.Country
	}
	return jobs.Params{
		Query:      msg.Query,
		Page:       msg.Page,
		NumPages:   numPages,
		Country:    country,
		DatePosted: datePosted,
		Profile:    profile,
	}, nil
}

func parseSearchMessage(values url.Values) (searchMessage, error) {
	msg := searchMessage{
		Query:      values.Get("query"),
		Country:    values.Get("country"),
		DatePosted: values.Get("date_posted"),
	}
	for name, dst := range map[string]*int{"page": &msg.Page, "num_pages": &msg.NumPages} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return msg, fmt.Errorf("%s must be a positive integer", name)
		}
		*dst = n
	}
	return msg, nil
}

func (s *Server) readProfile(r *http.Request) *storage.Profile {
	if s.store == nil {
		return nil
	}
	p, err := s.store.Profile.Read(r.Context())
	if err != nil {
		s.logger.Warnf("reading profile: %v", err)
		return nil
	}
	return p
}

// HandleSearch resolves one search through the shared cache. Fetch failures
// are reported inside the result body, not as HTTP errors.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	msg, err := parseSearchMessage(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameter", err.Error())
		return
	}
	settings := s.Settings()
	params, err := buildParams(msg, settings, s.readProfile(r))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameter", err.Error())
		return
	}

	result := jobs.FetchOnce(r.Context(), s.exec, s.source, params, settings.Fallback)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) HandleJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Job id is required")
		return
	}
	country := r.URL.Query().Get("country")
	if country == "" {
		country = s.Settings().Country
	}

	job, err := s.source.JobDetails(r.Context(), id, country)
	switch {
	case errors.Is(err, jsearch.ErrJobNotFound):
		s.writeError(w, http.StatusNotFound, "Job not found", fmt.Sprintf("Job '%s' does not exist", id))
		return
	case jsearch.IsRateLimited(err):
		s.writeError(w, http.StatusTooManyRequests, "Rate limited", jobs.RateLimitedMessage)
		return
	case err != nil:
		s.writeError(w, http.StatusBadGateway, "Failed to fetch job", err.Error())
		return
	}

	liked := false
	if s.store != nil {
		if liked, err = s.store.Liked.IsLiked(r.Context(), job.JobID); err != nil {
			s.logger.Warnf("checking liked state of %s: %v", job.JobID, err)
		}
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: *job, Liked: liked})
}

func (s *Server) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Profile.Read(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read profile", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ProfileResponse{Profile: p})
}

func (s *Server) HandlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p storage.Profile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}

	saved, err := s.store.Profile.Save(r.Context(), p)
	if err != nil {
		var fe *storage.FieldError
		if errors.As(err, &fe) {
			s.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "Invalid profile",
				Message: fe.Message,
				Field:   fe.Field,
			})
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to save profile", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ProfileResponse{Profile: saved})
}

func (s *Server) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Profile.Delete(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to delete profile", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleListLiked(w http.ResponseWriter, r *http.Request) {
	liked, err := s.store.Liked.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list liked jobs", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ListLikedResponse{Jobs: liked, Count: len(liked)})
}

// HandleToggleLiked takes a full listing so it can be shown later without
// another API call.
func (s *Server) HandleToggleLiked(w http.ResponseWriter, r *http.Request) {
	var job jsearch.Job
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&job); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}

	liked, err := s.store.Liked.Toggle(r.Context(), job)
	if errors.Is(err, storage.ErrMissingJobID) {
		s.writeError(w, http.StatusBadRequest, "Invalid job", err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to toggle like", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ToggleLikedResponse{JobID: job.JobID, Liked: liked})
}

func (s *Server) HandleRemoveLiked(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := s.store.Liked.Remove(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to remove like", err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "Job not liked", fmt.Sprintf("Job '%s' is not in the liked list", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	})
}
