package api

import (
	"time"

	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/storage"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type JobResponse struct {
	Job   jsearch.Job `json:"job"`
	Liked bool        `json:"liked"`
}

type ProfileResponse struct {
	Profile *storage.Profile `json:"profile"`
}

type ListLikedResponse struct {
	Jobs  []storage.LikedJob `json:"jobs"`
	Count int                `json:"count"`
}

type ToggleLikedResponse struct {
	JobID string `json:"job_id"`
	Liked bool   `json:"liked"`
}

// searchMessage is what a WebSocket client sends for every input change.
type searchMessage struct {
	Query      string `json:"query"`
	Page       int    `json:"page"`
	NumPages   int    `json:"num_pages"`
	Country    string `json:"country"`
	DatePosted string `json:"date_posted"`
}
