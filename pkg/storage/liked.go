package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rubiojr/jobsearch/pkg/jsearch"
)

var ErrMissingJobID = errors.New("job has no job_id")

// LikedJob is a stored listing plus the time it was liked.
type LikedJob struct {
	jsearch.Job
	LikedAt time.Time `json:"liked_at"`
}

// LikedStore keeps liked listings keyed by job_id.
type LikedStore struct {
	db  *sql.DB
	now func() time.Time
}

// List returns liked jobs, most recent first.
func (s *LikedStore) List(ctx context.Context) ([]LikedJob, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data, liked_at FROM liked_jobs ORDER BY liked_at DESC, job_id")
	if err != nil {
		return nil, fmt.Errorf("listing liked jobs: %w", err)
	}
	defer rows.Close()

	jobs := []LikedJob{}
	for rows.Next() {
		var data, likedAt string
		if err := rows.Scan(&data, &likedAt); err != nil {
			return nil, fmt.Errorf("scanning liked job: %w", err)
		}
		var lj LikedJob
		if err := json.Unmarshal([]byte(data), &lj.Job); err != nil {
			return nil, fmt.Errorf("decoding liked job: %w", err)
		}
		lj.LikedAt = parseTime(likedAt)
		jobs = append(jobs, lj)
	}
	return jobs, rows.Err()
}

// IDs returns the set of liked job ids.
func (s *LikedStore) IDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT job_id FROM liked_jobs")
	if err != nil {
		return nil, fmt.Errorf("listing liked ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (s *LikedStore) IsLiked(ctx context.Context, jobID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM liked_jobs WHERE job_id = ?", jobID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking liked job: %w", err)
	}
	return n > 0, nil
}

// Add stores job. Liking an already liked job refreshes its data but keeps
// the original like time.
func (s *LikedStore) Add(ctx context.Context, job jsearch.Job) error {
	if strings.TrimSpace(job.JobID) == "" {
		return ErrMissingJobID
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO liked_jobs (job_id, job_title, employer_name, data, liked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			job_title = excluded.job_title,
			employer_name = excluded.employer_name,
			data = excluded.data`,
		job.JobID, job.JobTitle, job.EmployerName, string(data), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("liking job %s: %w", job.JobID, err)
	}
	return nil
}

// Remove reports whether a job was actually removed.
func (s *LikedStore) Remove(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM liked_jobs WHERE job_id = ?", jobID)
	if err != nil {
		return false, fmt.Errorf("unliking job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Toggle likes job when it is not liked and unlikes it otherwise. It returns
// the new liked state.
func (s *LikedStore) Toggle(ctx context.Context, job jsearch.Job) (bool, error) {
	if strings.TrimSpace(job.JobID) == "" {
		return false, ErrMissingJobID
	}
	removed, err := s.Remove(ctx, job.JobID)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	if err := s.Add(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}
