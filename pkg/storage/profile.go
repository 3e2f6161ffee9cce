package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrInvalidProfile = errors.New("invalid profile")

// Profile is the single local user's job preferences.
type Profile struct {
	Name            string    `json:"name"`
	DesiredJobTitle string    `json:"desiredJobTitle"`
	AboutMe         string    `json:"aboutMe"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
}

// FieldError names the offending field of an invalid profile.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidProfile
}

// Validate checks the same bounds the profile form enforces: a name of 2 to 50
// characters and a desired job title of 2 to 100. AboutMe is free form.
func (p Profile) Validate() error {
	name := utf8.RuneCountInString(strings.TrimSpace(p.Name))
	switch {
	case name == 0:
		return &FieldError{Field: "name", Message: "Name is required"}
	case name < 2:
		return &FieldError{Field: "name", Message: "Name must be at least 2 characters"}
	case name > 50:
		return &FieldError{Field: "name", Message: "Name must be less than 50 characters"}
	}

	title := utf8.RuneCountInString(strings.TrimSpace(p.DesiredJobTitle))
	switch {
	case title == 0:
		return &FieldError{Field: "desiredJobTitle", Message: "Desired job title is required"}
	case title < 2:
		return &FieldError{Field: "desiredJobTitle", Message: "Job title must be at least 2 characters"}
	case title > 100:
		return &FieldError{Field: "desiredJobTitle", Message: "Job title must be less than 100 characters"}
	}
	return nil
}

// JobTitle returns the title to search for, or "" for a nil profile.
func (p *Profile) JobTitle() string {
	if p == nil {
		return ""
	}
	return p.DesiredJobTitle
}

type ProfileStore struct {
	db  *sql.DB
	now func() time.Time
}

// Read returns nil, nil when no profile has been saved.
func (s *ProfileStore) Read(ctx context.Context) (*Profile, error) {
	var p Profile
	var updated string
	err := s.db.QueryRowContext(ctx,
		"SELECT name, desired_job_title, about_me, updated_at FROM profile WHERE id = 1",
	).Scan(&p.Name, &p.DesiredJobTitle, &p.AboutMe, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// Save validates p and replaces the stored profile.
func (s *ProfileStore) Save(ctx context.Context, p Profile) (*Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.DesiredJobTitle = strings.TrimSpace(p.DesiredJobTitle)
	p.AboutMe = strings.TrimSpace(p.AboutMe)
	p.UpdatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile (id, name, desired_job_title, about_me, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			desired_job_title = excluded.desired_job_title,
			about_me = excluded.about_me,
			updated_at = excluded.updated_at`,
		p.Name, p.DesiredJobTitle, p.AboutMe, formatTime(p.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return &p, nil
}

// Delete removes the stored profile. Deleting a missing profile is not an
// error.
func (s *ProfileStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profile WHERE id = 1"); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	return nil
}
