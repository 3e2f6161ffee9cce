package jsearch

import (
	"fmt"
	"strings"
)

// Job is a single listing as returned by the JSearch API. The fields are
// passed through untouched; JobID is the identity used for likes.
type Job struct {
	JobID             string   `json:"job_id"`
	EmployerName      string   `json:"employer_name"`
	EmployerLogo      string   `json:"employer_logo,omitempty"`
	JobTitle          string   `json:"job_title"`
	JobDescription    string   `json:"job_description"`
	JobCity           string   `json:"job_city"`
	JobCountry        string   `json:"job_country"`
	JobApplyLink      string   `json:"job_apply_link"`
	JobEmploymentType string   `json:"job_employment_type"`
	JobSalary         *float64 `json:"job_salary,omitempty"`
	JobSalaryCurrency string   `json:"job_salary_currency,omitempty"`
	JobPostedAtUTC    string   `json:"job_posted_at_datetime_utc,omitempty"`
}

// SearchResponse mirrors the body of GET /search.
type SearchResponse struct {
	Status    string `json:"status,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Data      []Job  `json:"data"`
	TotalJobs int    `json:"total_jobs"`
}

// detailsResponse mirrors the body of GET /job-details.
type detailsResponse struct {
	Status string `json:"status,omitempty"`
	Data   []Job  `json:"data"`
}

// DatePosted restricts results by posting age.
type DatePosted string

const (
	DatePostedAll    DatePosted = "all"
	DatePostedToday  DatePosted = "today"
	DatePosted3Days  DatePosted = "3days"
	DatePostedWeek   DatePosted = "week"
	DatePostedMonth  DatePosted = "month"
	DefaultCountry              = "us"
	DefaultDatePosted           = DatePostedAll
)

// ParseDatePosted validates s. An empty string maps to DefaultDatePosted.
func ParseDatePosted(s string) (DatePosted, error) {
	switch d := DatePosted(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DefaultDatePosted, nil
	case DatePostedAll, DatePostedToday, DatePosted3Days, DatePostedWeek, DatePostedMonth:
		return d, nil
	default:
		return "", fmt.Errorf("invalid date_posted %q: want all, today, 3days, week or month", s)
	}
}
