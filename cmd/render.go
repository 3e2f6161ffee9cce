package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rubiojr/jobsearch/pkg/jobs"
	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	jobStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	jobTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")).
			Margin(1, 0)

	likedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	urlStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))

	titleCase = cases.Title(language.English)
	numbers   = message.NewPrinter(language.English)
)

const descriptionPreview = 240

// renderResult draws every state of a search distinctly: no query, loading,
// error, no matches, and results.
func renderResult(res jobs.Result, liked map[string]bool) string {
	var out strings.Builder
	q := strings.TrimSpace(res.Query)

	switch res.Phase() {
	case jobs.PhaseNoQuery:
		out.WriteString(noDataStyle.Render("Enter a search query or set a desired job title with 'jobsearch profile set'."))
	case jobs.PhaseLoading:
		out.WriteString(metaStyle.Render(fmt.Sprintf("Searching for %q...", q)))
	case jobs.PhaseError:
		out.WriteString(errorStyle.Render("Error: " + res.ErrorText()))
	case jobs.PhaseEmpty:
		out.WriteString(noDataStyle.Render(fmt.Sprintf("No jobs found matching %q.", q)))
	default:
		summary := numbers.Sprintf("%d jobs for %q (showing %d)", res.TotalJobs, q, len(res.Jobs))
		if res.TotalJobs == 0 {
			summary = numbers.Sprintf("Jobs for %q (showing %d)", q, len(res.Jobs))
		}
		out.WriteString(summaryStyle.Render(summary))
		out.WriteString("\n")
		for i, job := range res.Jobs {
			out.WriteString(renderJob(job, i+1, liked[job.JobID], false))
			out.WriteString("\n")
		}
	}
	out.WriteString("\n")
	return out.String()
}

// renderJob draws one listing. index 0 omits the number; full includes the
// whole description.
func renderJob(job jsearch.Job, index int, liked, full bool) string {
	var b strings.Builder

	header := job.JobTitle
	if header == "" {
		header = "(untitled)"
	}
	if index > 0 {
		header = fmt.Sprintf("#%d %s", index, header)
	}
	b.WriteString(jobTitleStyle.Render(header))
	if liked {
		b.WriteString(" ")
		b.WriteString(likedStyle.Render("♥"))
	}
	b.WriteString("\n")

	var facts []string
	if job.EmployerName != "" {
		facts = append(facts, job.EmployerName)
	}
	if loc := location(job); loc != "" {
		facts = append(facts, loc)
	}
	if job.JobEmploymentType != "" {
		facts = append(facts, employmentType(job.JobEmploymentType))
	}
	if s := salary(job); s != "" {
		facts = append(facts, s)
	}
	if len(facts) > 0 {
		b.WriteString(strings.Join(facts, " · "))
		b.WriteString("\n")
	}

	desc := strings.TrimSpace(job.JobDescription)
	if !full {
		desc = preview(desc, descriptionPreview)
	}
	if desc != "" {
		b.WriteString("\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}

	meta := []string{"id: " + job.JobID}
	if posted := postedAt(job); posted != "" {
		meta = append(meta, "posted "+posted)
	}
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(strings.Join(meta, "  ")))
	if job.JobApplyLink != "" {
		b.WriteString("\n")
		b.WriteString(urlStyle.Render(job.JobApplyLink))
	}

	return jobStyle.Render(b.String())
}

func renderLiked(list []storage.LikedJob) string {
	var out strings.Builder
	out.WriteString(titleStyle.Render(fmt.Sprintf("Liked jobs (%d)", len(list))))
	out.WriteString("\n")
	if len(list) == 0 {
		out.WriteString(noDataStyle.Render("You have not liked any jobs yet."))
		out.WriteString("\n")
		return out.String()
	}
	for i, lj := range list {
		out.WriteString(renderJob(lj.Job, i+1, true, false))
		out.WriteString("\n")
		if !lj.LikedAt.IsZero() {
			out.WriteString(metaStyle.Render("    liked " + formatTime(lj.LikedAt)))
			out.WriteString("\n")
		}
	}
	return out.String()
}

func renderProfile(p *storage.Profile) string {
	if p == nil {
		return noDataStyle.Render("No profile saved. Create one with 'jobsearch profile set'.") + "\n"
	}
	var b strings.Builder
	b.WriteString(jobTitleStyle.Render(p.Name))
	b.WriteString("\n")
	b.WriteString("Desired job title: " + p.DesiredJobTitle)
	if p.AboutMe != "" {
		b.WriteString("\n\n")
		b.WriteString(p.AboutMe)
	}
	if !p.UpdatedAt.IsZero() {
		b.WriteString("\n\n")
		b.WriteString(metaStyle.Render("updated " + formatTime(p.UpdatedAt)))
	}
	return jobStyle.Render(b.String()) + "\n"
}

func location(job jsearch.Job) string {
	var parts []string
	if job.JobCity != "" {
		parts = append(parts, job.JobCity)
	}
	if job.JobCountry != "" {
		parts = append(parts, job.JobCountry)
	}
	return strings.Join(parts, ", ")
}

// employmentType turns API values like "FULLTIME" or "PART_TIME" into
// "Fulltime" and "Part Time".
func employmentType(s string) string {
	return titleCase.String(strings.ReplaceAll(strings.ToLower(s), "_", " "))
}

func salary(job jsearch.Job) string {
	if job.JobSalary == nil {
		return ""
	}
	s := numbers.Sprintf("%.0f", *job.JobSalary)
	if job.JobSalaryCurrency != "" {
		s += " " + job.JobSalaryCurrency
	}
	return s
}

func postedAt(job jsearch.Job) string {
	if job.JobPostedAtUTC == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, job.JobPostedAtUTC)
	if err != nil {
		return job.JobPostedAtUTC
	}
	return t.Local().Format("2006-01-02")
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
