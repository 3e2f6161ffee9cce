package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/jobsearch/pkg/jsearch"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "jobsearch.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobsearch.db")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		s.Close()
	}
}

func TestProfileReadEmpty(t *testing.T) {
	s := openTestStore(t)
	p, err := s.Profile.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if p != nil {
		t.Fatalf("Read() = %+v, want nil", p)
	}
	if p.JobTitle() != "" {
		t.Fatal("nil profile should have empty job title")
	}
}

func TestProfileSaveLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Profile.Save(ctx, Profile{Name: "Ada", DesiredJobTitle: "Backend Engineer"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := s.Profile.Save(ctx, Profile{Name: " Grace ", DesiredJobTitle: "Compiler Engineer", AboutMe: "COBOL"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	p, err := s.Profile.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Grace" || p.DesiredJobTitle != "Compiler Engineer" || p.AboutMe != "COBOL" {
		t.Errorf("Read() = %+v", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	if err := s.Profile.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.Profile.Read(ctx); p != nil {
		t.Errorf("Read() after Delete = %+v", p)
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		field   string
	}{
		{"valid", Profile{Name: "Al", DesiredJobTitle: "QA"}, ""},
		{"missing name", Profile{DesiredJobTitle: "QA"}, "name"},
		{"short name", Profile{Name: "A", DesiredJobTitle: "QA"}, "name"},
		{"long name", Profile{Name: strings.Repeat("a", 51), DesiredJobTitle: "QA"}, "name"},
		{"missing title", Profile{Name: "Ada"}, "desiredJobTitle"},
		{"short title", Profile{Name: "Ada", DesiredJobTitle: "Q"}, "desiredJobTitle"},
		{"long title", Profile{Name: "Ada", DesiredJobTitle: strings.Repeat("t", 101)}, "desiredJobTitle"},
		{"multibyte name counts runes", Profile{Name: "Zoë", DesiredJobTitle: "Dev"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Fatalf("Validate() error = %v, want field %s", err, tt.field)
			}
			if !errors.Is(err, ErrInvalidProfile) {
				t.Error("error does not wrap ErrInvalidProfile")
			}
		})
	}
}

func TestProfileSaveRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Profile.Save(context.Background(), Profile{Name: "A"}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("Save() error = %v, want ErrInvalidProfile", err)
	}
}

func TestLikedToggle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	job := jsearch.Job{JobID: "j1", JobTitle: "Go Dev", EmployerName: "ACME"}

	liked, err := s.Liked.Toggle(ctx, job)
	if err != nil || !liked {
		t.Fatalf("first Toggle() = %v, %v", liked, err)
	}
	if ok, _ := s.Liked.IsLiked(ctx, "j1"); !ok {
		t.Fatal("IsLiked() = false after like")
	}

	liked, err = s.Liked.Toggle(ctx, job)
	if err != nil || liked {
		t.Fatalf("second Toggle() = %v, %v", liked, err)
	}
	if ok, _ := s.Liked.IsLiked(ctx, "j1"); ok {
		t.Fatal("IsLiked() = true after unlike")
	}

	if _, err := s.Liked.Toggle(ctx, jsearch.Job{}); !errors.Is(err, ErrMissingJobID) {
		t.Errorf("Toggle() without id error = %v", err)
	}
}

func TestLikedListDedupesAndOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	s.Liked.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	if err := s.Liked.Add(ctx, jsearch.Job{JobID: "a", JobTitle: "First"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Liked.Add(ctx, jsearch.Job{JobID: "b", JobTitle: "Second"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Liked.Add(ctx, jsearch.Job{JobID: "a", JobTitle: "First (updated)"}); err != nil {
		t.Fatal(err)
	}

	jobs, err := s.Liked.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("List() returned %d jobs, want 2", len(jobs))
	}
	if jobs[0].JobID != "b" || jobs[1].JobID != "a" {
		t.Errorf("order = %s, %s", jobs[0].JobID, jobs[1].JobID)
	}
	if jobs[1].JobTitle != "First (updated)" {
		t.Errorf("data not refreshed: %q", jobs[1].JobTitle)
	}

	ids, err := s.Liked.IDs(ctx)
	if err != nil || !ids["a"] || !ids["b"] {
		t.Errorf("IDs() = %v, %v", ids, err)
	}

	removed, err := s.Liked.Remove(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v", removed, err)
	}
	removed, _ = s.Liked.Remove(ctx, "a")
	if removed {
		t.Error("second Remove() reported a removal")
	}
}

func TestLikedListEmpty(t *testing.T) {
	s := openTestStore(t)
	jobs, err := s.Liked.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if jobs == nil || len(jobs) != 0 {
		t.Fatalf("List() = %#v, want empty slice", jobs)
	}
}
