package jobs

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/reqcache"
	"github.com/rubiojr/jobsearch/pkg/storage"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	respond func(req jsearch.SearchRequest) (*jsearch.SearchResponse, error)
}

func (f *fakeSearcher) Search(ctx context.Context, req jsearch.SearchRequest) (*jsearch.SearchResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return &jsearch.SearchResponse{Data: []jsearch.Job{{JobID: req.Query}}, TotalJobs: 1}, nil
	}
	return respond(req)
}

func (f *fakeSearcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func testExecutor(t *testing.T) *Executor {
	t.Helper()
	exec := NewExecutor(reqcache.Policy{
		DedupingInterval:   time.Minute,
		ErrorRetryCount:    3,
		ErrorRetryInterval: time.Millisecond,
	})
	t.Cleanup(exec.Close)
	return exec
}

func newCoordinator(t *testing.T, exec *Executor, s Searcher, opts ...Option) *Coordinator {
	t.Helper()
	c := New(exec, s, opts...)
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, c *Coordinator, what string, pred func(Result) bool) Result {
	t.Helper()
	id, ch := c.Subscribe()
	defer c.Unsubscribe(id)
	timeout := time.After(3 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed waiting for %s", what)
			}
			if pred(r) {
				return r
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, current = %+v", what, c.Current())
		}
	}
}

func settledFor(q string) func(Result) bool {
	return func(r Result) bool {
		return r.Query == q && !r.IsLoading && r.Key != ""
	}
}

func TestDebounceSuppressesIntermediateQueries(t *testing.T) {
	s := &fakeSearcher{}
	c := newCoordinator(t, testExecutor(t), s, WithDebounce(200*time.Millisecond), WithFallback(""))

	c.Update(Params{})
	for _, q := range []string{"r", "re", "rea", "react"} {
		c.Update(Params{Query: q})
		time.Sleep(10 * time.Millisecond)
	}

	r := waitFor(t, c, "react results", settledFor("react"))
	if r.IsError || len(r.Jobs) != 1 {
		t.Fatalf("result = %+v", r)
	}
	if got := s.calls(); !reflect.DeepEqual(got, []string{"react"}) {
		t.Fatalf("requests = %v, want only react", got)
	}
}

func TestInitialQueryIsNotDebounced(t *testing.T) {
	s := &fakeSearcher{}
	c := newCoordinator(t, testExecutor(t), s, WithDebounce(time.Hour))

	c.Update(Params{Query: "golang"})
	r := waitFor(t, c, "golang results", settledFor("golang"))
	if r.TotalJobs != 1 {
		t.Fatalf("result = %+v", r)
	}
}

func TestEmptyQueryNeverFetches(t *testing.T) {
	s := &fakeSearcher{}
	c := newCoordinator(t, testExecutor(t), s, WithDebounce(10*time.Millisecond), WithFallback(""))

	c.Update(Params{Query: "   "})
	time.Sleep(50 * time.Millisecond)

	r := c.Current()
	if r.IsLoading || r.IsError || r.Jobs == nil || len(r.Jobs) != 0 {
		t.Fatalf("result = %+v", r)
	}
	if r.Phase() != PhaseNoQuery {
		t.Errorf("Phase() = %s, want %s", r.Phase(), PhaseNoQuery)
	}
	if n := len(s.calls()); n != 0 {
		t.Fatalf("requests = %d, want 0", n)
	}
}

func TestProfileAndFallbackPrecedence(t *testing.T) {
	s := &fakeSearcher{}
	exec := testExecutor(t)

	withProfile := newCoordinator(t, exec, s)
	withProfile.Update(Params{Profile: &storage.Profile{DesiredJobTitle: "Backend Engineer"}})
	waitFor(t, withProfile, "profile query", settledFor("Backend Engineer"))

	fallback := newCoordinator(t, exec, s)
	fallback.Update(Params{})
	waitFor(t, fallback, "fallback query", settledFor("developer jobs"))
}

func TestConcurrentConsumersShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	s := &fakeSearcher{respond: func(req jsearch.SearchRequest) (*jsearch.SearchResponse, error) {
		<-release
		return &jsearch.SearchResponse{Data: []jsearch.Job{{JobID: "1"}}, TotalJobs: 1}, nil
	}}
	exec := testExecutor(t)
	a := newCoordinator(t, exec, s)
	b := newCoordinator(t, exec, s)

	p := Params{Query: "sre", Page: 1, NumPages: 1, Country: "us", DatePosted: jsearch.DatePostedAll}
	a.Update(p)
	b.Update(p)
	if !a.Current().IsLoading || !b.Current().IsLoading {
		t.Fatal("both consumers should observe loading")
	}
	close(release)

	ra := waitFor(t, a, "a settled", settledFor("sre"))
	rb := waitFor(t, b, "b settled", settledFor("sre"))
	if ra.Key != rb.Key || ra.TotalJobs != rb.TotalJobs {
		t.Fatalf("consumers disagree: %+v vs %+v", ra, rb)
	}
	if n := len(s.calls()); n != 1 {
		t.Fatalf("requests = %d, want 1", n)
	}
}

func TestRateLimitUsesRetryBudget(t *testing.T) {
	s := &fakeSearcher{respond: func(req jsearch.SearchRequest) (*jsearch.SearchResponse, error) {
		return nil, &jsearch.StatusError{StatusCode: http.StatusTooManyRequests}
	}}
	exec := testExecutor(t)
	c := newCoordinator(t, exec, s)

	c.Update(Params{Query: "busy"})
	r := waitFor(t, c, "rate limit", settledFor("busy"))
	if !r.IsError || r.ErrorText() != RateLimitedMessage {
		t.Fatalf("result = %+v", r)
	}
	want := exec.Policy().ErrorRetryCount + 1
	if n := len(s.calls()); n != want {
		t.Fatalf("requests = %d, want %d", n, want)
	}
}

func TestFetchOnceRateLimitedAfterRetries(t *testing.T) {
	var calls atomic.Int32
	s := &fakeSearcher{respond: func(req jsearch.SearchRequest) (*jsearch.SearchResponse, error) {
		if calls.Add(1) < 3 {
			return nil, &jsearch.StatusError{StatusCode: http.StatusInternalServerError}
		}
		return nil, &jsearch.StatusError{StatusCode: http.StatusTooManyRequests}
	}}
	exec := testExecutor(t)

	r := FetchOnce(context.Background(), exec, s, Params{Query: "busy"}, "")
	if !r.IsError || r.ErrorText() != RateLimitedMessage {
		t.Fatalf("result = %+v", r)
	}
	if n := len(s.calls()); n != exec.Policy().ErrorRetryCount+1 {
		t.Fatalf("requests = %d, want %d", n, exec.Policy().ErrorRetryCount+1)
	}
}

func TestGenericFailureIsRetried(t *testing.T) {
	s := &fakeSearcher{respond: func(req jsearch.SearchRequest) (*jsearch.SearchResponse, error) {
		return nil, errors.New("network down")
	}}
	c := newCoordinator(t, testExecutor(t), s)

	c.Update(Params{Query: "flaky"})
	r := waitFor(t, c, "failure", settledFor("flaky"))
	if !r.IsError || r.ErrorText() != "network down" {
		t.Fatalf("result = %+v", r)
	}
	if r.Phase() != PhaseError {
		t.Errorf("Phase() = %s", r.Phase())
	}
	if n := len(s.calls()); n != 4 {
		t.Fatalf("requests = %d, want 1 + 3 retries", n)
	}
}

func TestRoundTripStability(t *testing.T) {
	job1 := jsearch.Job{JobID: "1", JobTitle: "Go Dev", EmployerName: "ACME"}
	job2 := jsearch.Job{JobID: "2", JobTitle: "SRE", JobCity: "Berlin"}
	s := &fakeSearcher{respond: func(req jsearch.SearchRequest) (*jsearch.SearchResponse, error) {
		return &jsearch.SearchResponse{Data: []jsearch.Job{job1, job2}, TotalJobs: 2}, nil
	}}
	c := newCoordinator(t, testExecutor(t), s)

	c.Update(Params{Query: "go"})
	r := waitFor(t, c, "results", settledFor("go"))
	if !reflect.DeepEqual(r.Jobs, []jsearch.Job{job1, job2}) {
		t.Errorf("Jobs = %+v", r.Jobs)
	}
	if r.TotalJobs != 2 || r.IsLoading || r.IsError || r.Error != nil {
		t.Errorf("result = %+v", r)
	}
	if r.Phase() != PhaseResults {
		t.Errorf("Phase() = %s", r.Phase())
	}
}

func TestPageChangeIsImmediate(t *testing.T) {
	s := &fakeSearcher{}
	c := newCoordinator(t, testExecutor(t), s, WithDebounce(time.Hour))

	c.Update(Params{Query: "go", Page: 1})
	first := waitFor(t, c, "page 1", settledFor("go"))

	c.Update(Params{Query: "go", Page: 2})
	second := waitFor(t, c, "page 2", func(r Result) bool {
		return r.Key != first.Key && r.Key != "" && !r.IsLoading
	})
	want := jsearch.NewSearchRequest("go", 2, 1, "", "").CacheKey()
	if second.Key != want {
		t.Fatalf("Key = %q, want %q", second.Key, want)
	}
}

func TestAbandonedKeyIsNotPublished(t *testing.T) {
	release := make(chan struct{})
	s := &fakeSearcher{respond: func(req jsearch.SearchRequest) (*jsearch.SearchResponse, error) {
		if req.Query == "slow" {
			<-release
		}
		return &jsearch.SearchResponse{Data: []jsearch.Job{{JobID: req.Query}}, TotalJobs: 1}, nil
	}}
	c := newCoordinator(t, testExecutor(t), s, WithDebounce(20*time.Millisecond))

	c.Update(Params{Query: "slow"})
	slowKey := c.Current().Key
	c.Update(Params{Query: "fast"})
	fast := waitFor(t, c, "fast results", settledFor("fast"))

	id, ch := c.Subscribe()
	defer c.Unsubscribe(id)
	close(release)
	time.Sleep(100 * time.Millisecond)

	for {
		select {
		case r := <-ch:
			if r.Key == slowKey {
				t.Fatalf("stale result published: %+v", r)
			}
			continue
		default:
		}
		break
	}
	if got := c.Current(); got.Key != fast.Key {
		t.Fatalf("Current().Key = %q, want %q", got.Key, fast.Key)
	}
}

func TestLateEntryFromReplacedSubscriptionIsIgnored(t *testing.T) {
	s := &fakeSearcher{}
	c := newCoordinator(t, testExecutor(t), s, WithDebounce(time.Hour))

	c.Update(Params{Query: "go", Page: 1})
	first := waitFor(t, c, "page 1", settledFor("go"))

	c.mu.Lock()
	staleGen := c.subGen
	c.mu.Unlock()

	// Leave the key and come back to it; the second visit is served from cache.
	c.Update(Params{Query: "go", Page: 2})
	waitFor(t, c, "page 2", func(r Result) bool { return r.Key != first.Key && r.Key != "" && !r.IsLoading })
	c.Update(Params{Query: "go", Page: 1})
	back := waitFor(t, c, "page 1 again", func(r Result) bool { return r.Key == first.Key && !r.IsLoading })

	// A listener of the first subscription delivering its Loading entry late.
	c.onEntry(staleGen, "go", reqcache.Entry[*jsearch.SearchResponse]{Key: first.Key, State: reqcache.Loading})

	got := c.Current()
	if got.IsLoading || got.Key != back.Key || len(got.Jobs) != 1 {
		t.Fatalf("Current() = %+v, want the cached success", got)
	}
}

func TestCloseStopsPendingDebounce(t *testing.T) {
	s := &fakeSearcher{}
	c := New(testExecutor(t), s, WithDebounce(20*time.Millisecond), WithFallback(""))
	c.Update(Params{})
	c.Update(Params{Query: "never"})
	c.Close()
	c.Close()
	time.Sleep(60 * time.Millisecond)
	if n := len(s.calls()); n != 0 {
		t.Fatalf("requests after Close = %d", n)
	}
	c.Update(Params{Query: "ignored"})
}

func TestFetchOnce(t *testing.T) {
	s := &fakeSearcher{}
	exec := testExecutor(t)

	r := FetchOnce(context.Background(), exec, s, Params{Query: "rust"}, "")
	if r.IsLoading || r.IsError || r.TotalJobs != 1 {
		t.Fatalf("FetchOnce() = %+v", r)
	}
	FetchOnce(context.Background(), exec, s, Params{Query: "rust"}, "")
	if n := len(s.calls()); n != 1 {
		t.Fatalf("requests = %d, want 1 within dedupe window", n)
	}

	idle := FetchOnce(context.Background(), exec, s, Params{}, "")
	if idle.Phase() != PhaseNoQuery {
		t.Fatalf("Phase() = %s", idle.Phase())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		entry reqcache.Entry[*jsearch.SearchResponse]
		check func(t *testing.T, r Result)
	}{
		{
			name:  "loading",
			entry: reqcache.Entry[*jsearch.SearchResponse]{Key: "k", State: reqcache.Loading},
			check: func(t *testing.T, r Result) {
				if !r.IsLoading || r.IsError || len(r.Jobs) != 0 {
					t.Errorf("result = %+v", r)
				}
			},
		},
		{
			name:  "nil data and missing total",
			entry: reqcache.Entry[*jsearch.SearchResponse]{Key: "k", State: reqcache.Success, Value: &jsearch.SearchResponse{}},
			check: func(t *testing.T, r Result) {
				if r.Jobs == nil || r.TotalJobs != 0 || r.Phase() != PhaseEmpty {
					t.Errorf("result = %+v", r)
				}
			},
		},
		{
			name:  "error without message",
			entry: reqcache.Entry[*jsearch.SearchResponse]{Key: "k", State: reqcache.Failure, Err: errors.New("")},
			check: func(t *testing.T, r Result) {
				if r.ErrorText() != GenericMessage {
					t.Errorf("error = %q", r.ErrorText())
				}
			},
		},
		{
			name:  "wrapped status error",
			entry: reqcache.Entry[*jsearch.SearchResponse]{Key: "k", State: reqcache.Failure, Err: &jsearch.StatusError{StatusCode: 500}},
			check: func(t *testing.T, r Result) {
				if r.ErrorText() != "request failed with status code 500" {
					t.Errorf("error = %q", r.ErrorText())
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Classify("q", tt.entry))
		})
	}
}
