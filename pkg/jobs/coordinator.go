// Package jobs turns a rapidly changing search input into debounced, cached
// requests and publishes the resulting state.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/log"
	"github.com/rubiojr/jobsearch/pkg/query"
	"github.com/rubiojr/jobsearch/pkg/realtime"
	"github.com/rubiojr/jobsearch/pkg/reqcache"
	"github.com/rubiojr/jobsearch/pkg/storage"
)

const DefaultDebounce = 500 * time.Millisecond

// Searcher performs the outbound search. *jsearch.Client implements it.
type Searcher interface {
	Search(ctx context.Context, req jsearch.SearchRequest) (*jsearch.SearchResponse, error)
}

// Executor is the process-wide request cache shared by every coordinator.
type Executor = reqcache.Executor[*jsearch.SearchResponse]

// NewExecutor builds the search executor. Every failure, rate limiting
// included, gets the policy's retry budget; the last error decides the
// message shown.
func NewExecutor(policy reqcache.Policy, opts ...reqcache.Option) *Executor {
	return reqcache.New[*jsearch.SearchResponse](policy, opts...)
}

// Params are the inputs of one evaluation.
type Params struct {
	Query      string
	Page       int
	NumPages   int
	Country    string
	DatePosted jsearch.DatePosted
	Profile    *storage.Profile
}

type filters struct {
	page       int
	numPages   int
	country    string
	datePosted jsearch.DatePosted
}

func (p Params) filters() filters {
	req := jsearch.NewSearchRequest("", p.Page, p.NumPages, p.Country, p.DatePosted)
	return filters{page: req.Page, numPages: req.NumPages, country: req.Country, datePosted: req.DatePosted}
}

func (f filters) request(q string) jsearch.SearchRequest {
	return jsearch.NewSearchRequest(q, f.page, f.numPages, f.country, f.datePosted)
}

type Option func(*Coordinator)

func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithFallback sets the query used when neither input nor profile has one.
func WithFallback(q string) Option {
	return func(c *Coordinator) { c.fallback = q }
}

// Coordinator belongs to a single consumer: a CLI watch loop or one WebSocket
// session. Coordinators share the Executor.
type Coordinator struct {
	exec     *Executor
	searcher Searcher
	debounce time.Duration
	fallback string
	hub      *realtime.Hub[Result]
	logger   *log.Logger

	mu       sync.Mutex
	started  bool
	closed   bool
	latest   string
	stable   string
	filters  filters
	timer    *time.Timer
	timerGen uint64
	key      string
	subGen   uint64
	unsub    func()
	current  Result
}

func New(exec *Executor, searcher Searcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		exec:     exec,
		searcher: searcher,
		debounce: DefaultDebounce,
		fallback: query.DefaultFallback,
		hub:      realtime.NewHub[Result](),
		logger:   log.ForService("jobs"),
		current:  IdleResult(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update feeds new inputs. The first call sets the stable query directly;
// later query changes only take effect once they stay unchanged for the
// debounce period. Page and filter changes apply immediately.
func (c *Coordinator) Update(p Params) {
	q := query.Normalize(p.Query, p.Profile.JobTitle(), c.fallback)
	f := p.filters()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if !c.started {
		c.started = true
		c.latest = q
		c.stable = q
		c.filters = f
		c.refreshLocked()
		return
	}

	filtersChanged := f != c.filters
	c.filters = f
	if q != c.latest {
		c.latest = q
		c.armLocked()
	}
	if filtersChanged {
		c.refreshLocked()
	}
}

// armLocked replaces any pending timer. The generation check discards a
// timer that already fired but lost the race for the lock.
func (c *Coordinator) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.debounce, func() { c.settle(gen) })
}

func (c *Coordinator) settle(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.timerGen {
		return
	}
	c.timer = nil
	if c.stable == c.latest {
		return
	}
	c.logger.Debugf("stable query %q -> %q", c.stable, c.latest)
	c.stable = c.latest
	c.refreshLocked()
}

func (c *Coordinator) refreshLocked() {
	if !query.ShouldFetch(c.stable) {
		c.watchLocked("")
		c.publishLocked(IdleResult(c.stable))
		return
	}

	req := c.filters.request(c.stable)
	key := req.CacheKey()
	if key == c.key {
		return
	}
	c.watchLocked(key)

	q := c.stable
	searcher := c.searcher
	entry := c.exec.Get(key, func(ctx context.Context) (*jsearch.SearchResponse, error) {
		return searcher.Search(ctx, req)
	})
	c.publishLocked(Classify(q, entry))
}

// watchLocked follows key and drops the subscription to the previous one, so
// late results for abandoned keys are never published. Each subscription
// gets a generation; a listener holding an entry from an older one is
// ignored even when the key has come back since.
func (c *Coordinator) watchLocked(key string) {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.key = key
	c.subGen++
	if key == "" {
		return
	}

	ch, unsub := c.exec.Subscribe(key)
	c.unsub = unsub
	gen := c.subGen
	q := c.stable
	go func() {
		for e := range ch {
			c.onEntry(gen, q, e)
		}
	}()
}

func (c *Coordinator) onEntry(gen uint64, q string, e reqcache.Entry[*jsearch.SearchResponse]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.subGen {
		return
	}
	c.publishLocked(Classify(q, e))
}

func (c *Coordinator) publishLocked(r Result) {
	if r.Key != "" && sameState(c.current, r) {
		return
	}
	c.current = r
	c.hub.Broadcast(r)
}

// Current returns the latest published result.
func (c *Coordinator) Current() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// StableQuery is the query the current result belongs to.
func (c *Coordinator) StableQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stable
}

// Subscribe returns a channel that receives every new Result, starting with
// the latest one if any was published.
func (c *Coordinator) Subscribe() (uint64, <-chan Result) {
	return c.hub.Register()
}

func (c *Coordinator) Unsubscribe(id uint64) {
	c.hub.Unregister(id)
}

// Close stops the debounce timer and every subscription. The shared executor
// is left running.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.hub.Close()
}

// FetchOnce resolves p without debouncing and waits for a terminal state.
func FetchOnce(ctx context.Context, exec *Executor, searcher Searcher, p Params, fallback string) Result {
	q := query.Normalize(p.Query, p.Profile.JobTitle(), fallback)
	if !query.ShouldFetch(q) {
		return IdleResult(q)
	}
	req := p.filters().request(q)
	entry := exec.Fetch(ctx, req.CacheKey(), func(ctx context.Context) (*jsearch.SearchResponse, error) {
		return searcher.Search(ctx, req)
	})
	return Classify(q, entry)
}
