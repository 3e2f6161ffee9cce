// Package reqcache runs keyed fetches with in-flight deduplication, a reuse
// window for completed results, bounded retries and per-key change
// notifications.
package reqcache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rubiojr/jobsearch/pkg/log"
)

// State is the lifecycle of one keyed fetch.
type State int

const (
	Idle State = iota
	Loading
	Success
	Failure
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "idle"
	}
}

// Entry is a snapshot of one key. Value is only meaningful in Success and Err
// only in Failure.
type Entry[T any] struct {
	Key       string
	State     State
	Value     T
	Err       error
	UpdatedAt time.Time
}

// Policy controls reuse and retries. The executor never refreshes an entry on
// its own, so the two Revalidate flags are always false and only document it.
type Policy struct {
	DedupingInterval      time.Duration
	ErrorRetryCount       int
	ErrorRetryInterval    time.Duration
	RevalidateOnFocus     bool
	RevalidateOnReconnect bool
}

func DefaultPolicy() Policy {
	return Policy{
		DedupingInterval:   60 * time.Second,
		ErrorRetryCount:    3,
		ErrorRetryInterval: 5 * time.Second,
	}
}

// FetchFunc performs the actual network call for a key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Stats are cumulative counters since the executor was created.
type Stats struct {
	Hits         int64
	Misses       int64
	Joins        int64
	NetworkCalls int64
	Retries      int64
	Failures     int64
	StoreHits    int64
	Entries      int
}

type options struct {
	now       func() time.Time
	store     Store
	retryable func(error) bool
}

type Option func(*options)

// WithNow replaces the clock used for the reuse window.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithStore adds a shared second level store for successful results.
func WithStore(s Store) Option {
	return func(o *options) { o.store = s }
}

// WithRetryable decides whether a failed attempt may be retried. Errors for
// which it returns false end the fetch immediately.
func WithRetryable(fn func(error) bool) Option {
	return func(o *options) { o.retryable = fn }
}

// Executor is safe for concurrent use. Create one per process and share it.
type Executor[T any] struct {
	policy Policy
	opts   options
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]*Entry[T]
	subs    map[string]map[int]chan Entry[T]
	nextSub int

	hits      atomic.Int64
	misses    atomic.Int64
	joins     atomic.Int64
	calls     atomic.Int64
	retries   atomic.Int64
	failures  atomic.Int64
	storeHits atomic.Int64
}

func New[T any](policy Policy, opts ...Option) *Executor[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if policy.ErrorRetryCount < 0 {
		policy.ErrorRetryCount = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor[T]{
		policy:  policy,
		opts:    o,
		logger:  log.ForService("reqcache"),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*Entry[T]),
		subs:    make(map[string]map[int]chan Entry[T]),
	}
}

// Policy returns the policy the executor was built with.
func (e *Executor[T]) Policy() Policy {
	return e.policy
}

// Get returns the current entry for key without blocking. When there is no
// reusable entry it starts fetch in the background and returns Loading.
func (e *Executor[T]) Get(key string, fetch FetchFunc[T]) Entry[T] {
	snap, _ := e.begin(key, fetch)
	return snap
}

// Fetch is Get that waits for a terminal state. Canceling ctx abandons the
// wait but not the shared fetch.
func (e *Executor[T]) Fetch(ctx context.Context, key string, fetch FetchFunc[T]) Entry[T] {
	snap, ch := e.begin(key, fetch)
	if ch == nil {
		return snap
	}
	select {
	case <-ctx.Done():
		return Entry[T]{Key: key, State: Failure, Err: ctx.Err(), UpdatedAt: e.opts.now()}
	case r := <-ch:
		ent, _ := r.Val.(Entry[T])
		return ent
	}
}

// Peek returns the entry for key, if any, without side effects.
func (e *Executor[T]) Peek(key string) (Entry[T], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.entries[key]
	if !ok {
		return Entry[T]{Key: key}, false
	}
	return *cur, true
}

// begin decides between reuse, joining and starting a fetch. A non-nil
// channel means a fetch for key is in flight and will deliver there.
func (e *Executor[T]) begin(key string, fetch FetchFunc[T]) (Entry[T], <-chan singleflight.Result) {
	now := e.opts.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, ok := e.entries[key]; ok {
		switch {
		case cur.State == Loading:
			e.joins.Add(1)
			e.logger.Debugf("joining in-flight fetch for %s", key)
			return *cur, e.group.DoChan(key, e.loader(key, fetch))
		case cur.State == Success && now.Sub(cur.UpdatedAt) < e.policy.DedupingInterval:
			e.hits.Add(1)
			return *cur, nil
		}
	}

	e.misses.Add(1)
	ent := &Entry[T]{Key: key, State: Loading, UpdatedAt: now}
	e.entries[key] = ent
	e.publishLocked(*ent)
	return *ent, e.group.DoChan(key, e.loader(key, fetch))
}

func (e *Executor[T]) loader(key string, fetch FetchFunc[T]) func() (any, error) {
	return func() (any, error) {
		return e.load(key, fetch), nil
	}
}

func (e *Executor[T]) load(key string, fetch FetchFunc[T]) Entry[T] {
	ctx := e.ctx

	if v, ok := e.fromStore(ctx, key); ok {
		e.storeHits.Add(1)
		return e.complete(key, v, nil)
	}

	var (
		val T
		err error
	)
	for attempt := 0; ; attempt++ {
		e.calls.Add(1)
		val, err = fetch(ctx)
		if err == nil {
			break
		}
		if attempt >= e.policy.ErrorRetryCount || !e.retryable(err) {
			break
		}
		e.retries.Add(1)
		e.logger.Debugf("fetch %s failed (attempt %d): %v, retrying in %s", key, attempt+1, err, e.policy.ErrorRetryInterval)
		if !sleep(ctx, e.policy.ErrorRetryInterval) {
			break
		}
	}

	if err != nil {
		e.failures.Add(1)
		e.logger.Warnf("fetch %s failed: %v", key, err)
	} else {
		e.toStore(ctx, key, val)
	}
	return e.complete(key, val, err)
}

func (e *Executor[T]) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if e.opts.retryable != nil {
		return e.opts.retryable(err)
	}
	return true
}

// complete records the terminal state. Forgetting the singleflight key under
// the same lock begin uses means a caller either joins this call or starts a
// fresh one, never a finished one.
func (e *Executor[T]) complete(key string, val T, err error) Entry[T] {
	ent := Entry[T]{Key: key, UpdatedAt: e.opts.now()}
	if err != nil {
		ent.State = Failure
		ent.Err = err
	} else {
		ent.State = Success
		ent.Value = val
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.group.Forget(key)
	e.entries[key] = &ent
	e.publishLocked(ent)
	return ent
}

func (e *Executor[T]) fromStore(ctx context.Context, key string) (T, bool) {
	var v T
	if e.opts.store == nil {
		return v, false
	}
	b, ok, err := e.opts.store.Get(ctx, key)
	if err != nil {
		e.logger.Warnf("store get %s: %v", key, err)
		return v, false
	}
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		e.logger.Warnf("store decode %s: %v", key, err)
		return v, false
	}
	return v, true
}

func (e *Executor[T]) toStore(ctx context.Context, key string, val T) {
	if e.opts.store == nil {
		return
	}
	b, err := json.Marshal(val)
	if err != nil {
		e.logger.Warnf("store encode %s: %v", key, err)
		return
	}
	if err := e.opts.store.Set(ctx, key, b, e.policy.DedupingInterval); err != nil {
		e.logger.Warnf("store set %s: %v", key, err)
	}
}

// Subscribe delivers every state change of key. The channel holds only the
// latest change; a slow reader skips intermediate states. Call the returned
// function to stop.
func (e *Executor[T]) Subscribe(key string) (<-chan Entry[T], func()) {
	ch := make(chan Entry[T], 1)

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	if e.subs[key] == nil {
		e.subs[key] = make(map[int]chan Entry[T])
	}
	e.subs[key][id] = ch
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if m, ok := e.subs[key]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(e.subs, key)
				}
			}
			close(ch)
		})
	}
}

func (e *Executor[T]) publishLocked(ent Entry[T]) {
	for _, ch := range e.subs[ent.Key] {
		offerLatest(ch, ent)
	}
}

func offerLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Prune drops terminal entries older than the reuse window and returns how
// many were removed.
func (e *Executor[T]) Prune(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for key, ent := range e.entries {
		if ent.State == Loading {
			continue
		}
		if now.Sub(ent.UpdatedAt) >= e.policy.DedupingInterval {
			delete(e.entries, key)
			n++
		}
	}
	if n > 0 {
		e.logger.Debugf("pruned %d entries", n)
	}
	return n
}

func (e *Executor[T]) Stats() Stats {
	e.mu.Lock()
	n := len(e.entries)
	e.mu.Unlock()
	return Stats{
		Hits:         e.hits.Load(),
		Misses:       e.misses.Load(),
		Joins:        e.joins.Load(),
		NetworkCalls: e.calls.Load(),
		Retries:      e.retries.Load(),
		Failures:     e.failures.Load(),
		StoreHits:    e.storeHits.Load(),
		Entries:      n,
	}
}

// Close cancels in-flight fetches. Entries and subscriptions stay readable.
func (e *Executor[T]) Close() {
	e.cancel()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
