package reqcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryStoreExpiry(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore()
	s.now = clock.Now
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if b, ok, _ := s.Get(ctx, "k"); !ok || string(b) != "v" {
		t.Fatalf("Get() = %q, %v", b, ok)
	}
	clock.Advance(time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("item should have expired")
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	defer client.Close()

	s := NewRedisStore(client, "")
	if _, ok, err := s.Get(ctx, "/search?query=go"); err != nil || ok {
		t.Fatalf("Get() on empty store = %v, %v", ok, err)
	}
	if err := s.Set(ctx, "/search?query=go", []byte(`{"total_jobs":1}`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists(DefaultRedisPrefix + "/search?query=go") {
		t.Fatal("key not written with prefix")
	}
	b, ok, err := s.Get(ctx, "/search?query=go")
	if err != nil || !ok || string(b) != `{"total_jobs":1}` {
		t.Fatalf("Get() = %q, %v, %v", b, ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "/search?query=go"); ok {
		t.Fatal("key should have expired")
	}
}

func TestRedisStoreBacksExecutor(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := NewRedisClient(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	store := NewRedisStore(client, "test:")
	a := New[map[string]int](testPolicy(), WithStore(store))
	b := New[map[string]int](testPolicy(), WithStore(store))
	defer a.Close()
	defer b.Close()

	calls := 0
	fetch := func(ctx context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"total": 7}, nil
	}
	a.Fetch(ctx, "k", fetch)
	r := b.Fetch(ctx, "k", fetch)
	if r.State != Success || r.Value["total"] != 7 {
		t.Fatalf("Fetch() = %+v", r)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNewRedisClientBadURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "not a url"); err == nil {
		t.Fatal("expected error")
	}
}
