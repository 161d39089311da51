package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

// fakeKV is an in-memory kvStore
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
}

var _ kvStore = (*fakeKV)(nil)

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func testBoard(t *testing.T) *planner.Board {
	t.Helper()
	trip, err := models.NewPeriodPlan("旅行", models.PeriodSpring, nil, testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	book, err := models.NewAnytimePlan("本を読む", nil, testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return planner.BuildBoard([]*models.Plan{trip, book}, testNow)
}

func TestBoardCache_RoundTrip(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	cache := &BoardCache{client: kv, key: DefaultBoardKey, ttl: DefaultBoardTTL}
	board := testBoard(t)

	if err := cache.Set(context.Background(), board); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if kv.ttls[DefaultBoardKey] != DefaultBoardTTL {
		t.Errorf("Expected TTL %v, got %v", DefaultBoardTTL, kv.ttls[DefaultBoardKey])
	}

	got, err := cache.Get(context.Background(), testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got.Someday) != 1 || got.Someday[0].Plan.Title != "本を読む" {
		t.Errorf("Expected someday backlog to survive the round trip, got %+v", got.Someday)
	}
	if len(got.Sections) != len(board.Sections) {
		t.Errorf("Expected %d sections, got %d", len(board.Sections), len(got.Sections))
	}
}

func TestBoardCache_StaleDayIsMiss(t *testing.T) {
	t.Parallel()

	cache := &BoardCache{client: newFakeKV(), key: DefaultBoardKey, ttl: DefaultBoardTTL}
	if err := cache.Set(context.Background(), testBoard(t)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	tomorrow := time.Date(2026, 10, 17, 0, 0, 1, 0, time.UTC)
	if _, err := cache.Get(context.Background(), tomorrow); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after midnight, got %v", err)
	}
}

func TestBoardCache_DeadlinePassedIsMiss(t *testing.T) {
	t.Parallel()

	morning := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	due := time.Date(2026, time.October, 16, 15, 0, 0, 0, time.UTC)
	gift, err := models.NewDeadlinePlan("プレゼントを買う", models.DeadlineCustom, &due, nil, morning)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ctx := context.Background()
	cache := &BoardCache{client: newFakeKV(), key: DefaultBoardKey, ttl: DefaultBoardTTL}
	if err := cache.Set(ctx, planner.BuildBoard([]*models.Plan{gift}, morning)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	tests := []struct {
		name     string
		now      time.Time
		wantMiss bool
	}{
		{"before the deadline", time.Date(2026, time.October, 16, 14, 0, 0, 0, time.UTC), false},
		{"at the deadline", due, false},
		{"after the deadline", time.Date(2026, time.October, 16, 16, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := cache.Get(ctx, tt.now)
			if got := errors.Is(err, ErrCacheMiss); got != tt.wantMiss {
				t.Errorf("Expected miss=%v, got %v", tt.wantMiss, err)
			}
		})
	}
}

func TestBoardCache_MissAndInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := &BoardCache{client: newFakeKV(), key: DefaultBoardKey, ttl: DefaultBoardTTL}
	if _, err := cache.Get(ctx, testNow); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss on empty cache, got %v", err)
	}

	_ = cache.Set(ctx, testBoard(t))
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := cache.Get(ctx, testNow); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after invalidate, got %v", err)
	}
}

func TestBoardCache_ReadError(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	kv.failGet = errors.New("connection refused")
	cache := &BoardCache{client: kv, key: DefaultBoardKey, ttl: DefaultBoardTTL}
	_, err := cache.Get(context.Background(), testNow)
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected read error distinct from a miss, got %v", err)
	}
}
