package api

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
)

func TestCountsCache_ConcurrentCallsShareSingleLoad(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	cache := newCountsCache(func(ctx context.Context) (db.Counts, error) {
		calls.Add(1)
		<-release
		return db.Counts{Notes: 3}, nil
	}, time.Minute)

	var wg sync.WaitGroup
	results := make([]db.Counts, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := cache.Counts(context.Background())
			if err != nil {
				t.Errorf("Counts: %v", err)
			}
			results[i] = c
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 load, got %d", n)
	}
	for i, c := range results {
		if c.Notes != 3 {
			t.Errorf("result %d = %+v", i, c)
		}
	}
}

func TestCountsCache_TTLAndInvalidate(t *testing.T) {
	var calls atomic.Int32
	cache := newCountsCache(func(ctx context.Context) (db.Counts, error) {
		n := calls.Add(1)
		return db.Counts{Clients: int(n)}, nil
	}, time.Hour)

	first, _ := cache.Counts(context.Background())
	second, _ := cache.Counts(context.Background())
	if first != second || calls.Load() != 1 {
		t.Fatalf("expected cached result, got %+v then %+v after %d loads", first, second, calls.Load())
	}

	cache.Invalidate()
	third, _ := cache.Counts(context.Background())
	if third.Clients != 2 {
		t.Errorf("expected reload after Invalidate, got %+v", third)
	}
}

func TestCountsCache_ErrorsNotCached(t *testing.T) {
	fail := true
	cache := newCountsCache(func(ctx context.Context) (db.Counts, error) {
		if fail {
			return db.Counts{}, errors.New("db down")
		}
		return db.Counts{Projects: 1}, nil
	}, time.Hour)

	if _, err := cache.Counts(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	c, err := cache.Counts(context.Background())
	if err != nil || c.Projects != 1 {
		t.Errorf("expected fresh load after error, got %+v, %v", c, err)
	}
}
