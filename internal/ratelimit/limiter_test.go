package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	records   []Record
	windowErr error
	recordErr error
	purgeErr  error
	purges    int
}

func (s *memoryStore) Window(_ context.Context, identifier, action string, since time.Time) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.windowErr != nil {
		return Window{}, s.windowErr
	}
	var w Window
	for _, r := range s.records {
		if r.Identifier != identifier || r.Action != action || !r.Timestamp.After(since) {
			continue
		}
		if w.Count == 0 || r.Timestamp.Before(w.Oldest) {
			w.Oldest = r.Timestamp
		}
		w.Count++
	}
	return w, nil
}

func (s *memoryStore) Record(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryStore) PurgeBefore(_ context.Context, action string, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purges++
	if s.purgeErr != nil {
		return 0, s.purgeErr
	}
	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if r.Action == action && r.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memoryStore) purgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purges
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(store Store, clock *fakeClock) *Limiter {
	return NewLimiter(store, WithClock(clock.Now), WithPurgeProbability(0))
}

func TestIsRateLimitedSlidingWindow(t *testing.T) {
	store := &memoryStore{}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(store, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.False(t, l.IsRateLimited(ctx, "actor", "verify", 5, 5*time.Minute), "call %d", i+1)
		clock.Advance(time.Second)
	}
	assert.True(t, l.IsRateLimited(ctx, "actor", "verify", 5, 5*time.Minute))
	assert.True(t, l.IsRateLimited(ctx, "actor", "verify", 5, 5*time.Minute))
	assert.Equal(t, 5, store.len(), "limited attempts are not recorded")

	clock.Advance(5 * time.Minute)
	assert.False(t, l.IsRateLimited(ctx, "actor", "verify", 5, 5*time.Minute))
}

func TestIdentifiersAndActionsAreIndependent(t *testing.T) {
	store := &memoryStore{}
	clock := &fakeClock{now: time.Now()}
	l := newTestLimiter(store, clock)
	ctx := context.Background()

	assert.False(t, l.IsRateLimited(ctx, "a", "verify", 1, time.Minute))
	assert.True(t, l.IsRateLimited(ctx, "a", "verify", 1, time.Minute))
	assert.False(t, l.IsRateLimited(ctx, "b", "verify", 1, time.Minute))
	assert.False(t, l.IsRateLimited(ctx, "a", "api_call", 1, time.Minute))
}

func TestAllowRetryAfterIsRemainingWindow(t *testing.T) {
	store := &memoryStore{}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := newTestLimiter(store, clock)
	attempt := Attempt{Identifier: "ip", Action: "verify", SourceIP: "10.0.0.1", MaxRequests: 2, Window: 300 * time.Second}

	d := l.Allow(context.Background(), attempt)
	assert.False(t, d.Limited)
	assert.Equal(t, 1, d.Remaining)

	clock.Advance(100 * time.Second)
	d = l.Allow(context.Background(), attempt)
	assert.False(t, d.Limited)
	assert.Equal(t, 0, d.Remaining)

	clock.Advance(50 * time.Second)
	d = l.Allow(context.Background(), attempt)
	require.True(t, d.Limited)
	assert.Equal(t, 150*time.Second, d.RetryAfter)

	clock.Advance(149*time.Second + 500*time.Millisecond)
	d = l.Allow(context.Background(), attempt)
	require.True(t, d.Limited)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestFailOpenWhenStoreMissing(t *testing.T) {
	store := &memoryStore{windowErr: errors.New(`relation "rate_limits" does not exist`)}
	l := newTestLimiter(store, &fakeClock{now: time.Now()})

	for i := 0; i < 10; i++ {
		assert.False(t, l.IsRateLimited(context.Background(), "actor", "verify", 1, time.Minute))
	}
	assert.Zero(t, store.len())
}

func TestFailOpenWhenRecordFails(t *testing.T) {
	store := &memoryStore{recordErr: errors.New("read-only transaction")}
	l := newTestLimiter(store, &fakeClock{now: time.Now()})

	for i := 0; i < 3; i++ {
		assert.False(t, l.IsRateLimited(context.Background(), "actor", "verify", 1, time.Minute))
	}
}

func TestFailOpenOnTimeout(t *testing.T) {
	l := NewLimiter(blockingStore{}, WithPurgeProbability(0), WithTimeout(10*time.Millisecond))

	start := time.Now()
	assert.False(t, l.IsRateLimited(context.Background(), "actor", "verify", 1, time.Minute))
	assert.Less(t, time.Since(start), time.Second)
}

type blockingStore struct{}

func (blockingStore) Window(ctx context.Context, _, _ string, _ time.Time) (Window, error) {
	<-ctx.Done()
	return Window{}, ctx.Err()
}

func (blockingStore) Record(ctx context.Context, _ Record) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) PurgeBefore(ctx context.Context, _ string, _ time.Time) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestPurgeRemovesRecordsOlderThanTwoWindows(t *testing.T) {
	store := &memoryStore{}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(store, WithClock(clock.Now), WithPurgeProbability(1), WithRandom(func() float64 { return 0 }))
	ctx := context.Background()

	store.records = []Record{
		{Identifier: "old", Action: "verify", Timestamp: clock.now.Add(-11 * time.Minute)},
		{Identifier: "recent", Action: "verify", Timestamp: clock.now.Add(-9 * time.Minute)},
		{Identifier: "other", Action: "api_call", Timestamp: clock.now.Add(-time.Hour)},
	}

	assert.False(t, l.IsRateLimited(ctx, "actor", "verify", 5, 5*time.Minute))
	assert.Eventually(t, func() bool { return store.purgeCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return store.len() == 3 }, time.Second, 5*time.Millisecond)
}

func TestPurgeFailureDoesNotAffectDecision(t *testing.T) {
	store := &memoryStore{purgeErr: errors.New("boom")}
	l := NewLimiter(store, WithPurgeProbability(1), WithRandom(func() float64 { return 0 }))

	assert.False(t, l.IsRateLimited(context.Background(), "actor", "verify", 5, time.Minute))
	assert.Eventually(t, func() bool { return store.purgeCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPurgeSkippedAboveProbability(t *testing.T) {
	store := &memoryStore{}
	l := NewLimiter(store, WithPurgeProbability(0.01), WithRandom(func() float64 { return 0.5 }))

	l.IsRateLimited(context.Background(), "actor", "verify", 5, time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, store.purgeCount())
}

func TestRemaining(t *testing.T) {
	store := &memoryStore{}
	clock := &fakeClock{now: time.Now()}
	l := newTestLimiter(store, clock)
	a := Attempt{Identifier: "key:1", Action: "api_call", MaxRequests: 3, Window: 24 * time.Hour}

	assert.Equal(t, 3, l.Remaining(context.Background(), a))
	l.Allow(context.Background(), a)
	assert.Equal(t, 2, l.Remaining(context.Background(), a))
	assert.Equal(t, 1, store.len(), "Remaining does not record")

	store.windowErr = errors.New("down")
	assert.Equal(t, 3, l.Remaining(context.Background(), a))
}
