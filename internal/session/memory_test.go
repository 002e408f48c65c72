package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/quantfolio/guidelines/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(opts ...Option) (*Memory, *fakeClock) {
	clock := newFakeClock()
	opts = append(opts, withClock(clock.Now))
	return NewMemory(log.NewNop(), opts...), clock
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()

	id, err := m.Create(ctx, map[string]string{"collection_id": "fund-x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Append(ctx, id, Turn{Role: "user", Content: "what are the issuer limits?"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Append(ctx, id, Turn{Role: "assistant", Content: "5% per issuer."}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	turns, err := m.History(ctx, id, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("turns = %+v", turns)
	}

	info, err := m.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info.TurnCount != 2 || info.Context["collection_id"] != "fund-x" {
		t.Errorf("info = %+v", info)
	}

	if err := m.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.History(ctx, id, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err after delete = %v", err)
	}
	// Deleting again is a no-op.
	if err := m.Delete(ctx, id); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSessionNotFound(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()

	if _, err := m.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if err := m.Append(ctx, "nope", Turn{Role: "user", Content: "hi"}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Append err = %v", err)
	}
	if err := m.UpdateContext(ctx, "nope", map[string]string{"k": "v"}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("UpdateContext err = %v", err)
	}
}

func TestWindowDiscardsOldestTurns(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore(WithWindow(3))

	id, _ := m.Create(ctx, nil)
	for i := 0; i < 5; i++ {
		if err := m.Append(ctx, id, Turn{Role: "user", Content: fmt.Sprintf("turn %d", i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	turns, err := m.History(ctx, id, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("retained = %d, want 3", len(turns))
	}
	if turns[0].Content != "turn 2" || turns[2].Content != "turn 4" {
		t.Errorf("window = %q .. %q", turns[0].Content, turns[2].Content)
	}
}

func TestHistoryLimitReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()

	id, _ := m.Create(ctx, nil)
	for i := 0; i < 5; i++ {
		if err := m.Append(ctx, id, Turn{Role: "user", Content: fmt.Sprintf("turn %d", i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	turns, err := m.History(ctx, id, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 || turns[0].Content != "turn 3" || turns[1].Content != "turn 4" {
		t.Errorf("limited history = %+v, want last two turns", turns)
	}

	// A limit past the retained count returns everything retained.
	all, err := m.History(ctx, id, 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("retained = %d, want 5", len(all))
	}
}

func TestTurnCountOutlivesWindow(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore(WithWindow(3))

	id, _ := m.Create(ctx, nil)
	for i := 0; i < 5; i++ {
		if err := m.Append(ctx, id, Turn{Role: "user", Content: fmt.Sprintf("turn %d", i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	info, err := m.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info.TurnCount != 5 {
		t.Errorf("TurnCount = %d, want 5 despite window of 3", info.TurnCount)
	}
}

func TestIdleExpiry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestStore(WithIdleTimeout(time.Hour))

	id, _ := m.Create(ctx, nil)

	// Activity inside the timeout keeps the session alive.
	clock.Advance(50 * time.Minute)
	if err := m.Append(ctx, id, Turn{Role: "user", Content: "still here"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	clock.Advance(61 * time.Minute)
	if _, err := m.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired session Get err = %v", err)
	}

	stats, _ := m.Stats(ctx)
	if stats.Active != 0 || stats.Expired != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExpireIdleSweep(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestStore(WithIdleTimeout(time.Hour))

	for i := 0; i < 3; i++ {
		_, _ = m.Create(ctx, nil)
	}
	clock.Advance(30 * time.Minute)
	fresh, _ := m.Create(ctx, nil)
	clock.Advance(45 * time.Minute)

	n, err := m.ExpireIdle(ctx)
	if err != nil {
		t.Fatalf("ExpireIdle: %v", err)
	}
	if n != 3 {
		t.Errorf("expired = %d, want 3", n)
	}
	if _, err := m.Get(ctx, fresh); err != nil {
		t.Errorf("fresh session expired: %v", err)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestStore(WithMaxSessions(2))

	first, _ := m.Create(ctx, nil)
	clock.Advance(time.Minute)
	second, _ := m.Create(ctx, nil)
	clock.Advance(time.Minute)

	// Touch the first so the second becomes the eviction candidate.
	if err := m.Append(ctx, first, Turn{Role: "user", Content: "keepalive"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	clock.Advance(time.Minute)

	third, _ := m.Create(ctx, nil)

	if _, err := m.Get(ctx, second); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("least recently active session should be evicted, err = %v", err)
	}
	if _, err := m.Get(ctx, first); err != nil {
		t.Errorf("recently active session evicted: %v", err)
	}
	if _, err := m.Get(ctx, third); err != nil {
		t.Errorf("new session missing: %v", err)
	}

	stats, _ := m.Stats(ctx)
	if stats.Evicted != 1 {
		t.Errorf("Evicted = %d, want 1", stats.Evicted)
	}
}

func TestUpdateContextMergeAndDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()

	id, _ := m.Create(ctx, map[string]string{"collection_id": "fund-x", "mode": "hybrid"})

	err := m.UpdateContext(ctx, id, map[string]string{
		"collection_id": "fund-y", // overwrite
		"mode":          "",       // delete
		"topic":         "limits", // add
	})
	if err != nil {
		t.Fatalf("UpdateContext: %v", err)
	}

	info, _ := m.Get(ctx, id)
	if info.Context["collection_id"] != "fund-y" || info.Context["topic"] != "limits" {
		t.Errorf("context = %v", info.Context)
	}
	if _, ok := info.Context["mode"]; ok {
		t.Errorf("empty value should delete key: %v", info.Context)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore()

	id, _ := m.Create(ctx, map[string]string{"k": "v"})
	info, _ := m.Get(ctx, id)
	info.Context["k"] = "mutated"

	again, _ := m.Get(ctx, id)
	if again.Context["k"] != "v" {
		t.Error("Get must return an isolated context copy")
	}
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestStore(WithWindow(1000))

	id, _ := m.Create(ctx, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = m.Append(ctx, id, Turn{Role: "user", Content: fmt.Sprintf("g%d-%d", n, j)})
			}
		}(i)
	}
	wg.Wait()

	turns, err := m.History(ctx, id, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 200 {
		t.Errorf("turns = %d, want 200", len(turns))
	}
}

func TestSweeperStopsWithContext(t *testing.T) {
	m := NewMemory(log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	m.StartSweeper(ctx, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	// goleak in TestMain fails the run if the sweeper goroutine leaks.
	time.Sleep(30 * time.Millisecond)
}
