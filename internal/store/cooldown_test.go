package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCooldownBlocksWithinWindow(t *testing.T) {
	s := NewMemoryCooldownStore()
	current := time.Now()
	s.SetClock(func() time.Time { return current })
	ctx := context.Background()

	ok, err := s.TryAcquire(ctx, "user-1", 5*time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire should win: ok=%v err=%v", ok, err)
	}

	current = current.Add(10 * time.Second)
	ok, err = s.TryAcquire(ctx, "user-1", 5*time.Minute)
	if err != nil || ok {
		t.Fatalf("acquire inside window should lose: ok=%v err=%v", ok, err)
	}

	current = current.Add(6 * time.Minute)
	ok, err = s.TryAcquire(ctx, "user-1", 5*time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after window should win: ok=%v err=%v", ok, err)
	}
}

func TestCooldownPerUser(t *testing.T) {
	s := NewMemoryCooldownStore()
	ctx := context.Background()

	if ok, _ := s.TryAcquire(ctx, "user-1", time.Minute); !ok {
		t.Fatal("user-1 first acquire should win")
	}
	if ok, _ := s.TryAcquire(ctx, "user-2", time.Minute); !ok {
		t.Fatal("user-2 must not be blocked by user-1's cooldown")
	}
}

func TestCooldownConcurrentRace(t *testing.T) {
	s := NewMemoryCooldownStore()
	ctx := context.Background()

	const attempts = 32
	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryAcquire(ctx, "user-1", time.Minute)
			if err != nil {
				t.Errorf("TryAcquire err: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("exactly one concurrent attempt must win, got %d", wins)
	}
}
