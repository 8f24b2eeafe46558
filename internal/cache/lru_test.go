package cache

import (
	"testing"
	"time"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string, int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("size = %d", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache[int, string](10, time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(1, "one")
	c.Set(2, "two")
	now = now.Add(30 * time.Second)
	c.Set(3, "three")

	now = now.Add(45 * time.Second)
	if _, ok := c.Get(1); ok {
		t.Error("expired item returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired removed %d, want 1", n)
	}
	if v, ok := c.Get(3); !ok || v != "three" {
		t.Errorf("live item lost: %q %v", v, ok)
	}
}

func TestLRUCacheDeleteFuncAndPurge(t *testing.T) {
	c := NewLRUCache[int, int](10, time.Minute)
	for i := 1; i <= 6; i++ {
		c.Set(i, i*i)
	}
	if n := c.DeleteFunc(func(k int) bool { return k >= 4 }); n != 3 {
		t.Fatalf("DeleteFunc removed %d, want 3", n)
	}
	if _, ok := c.Get(5); ok {
		t.Error("5 should be gone")
	}
	if v, ok := c.Get(2); !ok || v != 4 {
		t.Errorf("2 = %d, %v", v, ok)
	}

	c.Delete(2)
	if _, ok := c.Get(2); ok {
		t.Error("2 should be gone")
	}

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("size after purge = %d", c.Size())
	}
	c.Set(7, 49)
	if v, ok := c.Get(7); !ok || v != 49 {
		t.Error("cache unusable after purge")
	}
}

func TestManagerStop(t *testing.T) {
	c := NewLRUCache[int, int](1, time.Nanosecond)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(time.Millisecond)
	c.Set(1, 1)
	deadline := time.Now().Add(time.Second)
	for c.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	m.Stop()
	if c.Size() != 0 {
		t.Errorf("expired item survived cleanup: size %d", c.Size())
	}
}
