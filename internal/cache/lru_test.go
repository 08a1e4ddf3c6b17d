package cache

import (
	"testing"
	"time"
)

func TestLRUGetSet(t *testing.T) {
	c := New[[]string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("hit on empty cache")
	}

	c.Set("a", []string{"Food"})
	got, ok := c.Get("a")
	if !ok || len(got) != 1 || got[0] != "Food" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a, the least recently used

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry not evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUTTL(t *testing.T) {
	c := New[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry still served")
	}

	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d, want 0", c.Size())
	}
}

func TestLRUDelete(t *testing.T) {
	c := New[int](10, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted entry still served")
	}
	// Deleting a missing key is a no-op.
	c.Delete("a")
}
