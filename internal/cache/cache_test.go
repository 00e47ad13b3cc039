package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string, int](10, time.Minute)
	loads := 0

	loader := func() (int, error) {
		loads++
		return 42, nil
	}

	v, err := c.GetOrLoad("a", loader)
	if err != nil || v != 42 {
		t.Fatalf("GetOrLoad = %d, %v; want 42, nil", v, err)
	}
	if loads != 1 {
		t.Fatalf("loads = %d; want 1", loads)
	}

	// Second call hits cache; loader is not invoked again.
	v, err = c.GetOrLoad("a", loader)
	if err != nil || v != 42 {
		t.Fatalf("GetOrLoad = %d, %v; want 42, nil", v, err)
	}
	if loads != 1 {
		t.Fatalf("loads = %d; want 1 (should not reload)", loads)
	}
}

func TestCache_GetOrLoad_TTLExpiry(t *testing.T) {
	c := New[string, int](10, 10*time.Millisecond)
	loads := 0
	loader := func() (int, error) {
		loads++
		return loads, nil
	}

	v, _ := c.GetOrLoad("a", loader)
	if v != 1 {
		t.Fatalf("first load = %d; want 1", v)
	}

	time.Sleep(15 * time.Millisecond)

	v, _ = c.GetOrLoad("a", loader)
	if v != 2 {
		t.Fatalf("load after TTL expiry = %d; want 2 (reloaded)", v)
	}
}

func TestCache_GetOrLoad_LRUEviction(t *testing.T) {
	c := New[string, int](2, time.Minute)

	c.GetOrLoad("a", func() (int, error) { return 1, nil })
	c.GetOrLoad("b", func() (int, error) { return 2, nil })
	// "a" now least recently used; adding "c" evicts it.
	c.GetOrLoad("c", func() (int, error) { return 3, nil })

	loads := 0
	v, _ := c.GetOrLoad("a", func() (int, error) { loads++; return 99, nil })
	if v != 99 || loads != 1 {
		t.Fatalf("expected 'a' to have been evicted and reloaded; got v=%d loads=%d", v, loads)
	}
}

func TestCache_GetOrLoad_Error(t *testing.T) {
	c := New[string, int](10, time.Minute)
	errDB := errors.New("db error")

	v, err := c.GetOrLoad("a", func() (int, error) {
		return 0, errDB
	})
	if !errors.Is(err, errDB) {
		t.Fatalf("err = %v; want %v", err, errDB)
	}
	if v != 0 {
		t.Fatalf("value = %d; want 0", v)
	}

	// An error result is not cached — a retry calls loadFn again.
	loads := 0
	v, err = c.GetOrLoad("a", func() (int, error) {
		loads++
		return 7, nil
	})
	if err != nil || v != 7 || loads != 1 {
		t.Fatalf("expected reload after prior error; got v=%d err=%v loads=%d", v, err, loads)
	}
}

func TestCache_GetOrLoad_Singleflight(t *testing.T) {
	c := New[string, int](10, time.Minute)
	var loadCount atomic.Int32

	loader := func() (int, error) {
		loadCount.Add(1)
		time.Sleep(50 * time.Millisecond)
		return 99, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad("key", loader)
			if err != nil || v != 99 {
				t.Errorf("GetOrLoad = %d, %v; want 99, nil", v, err)
			}
		}()
	}
	wg.Wait()

	if n := loadCount.Load(); n != 1 {
		t.Fatalf("load count = %d; want 1 (singleflight)", n)
	}
}

func TestCache_GetOrLoad_ConcurrentDistinctKeys(t *testing.T) {
	c := New[int, int](100, time.Minute)
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v, err := c.GetOrLoad(n, func() (int, error) { return n * 10, nil })
			if err != nil || v != n*10 {
				t.Errorf("GetOrLoad(%d) = %d, %v; want %d, nil", n, v, err, n*10)
			}
		}(i)
	}
	wg.Wait()
}
