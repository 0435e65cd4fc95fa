package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, prefix string) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheHelper(client, prefix), mr
}

type cachedExam struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheHelper_SetGet(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t, "exam:")

	want := cachedExam{ID: 42, Title: "Go Fundamentals"}
	if err := helper.Set(ctx, "id:42", want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "id:42", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestCacheHelper_GetMissing(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t, "exam:")

	var got cachedExam
	if err := helper.Get(ctx, "id:99", &got); err != ErrCacheNotFound {
		t.Errorf("Get() error = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelper_NilClient(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(nil, "exam:")

	if err := helper.Set(ctx, "id:1", cachedExam{ID: 1}, time.Minute); err != nil {
		t.Errorf("Set() with nil client error = %v, want nil", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "id:1", &got); err != ErrCacheNotAvailable {
		t.Errorf("Get() with nil client error = %v, want ErrCacheNotAvailable", err)
	}

	if err := helper.Delete(ctx, "id:1"); err != nil {
		t.Errorf("Delete() with nil client error = %v, want nil", err)
	}
}

func TestCacheHelper_Delete(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t, "submission:")

	for i := 1; i <= 3; i++ {
		if err := helper.Set(ctx, fmt.Sprintf("id:%d", i), cachedExam{ID: uint(i)}, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	if err := helper.Delete(ctx, "id:1", "id:2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "id:1", &got); err != ErrCacheNotFound {
		t.Errorf("Get() after delete error = %v, want ErrCacheNotFound", err)
	}
	if err := helper.Get(ctx, "id:3", &got); err != nil {
		t.Errorf("Get() for surviving key error = %v", err)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t, "submission:")

	if err := helper.Set(ctx, "queue:page:1", []uint{1, 2}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := helper.Set(ctx, "queue:page:2", []uint{3}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := helper.Set(ctx, "id:7", cachedExam{ID: 7}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := helper.InvalidatePattern(ctx, "queue:*"); err != nil {
		t.Fatalf("InvalidatePattern() error = %v", err)
	}

	var pages []uint
	if err := helper.Get(ctx, "queue:page:1", &pages); err != ErrCacheNotFound {
		t.Errorf("Get() queue page error = %v, want ErrCacheNotFound", err)
	}

	var got cachedExam
	if err := helper.Get(ctx, "id:7", &got); err != nil {
		t.Errorf("Get() for unrelated key error = %v", err)
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestCache(t, "stats:")

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedExam{ID: 5, Title: "fetched"}, nil
	}

	var got cachedExam
	if err := helper.CacheOrExecute(ctx, "exam:5", &got, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
	if got.Title != "fetched" {
		t.Errorf("Title = %q, want %q", got.Title, "fetched")
	}

	// The write-behind goroutine fills the cache; wait for the key.
	waitForKey(t, mr, "stats:exam:5")

	var cached cachedExam
	if err := helper.CacheOrExecute(ctx, "exam:5", &cached, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute() second call error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch calls after cache hit = %d, want 1", calls)
	}
	if cached != got {
		t.Errorf("cached value = %+v, want %+v", cached, got)
	}
}

func TestCacheManager_HealthCheck(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cm := NewCacheManager(client)
	if err := cm.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	degraded := NewCacheManager(nil)
	if err := degraded.HealthCheck(ctx); err != ErrCacheNotAvailable {
		t.Errorf("HealthCheck() without client error = %v, want ErrCacheNotAvailable", err)
	}
}

func waitForKey(t *testing.T, mr *miniredis.Miniredis, key string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mr.Exists(key) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("key %q never appeared in cache", key)
}
