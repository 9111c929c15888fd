package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sakethtadimeti/checkin-app/common/models"
)

type entry struct {
	value string
	ttl   time.Duration
}

type fakeRedis struct {
	data    map[string]entry
	mgetErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]entry)}
}

func (f *fakeRedis) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	if f.mgetErr != nil {
		return redis.NewSliceResult(nil, f.mgetErr)
	}
	values := make([]interface{}, len(keys))
	for i, k := range keys {
		if e, ok := f.data[k]; ok {
			values[i] = e.value
		}
	}
	return redis.NewSliceResult(values, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	pipe := &fakePipe{parent: f}
	return nil, fn(pipe)
}

// fakePipe implements only Set; other Pipeliner methods panic if called.
type fakePipe struct {
	redis.Pipeliner
	parent *fakeRedis
}

func (p *fakePipe) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	var s string
	switch v := value.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	}
	p.parent.data[key] = entry{value: s, ttl: expiration}
	return redis.NewStatusResult("OK", nil)
}

func TestUserCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	c := NewUserCache(rdb, 5*time.Minute)

	users := []models.UserSummary{
		{ID: "u1", Name: "Alice", Email: "alice@example.com"},
		{ID: "u2", Name: "Bob", Email: "bob@example.com"},
	}
	if err := c.SetMany(ctx, users); err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	if got := rdb.data[UserKey("u1")].ttl; got != 5*time.Minute {
		t.Fatalf("ttl = %v", got)
	}

	found, err := c.GetMany(ctx, []string{"u1", "u3", "u2"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(found) != 2 || found["u2"].Name != "Bob" {
		t.Fatalf("found = %+v", found)
	}

	if err := c.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	found, _ = c.GetMany(ctx, []string{"u1"})
	if len(found) != 0 {
		t.Fatalf("evicted entry still returned: %+v", found)
	}
}

func TestUserCacheSkipsCorruptEntries(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data[UserKey("u1")] = entry{value: "{not json"}

	found, err := NewUserCache(rdb, time.Minute).GetMany(context.Background(), []string{"u1"})
	if err != nil || len(found) != 0 {
		t.Fatalf("GetMany = %+v, %v", found, err)
	}
}

func TestUserCacheReadError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.mgetErr = errors.New("connection refused")

	if _, err := NewUserCache(rdb, time.Minute).GetMany(context.Background(), []string{"u1"}); err == nil {
		t.Fatalf("expected error")
	}
}
