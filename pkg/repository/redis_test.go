package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
)

func setupRedis(t *testing.T) *Redis {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR must be set to run Redis tests")
	}

	repo, err := NewRedis(context.Background(), addr, os.Getenv("TEST_REDIS_PASSWORD"), 0)
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// Dedicated test instance; start from a clean key space
	gt.NoError(t, repo.client.FlushDB(context.Background()).Err())

	return repo
}

func redisMemory(content string, embedding []float32, at time.Time) *model.Memory {
	return &model.Memory{
		ID:        model.NewMemoryID(),
		Content:   content,
		Embedding: embedding,
		CreatedAt: at,
	}
}

func TestRedisPutAndList(t *testing.T) {
	repo := setupRedis(t)
	ctx := context.Background()

	now := time.Now()
	first := redisMemory("first", []float32{1, 0}, now)
	second := redisMemory("second", []float32{0, 1}, now.Add(time.Millisecond))

	gt.NoError(t, repo.Put(ctx, first))
	gt.NoError(t, repo.Put(ctx, second))

	listed, err := repo.List(ctx)
	gt.NoError(t, err)
	gt.A(t, listed).Length(2)
	gt.Equal(t, listed[0].ID, first.ID)
	gt.Equal(t, listed[0].Content, "first")
	gt.Equal(t, listed[1].ID, second.ID)
}

func TestRedisListEmpty(t *testing.T) {
	repo := setupRedis(t)

	listed, err := repo.List(context.Background())
	gt.NoError(t, err)
	gt.A(t, listed).Length(0)
}

func TestRedisSearch(t *testing.T) {
	repo := setupRedis(t)
	ctx := context.Background()

	now := time.Now()
	gt.NoError(t, repo.Put(ctx, redisMemory("foo", []float32{1, 0, 0}, now)))
	gt.NoError(t, repo.Put(ctx, redisMemory("bar", []float32{0, 1, 0}, now.Add(time.Millisecond))))
	gt.NoError(t, repo.Put(ctx, redisMemory("foobar", []float32{1, 1, 0}, now.Add(2*time.Millisecond))))

	results, err := repo.Search(ctx, []float32{1, 1, 0}, 2)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].Content, "foobar")
	gt.True(t, results[0].Score >= results[1].Score)
}

func TestRedisSearchEmpty(t *testing.T) {
	repo := setupRedis(t)

	results, err := repo.Search(context.Background(), []float32{1, 0}, 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestRedisIndexFallback(t *testing.T) {
	repo := setupRedis(t)
	ctx := context.Background()

	now := time.Now()
	first := redisMemory("first", []float32{1, 0}, now)
	second := redisMemory("second", []float32{0, 1}, now.Add(time.Millisecond))

	gt.NoError(t, repo.Put(ctx, first))
	gt.NoError(t, repo.Put(ctx, second))

	// Drop the advisory index; entries must stay reachable via the scan
	// fallback, ordered by stored timestamps
	gt.NoError(t, repo.client.Del(ctx, redisIndexKey).Err())

	listed, err := repo.List(ctx)
	gt.NoError(t, err)
	gt.A(t, listed).Length(2)
	gt.Equal(t, listed[0].ID, first.ID)
	gt.Equal(t, listed[1].ID, second.ID)

	results, err := repo.Search(ctx, []float32{1, 0}, 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].Content, "first")
}

func TestRedisDimensionMismatch(t *testing.T) {
	repo := setupRedis(t)
	ctx := context.Background()

	gt.NoError(t, repo.Put(ctx, redisMemory("entry", []float32{1, 0, 0}, time.Now())))

	_, err := repo.Search(ctx, []float32{1, 0}, 5)
	gt.Error(t, err)
}
