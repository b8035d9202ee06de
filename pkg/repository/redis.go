package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/similarity"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/redis/go-redis/v9"
)

const (
	redisEntryPrefix = "kioku:entry:"
	redisIndexKey    = "kioku:index"

	redisDialTimeout = 5 * time.Second
)

// Redis is the keyed-store backend. Each memory is one JSON entry keyed by
// id. An append-only list of ids keeps insertion order; it is advisory for
// ordering only. Search is a linear scan over all entries ranked by the
// similarity engine, so cost grows with the number of stored memories.
type Redis struct {
	client *redis.Client
}

type redisEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRedis creates a Redis-backed repository
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: redisDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to connect to redis",
			goerr.V("addr", addr))
	}

	return &Redis{client: client}, nil
}

func (x *Redis) Put(ctx context.Context, mem *model.Memory) error {
	entry := redisEntry{
		ID:        string(mem.ID),
		Content:   mem.Content,
		Embedding: mem.Embedding,
		CreatedAt: mem.CreatedAt,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal memory entry",
			goerr.V("id", mem.ID),
			goerr.T(model.TagStorageWriteFailed))
	}

	// Entry first, index second. Once the entry write succeeds the record
	// exists; a failed index append only degrades ordering, and readers
	// recover it via the key-space scan fallback.
	if err := x.client.Set(ctx, redisEntryPrefix+entry.ID, data, 0).Err(); err != nil {
		return goerr.Wrap(err, "failed to write memory entry",
			goerr.V("id", mem.ID),
			goerr.T(model.TagStorageWriteFailed))
	}

	if err := x.client.RPush(ctx, redisIndexKey, entry.ID).Err(); err != nil {
		logging.From(ctx).Warn("failed to append memory id to index, entry remains reachable via scan",
			"id", mem.ID, "error", err)
	}

	return nil
}

func (x *Redis) List(ctx context.Context) ([]*model.Memory, error) {
	entries, err := x.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	memories := make([]*model.Memory, 0, len(entries))
	for _, e := range entries {
		memories = append(memories, &model.Memory{
			ID:        model.MemoryID(e.ID),
			Content:   e.Content,
			CreatedAt: e.CreatedAt,
		})
	}

	return memories, nil
}

func (x *Redis) Search(ctx context.Context, embedding []float32, limit int) ([]*model.SearchResult, error) {
	entries, err := x.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]similarity.Candidate, 0, len(entries))
	byID := make(map[model.MemoryID]*redisEntry, len(entries))
	for i := range entries {
		e := &entries[i]
		candidates = append(candidates, similarity.Candidate{
			ID:     model.MemoryID(e.ID),
			Vector: e.Embedding,
		})
		byID[model.MemoryID(e.ID)] = e
	}

	scored, err := similarity.Rank(embedding, candidates, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*model.SearchResult, 0, len(scored))
	for _, s := range scored {
		e := byID[s.ID]
		results = append(results, &model.SearchResult{
			ID:        s.ID,
			Content:   e.Content,
			Score:     s.Score,
			CreatedAt: e.CreatedAt,
		})
	}

	return results, nil
}

// loadAll returns every stored entry in insertion order. The id index is
// trusted only while it agrees with the key space; on count mismatch the
// working set is rebuilt from a full scan so orphaned entries stay visible.
func (x *Redis) loadAll(ctx context.Context) ([]redisEntry, error) {
	ids, err := x.client.LRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read memory index",
			goerr.T(model.TagStorageReadFailed))
	}

	keys, err := x.scanEntryKeys(ctx)
	if err != nil {
		return nil, err
	}

	if len(ids) == len(keys) {
		keys = make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, redisEntryPrefix+id)
		}
		return x.fetchEntries(ctx, keys, false)
	}

	logging.From(ctx).Warn("memory index out of sync with key space, falling back to scan",
		"index_count", len(ids), "key_count", len(keys))
	return x.fetchEntries(ctx, keys, true)
}

func (x *Redis) scanEntryKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := x.client.Scan(ctx, 0, redisEntryPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to scan memory keys",
			goerr.T(model.TagStorageReadFailed))
	}
	return keys, nil
}

func (x *Redis) fetchEntries(ctx context.Context, keys []string, sortByTime bool) ([]redisEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := x.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch memory entries",
			goerr.T(model.TagStorageReadFailed))
	}

	entries := make([]redisEntry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Indexed id without an entry; skip rather than fail the read
			logging.From(ctx).Warn("memory entry missing for indexed key", "key", keys[i])
			continue
		}

		var entry redisEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory entry",
				goerr.V("key", keys[i]),
				goerr.T(model.TagStorageReadFailed))
		}
		entries = append(entries, entry)
	}

	// Scan order is arbitrary; restore insertion order from timestamps
	if sortByTime {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})
	}

	return entries, nil
}

func (x *Redis) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close redis client")
	}
	return nil
}
