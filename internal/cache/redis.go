package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Yemba/vistatv-live-dashboard/internal/stats"
)

const scopesKey = "snapshot:scopes"

func snapshotKey(scope string) string {
	return "snapshot:" + scope
}

// RedisStore keeps the per-scope snapshots in Redis so several instances
// can share one latest-state view. Values are the record's JSON; the
// scope set tracks which snapshot keys exist.
type RedisStore struct {
	rdb *goredis.Client
}

func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Put(ctx context.Context, scope string, rec stats.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %q: %w", scope, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, snapshotKey(scope), data, 0)
	pipe.SAdd(ctx, scopesKey, scope)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store snapshot for %q: %w", scope, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, scope string) (stats.Record, bool, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(scope)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return stats.Record{}, false, nil
	}
	if err != nil {
		return stats.Record{}, false, fmt.Errorf("failed to load snapshot for %q: %w", scope, err)
	}

	var rec stats.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return stats.Record{}, false, fmt.Errorf("corrupt snapshot for %q: %w", scope, err)
	}
	return rec, true, nil
}

func (s *RedisStore) Scopes(ctx context.Context) ([]string, error) {
	scopes, err := s.rdb.SMembers(ctx, scopesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot scopes: %w", err)
	}
	return scopes, nil
}
